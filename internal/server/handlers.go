package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/publish"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/server/middleware"
	"github.com/jonathan/cv-publisher/internal/types"
)

// maxBodyBytes bounds request bodies; an inline photo is the largest part.
const maxBodyBytes = 16 << 20

// PublishRequest represents the request body for /publish
type PublishRequest struct {
	Document   json.RawMessage `json:"document"`
	Project    string          `json:"project,omitempty"`
	Template   string          `json:"template,omitempty"`
	IncludePDF *bool           `json:"include_pdf,omitempty"`
}

// RenderRequest represents the request body for /render
type RenderRequest struct {
	Document json.RawMessage `json:"document"`
	Template string          `json:"template,omitempty"`
}

// CancelResponse represents the response for /publish/cancel
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// decodeDocument reads the document of a request and checks it against the
// snapshot schema and the model bounds.
func decodeDocument(raw json.RawMessage, template string) (*types.Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &ErrValidation{Field: "document", Message: "is required"}
	}
	doc, err := schemas.DecodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if template != "" && !rendering.IsRegistered(template) {
		return nil, &rendering.UnknownTemplateError{Key: template, Available: rendering.TemplateKeys()}
	}
	return doc, nil
}

func decodeBody(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// handlePublish runs one publish. Clients accepting text/event-stream get
// status, log and result events as the job progresses; everyone else gets
// the terminal result as JSON. Disconnecting cancels the job.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	doc, err := decodeDocument(req.Document, req.Template)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	preq := publish.Request{
		Document:   doc,
		Token:      middleware.Token(r),
		Project:    req.Project,
		Template:   req.Template,
		IncludePDF: s.defaults.IncludePDF,
	}
	if preq.Project == "" {
		preq.Project = s.defaults.Project
	}
	if preq.Template == "" {
		preq.Template = s.defaults.Template
	}
	if req.IncludePDF != nil {
		preq.IncludePDF = *req.IncludePDF
	}

	streaming := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	var sse *SSEWriter
	if streaming {
		// headers go out with the first event so a busy rejection can
		// still be a plain 409
		preq.OnTransition = func(t publish.Transition) {
			if sse == nil {
				var serr error
				if sse, serr = NewSSEWriter(w); serr != nil {
					return
				}
			}
			if err := sse.WriteTransition(t); err != nil {
				s.logger.Debug("Client stopped reading publish stream", logfields.Error(err))
			}
		}
	}

	result, err := s.orchestrator.Publish(r.Context(), preq)
	if errors.Is(err, publish.ErrBusy) {
		s.jsonResponse(w, http.StatusConflict, types.Failure(types.ErrorBusy, err.Error()))
		return
	}
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sse != nil {
		sse.WriteResult(result)
		return
	}
	s.jsonResponse(w, StatusForKind(result.ErrorKind), result)
}

// handleCancel aborts the in-flight publish, if any
func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, CancelResponse{Canceled: s.orchestrator.Cancel()})
}

// handleStatus returns the current or last job
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	job, ok := s.orchestrator.Current()
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "No publish has run yet")
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleValidateToken checks the request's provider token
func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	token := middleware.Token(r)
	if token == "" {
		s.errorResponse(w, http.StatusUnauthorized, "A bearer token is required")
		return
	}
	validation := s.adapter.ValidateCredentials(r.Context(), token)
	status := http.StatusOK
	if !validation.Valid {
		status = http.StatusUnauthorized
	}
	s.jsonResponse(w, status, validation)
}

// handleRender returns the page a publish would deploy, without a PDF link
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	doc, err := decodeDocument(req.Document, req.Template)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	out, err := s.renderer.Render(doc, req.Template)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, out.HTML); err != nil {
		s.logger.Debug("Failed to write preview", logfields.Error(err))
	}
}

// handleTemplates lists the registered templates
func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, rendering.Templates())
}
