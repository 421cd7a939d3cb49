package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/cv-publisher/internal/fetch"
	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/naming"
	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/types"
)

// Vercel defaults.
const (
	DefaultBaseURL        = "https://api.vercel.com"
	DefaultProjectPrefix  = "svp"
	DefaultRequestTimeout = 30 * time.Second
	// VercelName is the provider name recorded on jobs.
	VercelName = "vercel"
)

var lastPathSegment = regexp.MustCompile(`/[^/]+$`)

// Vercel implements Adapter against the Vercel REST API.
type Vercel struct {
	baseURL        string
	client         *http.Client
	projectPrefix  string
	requestTimeout time.Duration
	logger         *slog.Logger
}

// VercelOption configures a Vercel adapter.
type VercelOption func(*Vercel)

// WithBaseURL points the adapter at another API host (tests use httptest).
func WithBaseURL(u string) VercelOption {
	return func(v *Vercel) { v.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the HTTP client. It must not set Client.Timeout, which
// would cut long build log streams; per-call timeouts come from
// WithRequestTimeout.
func WithHTTPClient(c *http.Client) VercelOption {
	return func(v *Vercel) { v.client = c }
}

// WithProjectPrefix sets the prefix of every project name.
func WithProjectPrefix(prefix string) VercelOption {
	return func(v *Vercel) { v.projectPrefix = prefix }
}

// WithRequestTimeout bounds every call except the event stream.
func WithRequestTimeout(d time.Duration) VercelOption {
	return func(v *Vercel) { v.requestTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) VercelOption {
	return func(v *Vercel) { v.logger = logger }
}

// NewVercel creates a Vercel adapter.
func NewVercel(opts ...VercelOption) *Vercel {
	v := &Vercel{
		baseURL:        DefaultBaseURL,
		client:         &http.Client{},
		projectPrefix:  DefaultProjectPrefix,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.logger = v.logger.With(logfields.Provider(VercelName))
	return v
}

// Name returns "vercel".
func (v *Vercel) Name() string {
	return VercelName
}

// ProjectName returns the prefixed, sanitized project name for name.
func (v *Vercel) ProjectName(name string) string {
	return naming.ProjectName(name, v.projectPrefix)
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs a JSON request. A non-2xx status becomes an *Error carrying
// the API's error message.
func (v *Vercel) call(ctx context.Context, op, token, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, v.requestTimeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: types.ErrorValidation, Op: op, Message: "failed to encode request", Cause: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: types.ErrorValidation, Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		return &Error{Kind: types.ErrorNetwork, Op: op, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	v.logger.Debug("Provider call",
		slog.String("op", op),
		logfields.Status(resp.StatusCode),
		logfields.Duration(time.Since(start)))

	data, err := io.ReadAll(io.LimitReader(resp.Body, fetch.DefaultMaxBytes))
	if err != nil {
		return &Error{Kind: types.ErrorNetwork, Op: op, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: types.ErrorNetwork, Op: op, Message: "invalid response", Cause: err}
	}
	return nil
}

func statusError(op string, code int, body []byte) *Error {
	var apiErr apiError
	msg := http.StatusText(code)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	return &Error{Kind: kindForStatus(code), Op: op, StatusCode: code, Message: msg}
}

// ValidateCredentials calls the user endpoint with token.
func (v *Vercel) ValidateCredentials(ctx context.Context, token string) Validation {
	if strings.TrimSpace(token) == "" {
		return Validation{Reason: "token is required"}
	}

	var resp struct {
		User struct {
			Username string  `json:"username"`
			Email    string  `json:"email"`
			Name     *string `json:"name"`
		} `json:"user"`
	}
	if err := v.call(ctx, "validate credentials", token, http.MethodGet, "/v2/user", nil, &resp); err != nil {
		v.logger.Info("Token rejected", logfields.Error(err))
		return Validation{Reason: err.Error()}
	}

	account := &AccountInfo{
		Username: resp.User.Username,
		Email:    resp.User.Email,
		Avatar:   "https://vercel.com/api/www/avatar?s=64&u=" + url.QueryEscape(resp.User.Username),
	}
	if resp.User.Name != nil {
		account.Name = *resp.User.Name
	}
	return Validation{Valid: true, Account: account}
}

type createRequest struct {
	Name            string               `json:"name"`
	Files           []types.ManifestFile `json:"files"`
	ProjectSettings projectSettings      `json:"projectSettings"`
	Target          string               `json:"target"`
	Env             map[string]string    `json:"env,omitempty"`
}

type projectSettings struct {
	Framework *string `json:"framework"`
}

type deploymentResponse struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	ReadyState   ReadyState `json:"readyState"`
	CreatedAt    int64      `json:"createdAt"`
	InspectorURL string     `json:"inspectorUrl"`
}

// CreateDeployment uploads the bundle as a production deployment.
func (v *Vercel) CreateDeployment(ctx context.Context, token string, req Request) (*Deployment, error) {
	if req.Bundle == nil || req.Bundle.Len() == 0 {
		return nil, &Error{Kind: types.ErrorValidation, Op: "create deployment", Message: "bundle is empty"}
	}
	project := v.ProjectName(req.Name)

	body := createRequest{
		Name:   project,
		Files:  req.Bundle.Manifest(),
		Target: "production",
	}
	if len(req.EnvVars) > 0 {
		body.Env = req.EnvVars
	}

	var resp deploymentResponse
	if err := v.call(ctx, "create deployment", token, http.MethodPost, "/v13/deployments", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &Error{Kind: types.ErrorBuildFailure, Op: "create deployment", Message: "response carries no deployment id"}
	}

	d := &Deployment{
		ID:           resp.ID,
		Project:      project,
		ReadyState:   resp.ReadyState,
		CreatedAt:    time.UnixMilli(resp.CreatedAt),
		InspectorURL: resp.InspectorURL,
	}
	if resp.URL != "" {
		d.URL = "https://" + resp.URL
	}
	if resp.InspectorURL != "" {
		d.SettingsURL = lastPathSegment.ReplaceAllString(resp.InspectorURL, "/settings")
	}
	v.logger.Info("Deployment created",
		logfields.Project(project),
		logfields.DeploymentID(d.ID),
		logfields.Count(req.Bundle.Len()))
	return d, nil
}

type projectDomain struct {
	Name                string  `json:"name"`
	Verified            bool    `json:"verified"`
	GitBranch           *string `json:"gitBranch"`
	CustomEnvironmentID *string `json:"customEnvironmentId"`
}

// ResolveLiveDomain returns the first verified production domain of the
// project, or https://{project}.vercel.app.
func (v *Vercel) ResolveLiveDomain(ctx context.Context, token, project string) string {
	fallback := "https://" + project + ".vercel.app"

	var resp struct {
		Domains []projectDomain `json:"domains"`
	}
	path := "/v9/projects/" + url.PathEscape(project) + "/domains?limit=100"
	if err := v.call(ctx, "list domains", token, http.MethodGet, path, nil, &resp); err != nil {
		v.logger.Warn("Domain lookup failed, using default domain",
			logfields.Project(project), logfields.Error(err))
		return fallback
	}
	for _, d := range resp.Domains {
		if d.Verified && isBlank(d.GitBranch) && isBlank(d.CustomEnvironmentID) {
			return "https://" + d.Name
		}
	}
	return fallback
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

// DeploymentState returns the readyState of a deployment.
func (v *Vercel) DeploymentState(ctx context.Context, token, deploymentID string) (ReadyState, error) {
	var resp deploymentResponse
	path := "/v13/deployments/" + url.PathEscape(deploymentID)
	if err := v.call(ctx, "get deployment", token, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.ReadyState, nil
}

// StreamBuildEvents follows the build log as newline-delimited JSON.
func (v *Vercel) StreamBuildEvents(ctx context.Context, token, deploymentID string) (EventStream, error) {
	const op = "stream build events"
	streamCtx, cancel := context.WithCancel(ctx)

	path := "/v3/deployments/" + url.PathEscape(deploymentID) + "/events?follow=1&builds=1"
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, &Error{Kind: types.ErrorNetwork, Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/stream+json")

	resp, err := v.client.Do(req)
	if err != nil {
		cancel()
		return nil, &Error{Kind: types.ErrorNetwork, Op: op, Message: "failed to connect to event stream", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		cancel()
		return nil, statusError(op, resp.StatusCode, data)
	}

	return newNDJSONStream(streamCtx, cancel, resp.Body, v.logger.With(logfields.DeploymentID(deploymentID))), nil
}

// ListProjects lists projects carrying the project prefix that have a
// production domain.
func (v *Vercel) ListProjects(ctx context.Context, token string) ([]Project, error) {
	var resp struct {
		Projects []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			CreatedAt int64  `json:"createdAt"`
			Alias     []struct {
				Domain string `json:"domain"`
				Target string `json:"target"`
			} `json:"alias"`
		} `json:"projects"`
	}
	path := "/v10/projects?limit=100&search=" + url.QueryEscape(v.projectPrefix)
	if err := v.call(ctx, "list projects", token, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(resp.Projects))
	for _, p := range resp.Projects {
		if v.projectPrefix != "" && !strings.HasPrefix(p.Name, v.projectPrefix) {
			continue
		}
		for _, alias := range p.Alias {
			if strings.EqualFold(alias.Target, "production") {
				projects = append(projects, Project{
					ID:        p.ID,
					Name:      p.Name,
					Domain:    alias.Domain,
					CreatedAt: time.UnixMilli(p.CreatedAt),
				})
				break
			}
		}
	}
	return projects, nil
}

// FetchPublishedDocument downloads and validates the cv-data.json snapshot
// of project. A bundle-relative photo is rewritten to an absolute URL so the
// document can be published again.
func (v *Vercel) FetchPublishedDocument(ctx context.Context, token, project string) (*types.Document, error) {
	const op = "fetch published document"
	domain := v.ResolveLiveDomain(ctx, token, project)
	docURL := domain + "/" + types.CVDataFile

	res, err := fetch.URL(ctx, docURL, &fetch.Options{
		Timeout: v.requestTimeout,
		Client:  v.client,
	})
	if err != nil {
		var fetchErr *fetch.Error
		if res != nil && errors.As(err, &fetchErr) {
			return nil, &Error{Kind: kindForStatus(res.StatusCode), Op: op, StatusCode: res.StatusCode, Message: "no published CV at " + docURL}
		}
		return nil, &Error{Kind: types.ErrorNetwork, Op: op, Cause: err}
	}

	doc, err := schemas.DecodeDocument(res.Body)
	if err != nil {
		return nil, &Error{Kind: types.ErrorValidation, Op: op, Message: "published cv-data.json is invalid", Cause: err}
	}

	photo := doc.GeneralInfo.Photo
	if photo != "" && !fetch.IsRemoteURL(photo) && !fetch.IsImageDataURL(photo) {
		doc.GeneralInfo.Photo = naming.BuildPhotoURL(domain, photo)
	}

	v.logger.Info("Loaded published document", logfields.Project(project), logfields.URL(docURL))
	return doc, nil
}

var (
	_ Adapter        = (*Vercel)(nil)
	_ DocumentSource = (*Vercel)(nil)
	_ ProjectLister  = (*Vercel)(nil)
)

// String is used in verbose CLI output.
func (v *Vercel) String() string {
	return fmt.Sprintf("vercel(%s)", v.baseURL)
}
