// Package provider abstracts the hosting service that serves published CVs.
// The publish orchestrator only talks to the Adapter interface; Vercel is the
// one implementation.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/cv-publisher/internal/types"
)

// Adapter is the remote API of a hosting provider.
type Adapter interface {
	// Name identifies the provider in jobs and logs.
	Name() string
	// ValidateCredentials checks token. Failures are reported in the
	// returned Validation, never as an error.
	ValidateCredentials(ctx context.Context, token string) Validation
	// CreateDeployment uploads a bundle. Failures are *Error values.
	CreateDeployment(ctx context.Context, token string, req Request) (*Deployment, error)
	// ResolveLiveDomain returns the public URL of project, falling back to
	// the provider's default naming when lookup fails.
	ResolveLiveDomain(ctx context.Context, token, project string) string
	// StreamBuildEvents opens the build log of a deployment. Closing the
	// stream, or canceling ctx, tears down the connection.
	StreamBuildEvents(ctx context.Context, token, deploymentID string) (EventStream, error)
	// DeploymentState returns the structured state of a deployment.
	DeploymentState(ctx context.Context, token, deploymentID string) (ReadyState, error)
}

// DocumentSource loads the cv-data.json snapshot of a published project.
type DocumentSource interface {
	FetchPublishedDocument(ctx context.Context, token, project string) (*types.Document, error)
}

// ProjectLister lists the projects this tool published.
type ProjectLister interface {
	ListProjects(ctx context.Context, token string) ([]Project, error)
}

// AccountInfo describes the owner of a token.
type AccountInfo struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Validation is the outcome of a credential check.
type Validation struct {
	Valid   bool         `json:"valid"`
	Account *AccountInfo `json:"account,omitempty"`
	// Reason explains why the token is invalid.
	Reason string `json:"reason,omitempty"`
}

// Request is a bundle upload.
type Request struct {
	// Name is the project name before provider prefixing and sanitizing.
	Name    string
	Bundle  *types.Bundle
	EnvVars map[string]string
}

// ReadyState is the provider's build state.
type ReadyState string

// Ready states reported by the provider.
const (
	StateQueued       ReadyState = "QUEUED"
	StateInitializing ReadyState = "INITIALIZING"
	StateBuilding     ReadyState = "BUILDING"
	StateReady        ReadyState = "READY"
	StateError        ReadyState = "ERROR"
	StateCanceled     ReadyState = "CANCELED"
)

// IsTerminal reports whether the build has finished.
func (s ReadyState) IsTerminal() bool {
	return s == StateReady || s == StateError || s == StateCanceled
}

// Deployment is a created deployment.
type Deployment struct {
	ID           string     `json:"id"`
	Project      string     `json:"project"`
	URL          string     `json:"url,omitempty"`
	ReadyState   ReadyState `json:"readyState"`
	CreatedAt    time.Time  `json:"createdAt"`
	InspectorURL string     `json:"inspectorUrl,omitempty"`
	SettingsURL  string     `json:"settingsUrl,omitempty"`
}

// Project is a published project with a production domain.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is one line of a build log.
type Event struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Created int64  `json:"created"`
}

// EventStream is a cancellable sequence of build log events.
type EventStream interface {
	// Next blocks for the next event. It returns io.EOF when the provider
	// ends the stream.
	Next() (Event, error)
	// Close aborts the stream. It is safe to call more than once.
	Close() error
}

// Error is a failed provider call, classified for the orchestrator.
type Error struct {
	Kind       types.ErrorKind
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return "provider error: " + msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(code int) types.ErrorKind {
	switch {
	case code == 401 || code == 403:
		return types.ErrorAuthentication
	case code == 429:
		return types.ErrorNetwork
	case code >= 400 && code < 500:
		return types.ErrorValidation
	default:
		return types.ErrorNetwork
	}
}
