package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a deployment job.
type JobStatus string

// Job states. Idle and the four terminal states are the only rest points.
const (
	StatusIdle       JobStatus = "idle"
	StatusValidating JobStatus = "validating"
	StatusRendering  JobStatus = "rendering"
	StatusUploading  JobStatus = "uploading"
	StatusMonitoring JobStatus = "monitoring"
	StatusReady      JobStatus = "ready"
	StatusFailed     JobStatus = "failed"
	StatusTimedOut   JobStatus = "timed_out"
	StatusCanceled   JobStatus = "canceled"
)

// IsTerminal reports whether no further automatic transition happens from s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusTimedOut, StatusCanceled:
		return true
	}
	return false
}

// ErrorKind classifies why a deployment did not succeed.
type ErrorKind string

// Error kinds.
const (
	ErrorAuthentication ErrorKind = "authentication"
	ErrorValidation     ErrorKind = "validation"
	ErrorNetwork        ErrorKind = "network"
	ErrorBuildFailure   ErrorKind = "build_failure"
	ErrorTimeout        ErrorKind = "timeout"
	ErrorCanceled       ErrorKind = "canceled"
	ErrorBusy           ErrorKind = "busy"
)

// Retryable reports whether re-invoking publish without changing the input
// can succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorNetwork, ErrorBuildFailure, ErrorTimeout, ErrorCanceled, ErrorBusy:
		return true
	}
	return false
}

// Message returns the user-facing description of the kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorAuthentication:
		return "authentication failed"
	case ErrorValidation:
		return "the CV could not be prepared for publishing"
	case ErrorNetwork:
		return "could not reach the hosting provider"
	case ErrorBuildFailure:
		return "build failed"
	case ErrorTimeout:
		return "timed out waiting for build"
	case ErrorCanceled:
		return "publish canceled"
	case ErrorBusy:
		return "a publish is already in progress"
	default:
		return "publish failed"
	}
}

// DeploymentResult is the single value handed back across the publish boundary.
type DeploymentResult struct {
	Success      bool      `json:"success"`
	LiveURL      string    `json:"liveUrl,omitempty"`
	SettingsURL  string    `json:"providerSettingsUrl,omitempty"`
	DeploymentID string    `json:"deploymentId,omitempty"`
	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	// Detail carries the underlying cause for logs and verbose output.
	Detail string `json:"detail,omitempty"`
}

// Retryable reports whether the failure offers a retry affordance.
func (r *DeploymentResult) Retryable() bool {
	return !r.Success && r.ErrorKind.Retryable()
}

// Failure builds a failed result whose message is the kind's user-facing text.
func Failure(kind ErrorKind, detail string) *DeploymentResult {
	return &DeploymentResult{Success: false, ErrorKind: kind, ErrorMessage: kind.Message(), Detail: detail}
}

// DeploymentJob tracks one end-to-end publish attempt.
type DeploymentJob struct {
	ID           uuid.UUID         `json:"id"`
	Provider     string            `json:"provider"`
	Status       JobStatus         `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	DeploymentID string            `json:"deploymentId,omitempty"`
	Result       *DeploymentResult `json:"terminalResult,omitempty"`
}
