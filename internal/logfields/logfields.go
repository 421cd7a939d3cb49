// Package logfields holds the canonical slog attribute keys used across the
// publish pipeline so log ingestion sees stable names.
package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID        = "job_id"
	KeyJobStatus    = "job_status"
	KeyStage        = "stage"
	KeyProvider     = "provider"
	KeyDeploymentID = "deployment_id"
	KeyProject      = "project"
	KeyTemplate     = "template"
	KeyFile         = "file"
	KeyArtifact     = "artifact"
	KeyURL          = "url"
	KeyToken        = "class_token"
	KeyCount        = "count"
	KeyStatus       = "http_status"
	KeyDurationMS   = "duration_ms"
	KeyOutcome      = "outcome"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Provider(name string) slog.Attr   { return slog.String(KeyProvider, name) }
func DeploymentID(id string) slog.Attr { return slog.String(KeyDeploymentID, id) }
func Project(name string) slog.Attr    { return slog.String(KeyProject, name) }
func Template(key string) slog.Attr    { return slog.String(KeyTemplate, key) }
func File(name string) slog.Attr       { return slog.String(KeyFile, name) }
func Artifact(name string) slog.Attr   { return slog.String(KeyArtifact, name) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Token(t string) slog.Attr         { return slog.String(KeyToken, t) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
