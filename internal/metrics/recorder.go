// Package metrics records publish pipeline metrics. Components receive a
// Recorder and default to NoopRecorder, so no call site needs a nil check.
// The Prometheus implementation backs the server's /metrics endpoint.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultDegraded ResultLabel = "degraded"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines the observability hooks of the publish orchestrator.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObservePublishDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncPublishOutcome(outcome string) // outcome: ready|failed|timed_out|canceled
	IncBusyRejection()
	IncRecoveredArtifact(artifact string)
	IncClassifiedEvent(outcome string) // outcome: ready|failed|continue
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObservePublishDuration(time.Duration)       {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncPublishOutcome(string)                   {}
func (NoopRecorder) IncBusyRejection()                          {}
func (NoopRecorder) IncRecoveredArtifact(string)                {}
func (NoopRecorder) IncClassifiedEvent(string)                  {}
