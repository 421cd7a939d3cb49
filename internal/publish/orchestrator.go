// Package publish runs deployment jobs: it validates credentials, builds the
// artifact bundle, uploads it and follows the remote build until it is ready,
// failed, timed out or canceled. At most one job is in flight at a time.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cv-publisher/internal/artifacts"
	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/metrics"
	"github.com/jonathan/cv-publisher/internal/provider"
	"github.com/jonathan/cv-publisher/internal/types"
)

// DefaultMonitorTimeout bounds the Monitoring stage.
const DefaultMonitorTimeout = 2 * time.Minute

// ErrBusy is returned when a publish is requested while a job is in flight.
var ErrBusy = errors.New("publish: a job is already in progress")

// errCanceled is the cancel cause set by Cancel.
var errCanceled = errors.New("publish canceled by caller")

// Builder assembles the artifact bundle of a document.
type Builder interface {
	Build(ctx context.Context, doc *types.Document, opts artifacts.Options) (*artifacts.Build, error)
}

// Request is one publish.
type Request struct {
	Document *types.Document
	Token    string
	// Project names the provider project; defaults to the CV's full name.
	Project    string
	Template   string
	IncludePDF bool
	// OnTransition receives this job's transitions in addition to the
	// orchestrator-wide hook.
	OnTransition func(Transition)
}

// Transition is a job status change. Build log lines are reported as
// Monitoring to Monitoring transitions carrying the line in Message.
type Transition struct {
	JobID   uuid.UUID               `json:"jobId"`
	From    types.JobStatus         `json:"from"`
	To      types.JobStatus         `json:"to"`
	At      time.Time               `json:"at"`
	Message string                  `json:"message,omitempty"`
	Result  *types.DeploymentResult `json:"result,omitempty"`
}

// Orchestrator sequences publish jobs.
type Orchestrator struct {
	adapter        provider.Adapter
	builder        Builder
	classifier     *Classifier
	monitorTimeout time.Duration
	recorder       metrics.Recorder
	logger         *slog.Logger
	now            func() time.Time
	onTransition   func(Transition)

	mu     sync.Mutex
	job    *types.DeploymentJob
	cancel context.CancelCauseFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMonitorTimeout sets the Monitoring deadline.
func WithMonitorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.monitorTimeout = d }
}

// WithClassifier replaces the build log classifier.
func WithClassifier(c *Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock sets the clock used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// OnTransition registers a hook called for every transition of every job.
// Hooks run on the job's goroutine and must not block.
func OnTransition(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// New creates an orchestrator publishing through adapter.
func New(adapter provider.Adapter, builder Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapter:        adapter,
		builder:        builder,
		classifier:     DefaultClassifier(),
		monitorTimeout: DefaultMonitorTimeout,
		recorder:       metrics.NoopRecorder{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Current returns a copy of the in-flight job, or of the last job when none
// is running. ok is false before the first publish.
func (o *Orchestrator) Current() (job types.DeploymentJob, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return types.DeploymentJob{}, false
	}
	return *o.job, true
}

// Cancel aborts the in-flight job. It is safe to call at any time and
// reports whether a job was canceled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil || o.job.Status.IsTerminal() || o.cancel == nil {
		return false
	}
	o.cancel(errCanceled)
	return true
}

// Publish runs one job to a terminal state and returns its result. The only
// error is ErrBusy; every other failure is a failed DeploymentResult.
func (o *Orchestrator) Publish(ctx context.Context, req Request) (*types.DeploymentResult, error) {
	o.mu.Lock()
	if o.job != nil && !o.job.Status.IsTerminal() {
		o.mu.Unlock()
		o.recorder.IncBusyRejection()
		o.logger.Warn("Publish rejected, job in flight", logfields.JobID(o.currentID()))
		return nil, ErrBusy
	}
	jobCtx, cancel := context.WithCancelCause(ctx)
	now := o.now()
	job := &types.DeploymentJob{
		ID:        uuid.New(),
		Provider:  o.adapter.Name(),
		Status:    types.StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.job = job
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel(nil)

	r := &run{
		o:        o,
		job:      job,
		req:      req,
		logger:   o.logger.With(logfields.JobID(job.ID.String()), logfields.Provider(job.Provider)),
		started:  now,
		stageAt:  now,
		observer: req.OnTransition,
	}
	return r.execute(jobCtx), nil
}

// currentID is used in logs; the caller must not hold o.mu.
func (o *Orchestrator) currentID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return ""
	}
	return o.job.ID.String()
}

// run is the state of one job.
type run struct {
	o        *Orchestrator
	job      *types.DeploymentJob
	req      Request
	logger   *slog.Logger
	started  time.Time
	stageAt  time.Time
	observer func(Transition)
}

// execute walks Validating, Rendering, Uploading and Monitoring in order and
// always ends in exactly one terminal state.
func (r *run) execute(ctx context.Context) *types.DeploymentResult {
	// Validating
	r.transition(types.StatusValidating, "Checking credentials", nil)
	if r.req.Token == "" {
		return r.fail(ctx, types.ErrorAuthentication, "no token supplied")
	}
	validation := r.o.adapter.ValidateCredentials(ctx, r.req.Token)
	if ctx.Err() != nil {
		return r.canceled(ctx)
	}
	if !validation.Valid {
		return r.fail(ctx, types.ErrorAuthentication, validation.Reason)
	}
	if validation.Account != nil {
		r.logger.Info("Credentials valid", slog.String("account", validation.Account.Username))
	}
	r.stageDone(metrics.ResultSuccess)

	// Rendering
	r.transition(types.StatusRendering, "Rendering page and assembling bundle", nil)
	doc := r.req.Document
	if doc == nil {
		return r.fail(ctx, types.ErrorValidation, "no document supplied")
	}
	if err := doc.Validate(); err != nil {
		return r.fail(ctx, types.ErrorValidation, err.Error())
	}
	build, err := r.o.builder.Build(ctx, doc, artifacts.Options{IncludePDF: r.req.IncludePDF, Template: r.req.Template})
	if ctx.Err() != nil {
		return r.canceled(ctx)
	}
	if err != nil {
		return r.fail(ctx, types.ErrorValidation, err.Error())
	}
	for _, rec := range build.Recovered {
		r.o.recorder.IncRecoveredArtifact(rec.Artifact)
	}
	if build.Degraded() {
		r.stageDone(metrics.ResultDegraded)
	} else {
		r.stageDone(metrics.ResultSuccess)
	}

	// Uploading
	project := r.req.Project
	if project == "" {
		project = doc.GeneralInfo.FullName
	}
	r.transition(types.StatusUploading, fmt.Sprintf("Uploading %d files", build.Bundle.Len()), nil)
	deployment, err := r.o.adapter.CreateDeployment(ctx, r.req.Token, provider.Request{
		Name:    project,
		Bundle:  build.Bundle,
		EnvVars: build.EnvVars,
	})
	if ctx.Err() != nil {
		return r.canceled(ctx)
	}
	if err != nil {
		return r.fail(ctx, uploadKind(err), err.Error())
	}
	r.setDeployment(deployment.ID)
	r.logger = r.logger.With(logfields.DeploymentID(deployment.ID), logfields.Project(deployment.Project))
	r.stageDone(metrics.ResultSuccess)

	// Monitoring
	r.transition(types.StatusMonitoring, "Waiting for the build", nil)
	verdict := r.monitor(ctx, deployment.ID)
	switch verdict.status {
	case types.StatusCanceled:
		return r.canceled(ctx)
	case types.StatusTimedOut:
		return r.finish(types.StatusTimedOut, types.Failure(types.ErrorTimeout, verdict.detail))
	case types.StatusFailed:
		return r.fail(ctx, verdict.kind, verdict.detail)
	}
	r.stageDone(metrics.ResultSuccess)

	// Ready
	live := r.o.adapter.ResolveLiveDomain(ctx, r.req.Token, deployment.Project)
	return r.finish(types.StatusReady, &types.DeploymentResult{
		Success:      true,
		LiveURL:      live,
		SettingsURL:  deployment.SettingsURL,
		DeploymentID: deployment.ID,
	})
}

// monitorVerdict is the outcome of the Monitoring stage.
type monitorVerdict struct {
	status types.JobStatus
	kind   types.ErrorKind
	detail string
}

// monitor checks the structured deployment state, then follows the build log
// until a line classifies as terminal or the deadline or a cancel fires. A
// read error fails the job. The stream is closed on every path.
func (r *run) monitor(ctx context.Context, deploymentID string) monitorVerdict {
	mctx, cancel := context.WithTimeout(ctx, r.o.monitorTimeout)
	defer cancel()

	interrupted := func() monitorVerdict {
		if ctx.Err() != nil {
			return monitorVerdict{status: types.StatusCanceled}
		}
		return monitorVerdict{status: types.StatusTimedOut,
			detail: fmt.Sprintf("no terminal build event within %s", r.o.monitorTimeout)}
	}

	state, err := r.o.adapter.DeploymentState(mctx, r.req.Token, deploymentID)
	switch {
	case mctx.Err() != nil:
		return interrupted()
	case err != nil:
		var perr *provider.Error
		if errors.As(err, &perr) {
			switch perr.Kind {
			case types.ErrorAuthentication:
				return monitorVerdict{status: types.StatusFailed, kind: perr.Kind, detail: err.Error()}
			case types.ErrorValidation:
				return monitorVerdict{status: types.StatusFailed, kind: types.ErrorBuildFailure,
					detail: "deployment not found: " + err.Error()}
			}
		}
		r.logger.Warn("Deployment state check failed, following build log", logfields.Error(err))
	default:
		if v, ok := settled(state); ok {
			r.logger.Info("Deployment already settled", slog.String("state", string(state)))
			return v
		}
	}

	stream, err := r.o.adapter.StreamBuildEvents(mctx, r.req.Token, deploymentID)
	if mctx.Err() != nil {
		if stream != nil {
			_ = stream.Close()
		}
		return interrupted()
	}
	if err != nil {
		return monitorVerdict{status: types.StatusFailed, kind: types.ErrorNetwork, detail: err.Error()}
	}
	defer func() { _ = stream.Close() }()

	events := make(chan provider.Event)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := stream.Next()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-mctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-mctx.Done():
			return interrupted()

		case err := <-readErr:
			if mctx.Err() != nil {
				return interrupted()
			}
			if errors.Is(err, io.EOF) {
				return r.awaitSettled(mctx, deploymentID, interrupted)
			}
			return monitorVerdict{status: types.StatusFailed, kind: types.ErrorNetwork, detail: err.Error()}

		case ev := <-events:
			verdict, rule := r.o.classifier.Classify(ev)
			r.o.recorder.IncClassifiedEvent(verdict.String())
			if ev.Text != "" {
				r.transition(types.StatusMonitoring, ev.Text, nil)
			}
			switch verdict {
			case BuildReady:
				r.logger.Info("Build reported ready", slog.String("rule", rule))
				return monitorVerdict{status: types.StatusReady}
			case BuildFailed:
				return monitorVerdict{status: types.StatusFailed, kind: types.ErrorBuildFailure,
					detail: fmt.Sprintf("build log matched %q: %s", rule, ev.Text)}
			}
		}
	}
}

// settled maps a terminal ready state to its verdict.
func settled(state provider.ReadyState) (monitorVerdict, bool) {
	switch state {
	case provider.StateReady:
		return monitorVerdict{status: types.StatusReady}, true
	case provider.StateError:
		return monitorVerdict{status: types.StatusFailed, kind: types.ErrorBuildFailure, detail: "deployment is in ERROR state"}, true
	case provider.StateCanceled:
		return monitorVerdict{status: types.StatusFailed, kind: types.ErrorBuildFailure, detail: "deployment was canceled by the provider"}, true
	}
	return monitorVerdict{}, false
}

// awaitSettled handles a build log that closed without a terminal line. The
// deployment state is checked once more; if the build is still running the
// job waits out the monitor deadline like a silent stream.
func (r *run) awaitSettled(mctx context.Context, deploymentID string, interrupted func() monitorVerdict) monitorVerdict {
	state, err := r.o.adapter.DeploymentState(mctx, r.req.Token, deploymentID)
	if err == nil {
		if v, ok := settled(state); ok {
			return v
		}
	}
	r.logger.Warn("Build log ended without a terminal line, waiting for the deadline",
		slog.String("state", string(state)))
	<-mctx.Done()
	return interrupted()
}

// uploadKind keeps the provider's classification for authentication,
// validation and network failures; anything else is a build failure.
func uploadKind(err error) types.ErrorKind {
	var perr *provider.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case types.ErrorAuthentication, types.ErrorValidation, types.ErrorNetwork:
			return perr.Kind
		}
	}
	return types.ErrorBuildFailure
}

func (r *run) setDeployment(id string) {
	r.o.mu.Lock()
	r.job.DeploymentID = id
	r.o.mu.Unlock()
}

// stageDone records the duration and result of the current stage.
func (r *run) stageDone(result metrics.ResultLabel) {
	r.o.mu.Lock()
	stage := string(r.job.Status)
	r.o.mu.Unlock()
	r.o.recorder.ObserveStageDuration(stage, r.o.now().Sub(r.stageAt))
	r.o.recorder.IncStageResult(stage, result)
}

// transition moves the job to status and notifies the hooks outside the lock.
func (r *run) transition(status types.JobStatus, message string, result *types.DeploymentResult) Transition {
	r.o.mu.Lock()
	now := r.o.now()
	t := Transition{
		JobID:   r.job.ID,
		From:    r.job.Status,
		To:      status,
		At:      now,
		Message: message,
		Result:  result,
	}
	if r.job.Status != status {
		r.stageAt = now
	}
	r.job.Status = status
	r.job.UpdatedAt = now
	if result != nil {
		r.job.Result = result
	}
	r.o.mu.Unlock()

	if t.From != t.To {
		r.logger.Info("Job transition",
			logfields.JobStatus(string(status)),
			slog.String("from", string(t.From)))
	}
	if r.o.onTransition != nil {
		r.o.onTransition(t)
	}
	if r.observer != nil {
		r.observer(t)
	}
	return t
}

func (r *run) fail(ctx context.Context, kind types.ErrorKind, detail string) *types.DeploymentResult {
	if ctx.Err() != nil {
		return r.canceled(ctx)
	}
	return r.finish(types.StatusFailed, types.Failure(kind, detail))
}

func (r *run) canceled(ctx context.Context) *types.DeploymentResult {
	detail := "canceled"
	if cause := context.Cause(ctx); cause != nil {
		detail = cause.Error()
	}
	return r.finish(types.StatusCanceled, types.Failure(types.ErrorCanceled, detail))
}

// finish records the terminal state; from here a new job may start.
func (r *run) finish(status types.JobStatus, result *types.DeploymentResult) *types.DeploymentResult {
	r.o.mu.Lock()
	stage := string(r.job.Status)
	r.o.mu.Unlock()

	switch status {
	case types.StatusReady:
	case types.StatusCanceled:
		r.o.recorder.IncStageResult(stage, metrics.ResultCanceled)
	default:
		r.o.recorder.IncStageResult(stage, metrics.ResultFatal)
	}
	r.o.recorder.ObservePublishDuration(r.o.now().Sub(r.started))
	r.o.recorder.IncPublishOutcome(string(status))

	if result.Success {
		r.logger.Info("Publish succeeded", logfields.URL(result.LiveURL))
	} else {
		r.logger.Error("Publish did not succeed",
			logfields.Outcome(string(status)),
			slog.String("error_kind", string(result.ErrorKind)),
			slog.String("detail", result.Detail),
			logfields.Stage(stage))
	}

	msg := result.ErrorMessage
	if result.Success {
		msg = "Live at " + result.LiveURL
	}
	r.transition(status, msg, result)
	return result
}
