package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvpublish"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	publishDuration prom.Histogram
	stageResults    *prom.CounterVec
	publishOutcome  *prom.CounterVec
	busyRejections  prom.Counter
	recovered       *prom.CounterVec
	classified      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual publish stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.publishDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Total publish duration, from request to terminal state",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish jobs by terminal status",
		}, []string{"outcome"})
		pr.busyRejections = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Publish requests rejected because a job was in flight",
		})
		pr.recovered = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_artifacts_total",
			Help:      "Side artifacts dropped from a bundle after a recoverable failure",
		}, []string{"artifact"})
		pr.classified = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_events_total",
			Help:      "Build log events by classifier outcome",
		}, []string{"outcome"})
		reg.MustRegister(pr.stageDuration, pr.publishDuration, pr.stageResults, pr.publishOutcome,
			pr.busyRejections, pr.recovered, pr.classified)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPublishOutcome(outcome string) {
	if p == nil || p.publishOutcome == nil {
		return
	}
	p.publishOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncBusyRejection() {
	if p == nil || p.busyRejections == nil {
		return
	}
	p.busyRejections.Inc()
}

func (p *PrometheusRecorder) IncRecoveredArtifact(artifact string) {
	if p == nil || p.recovered == nil {
		return
	}
	p.recovered.WithLabelValues(artifact).Inc()
}

func (p *PrometheusRecorder) IncClassifiedEvent(outcome string) {
	if p == nil || p.classified == nil {
		return
	}
	p.classified.WithLabelValues(outcome).Inc()
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
