package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics exposes the engine's Prometheus instrumentation.
type PipelineMetrics struct {
	requestsTotal     *prometheus.CounterVec
	pipelineDuration  *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	generatorFailures *prometheus.CounterVec
	candidatesEmitted *prometheus.CounterVec
	fallbackBatches   prometheus.Counter
	feedbackRecorded  *prometheus.CounterVec
}

func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tawsiya_recommendation_requests_total",
			Help: "Recommendation requests by algorithm and outcome",
		}, []string{"algorithm", "outcome"}),
		pipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tawsiya_pipeline_duration_seconds",
			Help:    "End-to-end recommendation pipeline latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"algorithm"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tawsiya_result_cache_hits_total",
			Help: "Result cache hits",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tawsiya_result_cache_misses_total",
			Help: "Result cache misses",
		}),
		generatorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tawsiya_generator_failures_total",
			Help: "Candidate generator failures treated as empty results",
		}, []string{"generator"}),
		candidatesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tawsiya_candidates_emitted_total",
			Help: "Candidates emitted per generator before deduplication",
		}, []string{"generator"}),
		fallbackBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tawsiya_fallback_batches_total",
			Help: "Batches served from the default-popular fallback",
		}),
		feedbackRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tawsiya_feedback_recorded_total",
			Help: "Feedback events recorded by action",
		}, []string{"action"}),
	}
}

func (m *PipelineMetrics) ObserveRequest(algorithm, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(algorithm, outcome).Inc()
	m.pipelineDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

func (m *PipelineMetrics) ObserveGeneratorFailure(generator string) {
	if m == nil {
		return
	}
	m.generatorFailures.WithLabelValues(generator).Inc()
}

func (m *PipelineMetrics) ObserveCandidates(generator string, count int) {
	if m == nil {
		return
	}
	m.candidatesEmitted.WithLabelValues(generator).Add(float64(count))
}

func (m *PipelineMetrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbackBatches.Inc()
}

func (m *PipelineMetrics) ObserveFeedback(action string) {
	if m == nil {
		return
	}
	m.feedbackRecorded.WithLabelValues(action).Inc()
}
