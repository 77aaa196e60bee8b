package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "pages_classified_total",
			Help:      "Total pages classified by page type and processing method",
		},
		[]string{"page_type", "method"},
	)

	pageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragprep",
			Name:      "page_duration_seconds",
			Help:      "Per-page pipeline duration by stage (extract, classify, materialize)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "pages_processed_total",
			Help:      "Total pages processed by result (success, failed, skipped)",
		},
		[]string{"result"},
	)

	documentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "documents_processed_total",
			Help:      "Total documents processed by result and mode (sequential, parallel)",
		},
		[]string{"result", "mode"},
	)

	documentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragprep",
			Name:      "document_duration_seconds",
			Help:      "Whole-document processing duration by mode",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "provider_requests_total",
			Help:      "Total AI provider requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragprep",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of AI provider requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	breakerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "breaker_events_total",
			Help:      "Provider cooldown events by provider, model and action",
		},
		[]string{"provider", "model", "action"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragprep",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)

	estimatedCost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragprep",
			Name:      "estimated_cost_units_total",
			Help:      "Accumulated estimated processing cost units across documents",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesClassified, pageDuration, pagesProcessed,
		documentsProcessed, documentDuration, providerReqs, providerLatency,
		breakerEvents, queueDepth, estimatedCost)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncClassified(pageType, method string) {
	pagesClassified.WithLabelValues(pageType, method).Inc()
}

func ObserveStage(stage string, dur time.Duration) {
	pageDuration.WithLabelValues(stage).Observe(dur.Seconds())
}

func IncProcessed(result string) { pagesProcessed.WithLabelValues(result).Inc() }

func IncDocument(result, mode string) { documentsProcessed.WithLabelValues(result, mode).Inc() }

func ObserveDocument(mode string, dur time.Duration) {
	documentDuration.WithLabelValues(mode).Observe(dur.Seconds())
}

func ObserveProvider(provider, model, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, model, result).Inc()
	providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func BreakerOpened(provider, model string) {
	breakerEvents.WithLabelValues(provider, model, "opened").Inc()
}
func BreakerClosed(provider, model string) {
	breakerEvents.WithLabelValues(provider, model, "closed").Inc()
}

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }

func AddEstimatedCost(units float64) { estimatedCost.Add(units) }
