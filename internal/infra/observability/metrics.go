package observability

import (
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bank backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	transfersTotal  *prometheus.CounterVec
	dealEvents      *prometheus.CounterVec
	conflictRetries *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bamboo_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_transfers_total",
				Help: "Total peer-to-peer transfers by outcome.",
			},
			[]string{"status"},
		),
		dealEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_deal_events_total",
				Help: "Total escrow deal lifecycle events.",
			},
			[]string{"event"},
		),
		conflictRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_conflict_retries_total",
				Help: "Total optimistic write conflicts that forced a retry.",
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamboo_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		streamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bamboo_stream_clients",
				Help: "Currently connected event-stream clients.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransfer increments the transfer counter with an outcome label.
func (m *Metrics) IncrTransfer(status string) {
	m.transfersTotal.WithLabelValues(status).Inc()
}

// IncrDealEvent increments the deal lifecycle counter.
func (m *Metrics) IncrDealEvent(event string) {
	m.dealEvents.WithLabelValues(event).Inc()
}

// IncrConflictRetry increments the write-conflict retry counter.
func (m *Metrics) IncrConflictRetry(operation string) {
	m.conflictRetries.WithLabelValues(operation).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// StreamClientConnected bumps the connected-client gauge.
func (m *Metrics) StreamClientConnected() {
	m.streamClients.Inc()
}

// StreamClientDisconnected drops the connected-client gauge.
func (m *Metrics) StreamClientDisconnected() {
	m.streamClients.Dec()
}

// GetOpsSnapshot returns current counter values suitable for the
// GET /v1/admin/metrics endpoint.
func (m *Metrics) GetOpsSnapshot() *domain.OpsMetrics {
	// Prometheus counters expose cumulative values.
	completed := getCounterValue(m.transfersTotal, "completed")
	failed := getCounterValue(m.transfersTotal, "failed")
	contactsHits := getCounterValue(m.cacheHits, "contacts")
	contactsMisses := getCounterValue(m.cacheMisses, "contacts")

	failureRate := float64(0)
	if completed+failed > 0 {
		failureRate = failed / (completed + failed)
	}
	cacheHitRate := float64(0)
	if contactsHits+contactsMisses > 0 {
		cacheHitRate = contactsHits / (contactsHits + contactsMisses)
	}

	return &domain.OpsMetrics{
		TransfersCompleted:  int64(completed),
		TransfersFailed:     int64(failed),
		TransferFailureRate: failureRate,
		DealsCreated:        int64(getCounterValue(m.dealEvents, "created")),
		DealsReleased:       int64(getCounterValue(m.dealEvents, "released")),
		ConflictRetries:     int64(sumCounterVec(m.conflictRetries)),
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec totals every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
