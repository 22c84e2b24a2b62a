package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

const namespace = "stockledger"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Movement metrics
	MovementsCommitted *prometheus.CounterVec
	QuantityCommitted  *prometheus.CounterVec
	MovementsRejected  *prometheus.CounterVec
	SubmitLatency      *prometheus.HistogramVec

	// Storage metrics
	AppendRetries   prometheus.Counter
	StorageFailures *prometheus.CounterVec

	// Snapshot cache metrics
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	SnapshotRebuilds prometheus.Histogram
	StaleSnapshots   prometheus.Counter
	PeriodsStruck    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

var _ usecase.Metrics = (*Metrics)(nil)

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MovementsCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movements_committed_total",
				Help:      "Total number of committed movements by kind",
			},
			[]string{"kind"},
		),
		QuantityCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movement_quantity_total",
				Help:      "Total units moved by committed movements, by kind",
			},
			[]string{"kind"},
		),
		MovementsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movements_rejected_total",
				Help:      "Total number of rejected movements by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		SubmitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submit_duration_seconds",
				Help:      "Duration of movement submissions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		AppendRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_retries_total",
			Help:      "Total number of retried log appends",
		}),
		StorageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_failures_total",
				Help:      "Total number of storage failures by operation",
			},
			[]string{"op"},
		),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_hits_total",
			Help:      "Snapshot reads served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_misses_total",
			Help:      "Snapshot reads that required a rebuild",
		}),
		SnapshotRebuilds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_rebuild_duration_seconds",
			Help:      "Duration of snapshot rebuilds from the log",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		StaleSnapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_total",
			Help:      "Cached snapshots found behind the log",
		}),
		PeriodsStruck: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_struck_total",
			Help:      "Total number of reporting periods started",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
	}
}

func (m *Metrics) MovementCommitted(kind domain.Kind, quantity int64) {
	m.MovementsCommitted.WithLabelValues(string(kind)).Inc()
	m.QuantityCommitted.WithLabelValues(string(kind)).Add(float64(quantity))
}

func (m *Metrics) MovementRejected(kind domain.Kind, reason domain.Reason) {
	m.MovementsRejected.WithLabelValues(string(kind), string(reason)).Inc()
}

func (m *Metrics) SubmitDuration(kind domain.Kind, d time.Duration) {
	m.SubmitLatency.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) AppendRetried() { m.AppendRetries.Inc() }

func (m *Metrics) StorageFailed(op string) { m.StorageFailures.WithLabelValues(op).Inc() }

func (m *Metrics) SnapshotCacheHit() { m.CacheHits.Inc() }

func (m *Metrics) SnapshotCacheMiss() { m.CacheMisses.Inc() }

func (m *Metrics) SnapshotRebuilt(d time.Duration) { m.SnapshotRebuilds.Observe(d.Seconds()) }

func (m *Metrics) StaleSnapshotDetected() { m.StaleSnapshots.Inc() }

func (m *Metrics) PeriodStruck() { m.PeriodsStruck.Inc() }

// RequestStarted tracks an in-flight HTTP request.
func (m *Metrics) RequestStarted() { m.HTTPInFlight.Inc() }

// RequestFinished records a completed HTTP request under its route pattern.
func (m *Metrics) RequestFinished(method, route string, status int, d time.Duration) {
	m.HTTPInFlight.Dec()
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
