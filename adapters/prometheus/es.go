package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/core/metrics"
)

// esMetrics implements es.ESMetrics using Prometheus.
type esMetrics struct {
	// Store metrics
	storeReadDuration   *prometheus.HistogramVec
	storeAppendDuration *prometheus.HistogramVec
	eventsAppended      *prometheus.CounterVec

	// Repository metrics
	repoLoadDuration     *prometheus.HistogramVec
	repoSaveDuration     *prometheus.HistogramVec
	concurrencyConflicts *prometheus.CounterVec

	commandsHandled *prometheus.CounterVec
}

// NewESMetrics creates the Prometheus implementation of es.ESMetrics and
// registers its collectors with reg.
func NewESMetrics(reg prometheus.Registerer) es.ESMetrics {
	m := &esMetrics{
		storeReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cartes_es_store_read_duration_seconds",
			Help:    "Event store stream read latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		storeAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cartes_es_store_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cartes_es_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"kind"}),

		repoLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cartes_es_repo_load_duration_seconds",
			Help:    "Repository load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		repoSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cartes_es_repo_save_duration_seconds",
			Help:    "Repository save latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cartes_es_concurrency_conflicts_total",
			Help: "Total number of optimistic concurrency failures",
		}, []string{"kind"}),

		commandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cartes_commands_total",
			Help: "Total number of handled commands by outcome",
		}, []string{"command", "outcome"}),
	}

	reg.MustRegister(
		m.storeReadDuration,
		m.storeAppendDuration,
		m.eventsAppended,
		m.repoLoadDuration,
		m.repoSaveDuration,
		m.concurrencyConflicts,
		m.commandsHandled,
	)

	return m
}

func (m *esMetrics) StoreReadDuration(kind string) metrics.Timer {
	return newTimer(m.storeReadDuration.WithLabelValues(kind))
}

func (m *esMetrics) StoreAppendDuration(kind string) metrics.Timer {
	return newTimer(m.storeAppendDuration.WithLabelValues(kind))
}

func (m *esMetrics) EventsAppended(kind string, count int) {
	m.eventsAppended.WithLabelValues(kind).Add(float64(count))
}

func (m *esMetrics) RepoLoadDuration(kind string) metrics.Timer {
	return newTimer(m.repoLoadDuration.WithLabelValues(kind))
}

func (m *esMetrics) RepoSaveDuration(kind string) metrics.Timer {
	return newTimer(m.repoSaveDuration.WithLabelValues(kind))
}

func (m *esMetrics) ConcurrencyConflict(kind string) {
	m.concurrencyConflicts.WithLabelValues(kind).Inc()
}

func (m *esMetrics) CommandHandled(command string, outcome string) {
	m.commandsHandled.WithLabelValues(command, outcome).Inc()
}

var _ es.ESMetrics = (*esMetrics)(nil)
