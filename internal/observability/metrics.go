package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk-refresh pipeline.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec // labels: kind, outcome={success,data_unavailable,provider_error}
	RefreshDuration *prometheus.HistogramVec
	RefreshJoined   *prometheus.CounterVec // deduplicated triggers that joined an in-flight refresh

	CacheReads *prometheus.CounterVec // labels: kind, status={fresh,stale,empty}

	RiskScore *prometheus.GaugeVec // latest composite score per kind
	RiskLevel *prometheus.GaugeVec // 0=low 1=moderate 2=high

	AlertsSent      prometheus.Counter
	AlertErrors     prometheus.Counter
	PublishedTotal  prometheus.Counter
	PublishErrors   prometheus.Counter
	HistoryWrites   prometheus.Counter
	HistoryErrors   prometheus.Counter
	SchedulerActive prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.RefreshJoined,
		m.CacheReads,
		m.RiskScore,
		m.RiskLevel,
		m.AlertsSent,
		m.AlertErrors,
		m.PublishedTotal,
		m.PublishErrors,
		m.HistoryWrites,
		m.HistoryErrors,
		m.SchedulerActive,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "refresh_total",
			Help:      "Completed refresh attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dustcast",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-evaluate-store cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		RefreshJoined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "refresh_joined_total",
			Help:      "Refresh triggers deduplicated against an in-flight refresh.",
		}, []string{"kind"}),
		CacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "cache_reads_total",
			Help:      "Cache lookups by kind and staleness at read time.",
		}, []string{"kind", "status"}),
		RiskScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dustcast",
			Name:      "risk_score",
			Help:      "Latest composite dust risk score per kind.",
		}, []string{"kind"}),
		RiskLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dustcast",
			Name:      "risk_level",
			Help:      "Latest risk tier per kind: 0 low, 1 moderate, 2 high.",
		}, []string{"kind"}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "alerts_sent_total",
			Help:      "Risk-level-change notifications delivered.",
		}),
		AlertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "alert_errors_total",
			Help:      "Failed notification deliveries.",
		}),
		PublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "assessments_published_total",
			Help:      "Assessments published to the Kafka sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publishes.",
		}),
		HistoryWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "history_writes_total",
			Help:      "Assessments archived to the history store.",
		}),
		HistoryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dustcast",
			Name:      "history_errors_total",
			Help:      "Failed history store writes.",
		}),
		SchedulerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dustcast",
			Name:      "scheduler_active",
			Help:      "1 while the refresh scheduler is running, 0 when shut down.",
		}),
	}
}

// ObserveAssessment updates the per-kind risk gauges after a successful refresh.
func (m *Metrics) ObserveAssessment(kind string, a domain.RiskAssessment) {
	m.RiskScore.WithLabelValues(kind).Set(a.RiskScore)
	m.RiskLevel.WithLabelValues(kind).Set(levelValue(a.RiskLevel))
}

func levelValue(l domain.RiskLevel) float64 {
	switch l {
	case domain.RiskHigh:
		return 2
	case domain.RiskModerate:
		return 1
	default:
		return 0
	}
}
