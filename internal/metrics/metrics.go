package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics groups the Prometheus instruments of the analysis pipeline.
type AuditMetrics struct {
	AnalysesTotal      *prometheus.CounterVec
	AnalysisDuration   prometheus.Histogram
	RecordsSkipped     prometheus.Counter
	FindingsTotal      *prometheus.CounterVec
	CorrectionRequests prometheus.Counter
	QualityScore       prometheus.Histogram
}

// New registers the audit instruments on the given registerer.
func New(reg prometheus.Registerer) *AuditMetrics {
	m := &AuditMetrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "analyses_total",
			Help:      "Daily analyses run, by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "audit",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one daily analysis.",
			Buckets:   prometheus.DefBuckets,
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "records_skipped_total",
			Help:      "Raw source records dropped during normalization.",
		}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "findings_total",
			Help:      "Findings produced, by severity.",
		}, []string{"severity"}),
		CorrectionRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "correction_requests_total",
			Help:      "Correction requests opened.",
		}),
		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "audit",
			Name:      "final_quality_score",
			Help:      "Distribution of final daily quality scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.RecordsSkipped,
		m.FindingsTotal,
		m.CorrectionRequests,
		m.QualityScore,
	)
	return m
}
