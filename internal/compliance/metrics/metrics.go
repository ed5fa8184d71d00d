package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReportsFinalized     prometheus.Counter
	DiscrepanciesTotal   prometheus.Counter
	CompliancePercentage prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ReportsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftgate_reports_finalized_total",
			Help: "Total number of compliance reports finalized",
		}),
		DiscrepanciesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftgate_discrepancies_total",
			Help: "Total number of policy discrepancies detected",
		}),
		CompliancePercentage: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftgate_overall_compliance_percent",
			Help:    "Distribution of overall compliance percentages across finalized reports",
			Buckets: []float64{0, 25, 50, 75, 90, 95, 99, 100},
		}),
	}
}

func (m *Metrics) ObserveReport(overallPercent, diffCount int) {
	m.ReportsFinalized.Inc()
	m.DiscrepanciesTotal.Add(float64(diffCount))
	m.CompliancePercentage.Observe(float64(overallPercent))
}
