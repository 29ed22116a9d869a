package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// DomainMetrics counts funding workflow outcomes. All methods are nil-safe.
type DomainMetrics struct {
	milestoneDecisions *prometheus.CounterVec
	fundsReleased      prometheus.Counter
	fundsReleasedTotal prometheus.Counter
	investments        prometheus.Counter
	rulesEvaluated     *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		milestoneDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestone_decisions_total",
			Help:      "Milestone approval decisions by outcome.",
		}, []string{"decision"}),
		fundsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_releases_total",
			Help:      "Completed milestone payments.",
		}),
		fundsReleasedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_released_amount_total",
			Help:      "Sum of released milestone payment amounts.",
		}),
		investments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investments_created_total",
			Help:      "Investments recorded.",
		}),
		rulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_rule_evaluations_total",
			Help:      "Release rule evaluations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.milestoneDecisions, m.fundsReleased, m.fundsReleasedTotal, m.investments, m.rulesEvaluated)
	return m
}

func (m *DomainMetrics) MilestoneDecided(decision string) {
	if m == nil || m.milestoneDecisions == nil {
		return
	}
	m.milestoneDecisions.WithLabelValues(normalizeLabel(decision)).Inc()
}

func (m *DomainMetrics) FundsReleased(amount decimal.Decimal) {
	if m == nil || m.fundsReleased == nil {
		return
	}
	m.fundsReleased.Inc()
	m.fundsReleasedTotal.Add(amount.InexactFloat64())
}

func (m *DomainMetrics) InvestmentCreated() {
	if m == nil || m.investments == nil {
		return
	}
	m.investments.Inc()
}

// RuleEvaluated records "triggered", "skipped" or "error".
func (m *DomainMetrics) RuleEvaluated(result string) {
	if m == nil || m.rulesEvaluated == nil {
		return
	}
	m.rulesEvaluated.WithLabelValues(normalizeLabel(result)).Inc()
}
