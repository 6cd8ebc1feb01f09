package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks ledger and arbitration activity.
type LendingMetrics struct {
	transitions      *prometheus.CounterVec
	loansBorrowed    prometheus.Counter
	loansSettled     *prometheus.CounterVec
	disputesOpened   prometheus.Counter
	disputesFinal    *prometheus.CounterVec
	votesCast        *prometheus.CounterVec
	activeLoans      prometheus.Gauge
	activeDisputes   prometheus.Gauge
	lockedIncentives prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metrics registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Name:      "transitions_total",
				Help:      "State transitions by operation and outcome class.",
			}, []string{"operation", "outcome"}),
			loansBorrowed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "loans_borrowed_total",
				Help:      "Loans opened against listed items.",
			}),
			loansSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "loans_settled_total",
				Help:      "Loans concluded by settlement path.",
			}, []string{"path"}),
			disputesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "arbitration",
				Name:      "disputes_opened_total",
				Help:      "Disputes handed to the arbitration panel.",
			}),
			disputesFinal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "arbitration",
				Name:      "disputes_finalized_total",
				Help:      "Finalized disputes by verdict outcome.",
			}, []string{"outcome"}),
			votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "arbitration",
				Name:      "votes_cast_total",
				Help:      "Panel votes by side.",
			}, []string{"side"}),
			activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "active_loans",
				Help:      "Loans currently open.",
			}),
			activeDisputes: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "active_disputes",
				Help:      "Loans awaiting an arbitration outcome.",
			}),
			lockedIncentives: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lend",
				Subsystem: "arbitration",
				Name:      "locked_incentives",
				Help:      "Incentive value held for unfinalized disputes.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.transitions,
			lendingRegistry.loansBorrowed,
			lendingRegistry.loansSettled,
			lendingRegistry.disputesOpened,
			lendingRegistry.disputesFinal,
			lendingRegistry.votesCast,
			lendingRegistry.activeLoans,
			lendingRegistry.activeDisputes,
			lendingRegistry.lockedIncentives,
		)
	})
	return lendingRegistry
}

// ObserveTransition counts a transition attempt. Outcome is "ok" or the
// error class of the failure.
func (m *LendingMetrics) ObserveTransition(operation, outcome string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *LendingMetrics) IncBorrowed() {
	if m == nil {
		return
	}
	m.loansBorrowed.Inc()
}

// IncSettled counts a settlement; path is "amicable", "undeposited" or
// "disputed".
func (m *LendingMetrics) IncSettled(path string) {
	if m == nil {
		return
	}
	m.loansSettled.WithLabelValues(path).Inc()
}

func (m *LendingMetrics) IncDisputeOpened() {
	if m == nil {
		return
	}
	m.disputesOpened.Inc()
}

func (m *LendingMetrics) IncDisputeFinalized(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.disputesFinal.WithLabelValues(outcome).Inc()
}

func (m *LendingMetrics) IncVote(favorOwner bool) {
	if m == nil {
		return
	}
	side := "borrower"
	if favorOwner {
		side = "owner"
	}
	m.votesCast.WithLabelValues(side).Inc()
}

// SetActive publishes the ledger counters.
func (m *LendingMetrics) SetActive(loans, disputes uint64) {
	if m == nil {
		return
	}
	m.activeLoans.Set(float64(loans))
	m.activeDisputes.Set(float64(disputes))
}

func (m *LendingMetrics) SetLockedIncentives(amount *big.Int) {
	if m == nil {
		return
	}
	m.lockedIncentives.Set(bigToFloat(amount))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
