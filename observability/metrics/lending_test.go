package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLendingCounters(t *testing.T) {
	m := Lending()
	if Lending() != m {
		t.Fatalf("expected singleton registry")
	}
	before := testutil.ToFloat64(m.transitions.WithLabelValues("borrow", "ok"))
	m.ObserveTransition("borrow", "")
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("borrow", "ok")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	m.SetActive(3, 1)
	if got := testutil.ToFloat64(m.activeLoans); got != 3 {
		t.Fatalf("active loans = %v", got)
	}
	m.SetLockedIncentives(big.NewInt(55))
	if got := testutil.ToFloat64(m.lockedIncentives); got != 55 {
		t.Fatalf("locked incentives = %v", got)
	}
}

func TestNilLendingMetricsIsSafe(t *testing.T) {
	var m *LendingMetrics
	m.ObserveTransition("x", "y")
	m.IncVote(true)
	m.SetLockedIncentives(nil)
}
