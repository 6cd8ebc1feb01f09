package reputation

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestLedgerInitialScores(t *testing.T) {
	ledger := NewLedger(newMemoryStore(), Bounds{Min: 0, Max: 50, Initial: 10})

	for _, role := range []Role{RoleOwner, RoleBorrower} {
		score, err := ledger.Score(role, addr(1))
		if err != nil {
			t.Fatalf("score %s: %v", role, err)
		}
		if score != 10 {
			t.Fatalf("expected initial 10 for %s, got %d", role, score)
		}
	}
	score, err := ledger.Score(RoleArbitrator, addr(1))
	if err != nil {
		t.Fatalf("score arbitrator: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected arbitrator to start at 0, got %d", score)
	}
}

func TestLedgerAdjustClampsBoundedRoles(t *testing.T) {
	ledger := NewLedger(newMemoryStore(), Bounds{Min: 0, Max: 50, Initial: 10})

	change, err := ledger.Adjust(RoleOwner, addr(1), 100)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if change.Before != 10 || change.After != 50 {
		t.Fatalf("unexpected change %+v", change)
	}
	change, err = ledger.Adjust(RoleBorrower, addr(1), -25)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if change.After != 0 {
		t.Fatalf("expected borrower clamped to 0, got %d", change.After)
	}
	// Owner and borrower ledgers are independent.
	owner, _ := ledger.Score(RoleOwner, addr(1))
	if owner != 50 {
		t.Fatalf("owner score changed: %d", owner)
	}
}

func TestLedgerArbitratorGoesNegative(t *testing.T) {
	ledger := NewLedger(newMemoryStore(), DefaultBounds())

	for i := 0; i < 3; i++ {
		if _, err := ledger.Adjust(RoleArbitrator, addr(7), -2); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	score, err := ledger.Score(RoleArbitrator, addr(7))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != -6 {
		t.Fatalf("expected -6, got %d", score)
	}
}

func TestLedgerRejectsUnknownRole(t *testing.T) {
	ledger := NewLedger(newMemoryStore(), DefaultBounds())
	if _, err := ledger.Adjust(Role(9), addr(1), 1); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestStoredScoreRoundTripExtremes(t *testing.T) {
	for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
		if got := newStoredScore(v).int64(); got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestInvalidBoundsFallBackToDefault(t *testing.T) {
	ledger := NewLedger(newMemoryStore(), Bounds{Min: 10, Max: 5, Initial: 7})
	if ledger.Bounds() != DefaultBounds() {
		t.Fatalf("expected default bounds, got %+v", ledger.Bounds())
	}
}
