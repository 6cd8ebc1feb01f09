package reputation

import (
	"errors"
	"fmt"
	"math"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	ownerScorePrefix      = []byte("reputation/owner/")
	borrowerScorePrefix   = []byte("reputation/borrower/")
	arbitratorScorePrefix = []byte("reputation/arbitrator/")

	errNilStore = errors.New("reputation: storage unavailable")
)

func scoreKey(role Role, addr [20]byte) ([]byte, error) {
	var prefix []byte
	switch role {
	case RoleOwner:
		prefix = ownerScorePrefix
	case RoleBorrower:
		prefix = borrowerScorePrefix
	case RoleArbitrator:
		prefix = arbitratorScorePrefix
	default:
		return nil, ErrInvalidRole
	}
	return []byte(fmt.Sprintf("%s%x", prefix, addr)), nil
}

// storedScore keeps the magnitude and sign apart because RLP has no signed
// integers.
type storedScore struct {
	Value    uint64
	Negative bool
}

func (s storedScore) int64() int64 {
	if !s.Negative {
		if s.Value > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(s.Value)
	}
	if s.Value > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(s.Value)
}

func newStoredScore(v int64) storedScore {
	if v >= 0 {
		return storedScore{Value: uint64(v)}
	}
	if v == math.MinInt64 {
		return storedScore{Value: uint64(math.MaxInt64) + 1, Negative: true}
	}
	return storedScore{Value: uint64(-v), Negative: true}
}

// Ledger persists owner, borrower and arbitrator scores.
type Ledger struct {
	store  storage
	bounds Bounds
}

// NewLedger constructs a ledger bound to the provided storage backend. Invalid
// bounds fall back to DefaultBounds.
func NewLedger(store storage, bounds Bounds) *Ledger {
	if bounds.Validate() != nil {
		bounds = DefaultBounds()
	}
	return &Ledger{store: store, bounds: bounds}
}

// Bounds returns the configured bounds.
func (l *Ledger) Bounds() Bounds {
	if l == nil {
		return DefaultBounds()
	}
	return l.bounds
}

// Score returns the current score for addr under role. Unseen owners and
// borrowers report Bounds.Initial; unseen arbitrators report zero.
func (l *Ledger) Score(role Role, addr [20]byte) (int64, error) {
	if l == nil || l.store == nil {
		return 0, errNilStore
	}
	key, err := scoreKey(role, addr)
	if err != nil {
		return 0, err
	}
	var stored storedScore
	ok, err := l.store.KVGet(key, &stored)
	if err != nil {
		return 0, err
	}
	if !ok {
		if role.Bounded() {
			return l.bounds.Initial, nil
		}
		return 0, nil
	}
	return stored.int64(), nil
}

// Adjust applies delta to the score of addr and returns the resulting change.
// Bounded roles are clamped after the delta is applied.
func (l *Ledger) Adjust(role Role, addr [20]byte, delta int64) (Change, error) {
	if !role.valid() {
		return Change{}, ErrInvalidRole
	}
	before, err := l.Score(role, addr)
	if err != nil {
		return Change{}, err
	}
	after := addSaturating(before, delta)
	if role.Bounded() {
		after = l.bounds.Clamp(after)
	}
	key, err := scoreKey(role, addr)
	if err != nil {
		return Change{}, err
	}
	if err := l.store.KVPut(key, newStoredScore(after)); err != nil {
		return Change{}, err
	}
	return Change{Role: role, Address: addr, Delta: delta, Before: before, After: after}, nil
}
