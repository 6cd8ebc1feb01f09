package reputation

import (
	"errors"
	"math/big"

	"lendchain/core/events"
)

// Reasons attached to reputation.adjusted events.
const (
	ReasonAmicable      = "amicable"
	ReasonDamageNoStake = "damage_no_deposit"
	ReasonOutcome       = "arbitration_outcome"
	ReasonVoted         = "voted"
	ReasonSilent        = "silent"
)

const (
	winnerBonus      = 1
	undepositedBonus = 1
	undepositedFine  = 2
	voteBonus        = 1
	silenceFine      = 2
)

var errNilEngine = errors.New("reputation: engine not initialised")

// Engine applies the reputation rules of loan settlement and arbitration on
// top of the ledger.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage, bounds Bounds) *Engine {
	return &Engine{ledger: NewLedger(store, bounds), emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used for adjustment events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Ledger exposes the underlying ledger.
func (e *Engine) Ledger() *Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

// Owner returns the owner reputation of addr.
func (e *Engine) Owner(addr [20]byte) (int64, error) {
	if e == nil {
		return 0, errNilEngine
	}
	return e.ledger.Score(RoleOwner, addr)
}

// Borrower returns the borrower reputation of addr.
func (e *Engine) Borrower(addr [20]byte) (int64, error) {
	if e == nil {
		return 0, errNilEngine
	}
	return e.ledger.Score(RoleBorrower, addr)
}

// Arbitrator returns the arbitrator reputation of addr.
func (e *Engine) Arbitrator(addr [20]byte) (int64, error) {
	if e == nil {
		return 0, errNilEngine
	}
	return e.ledger.Score(RoleArbitrator, addr)
}

func (e *Engine) adjust(role Role, addr [20]byte, delta int64, reason string) error {
	if e == nil {
		return errNilEngine
	}
	change, err := e.ledger.Adjust(role, addr, delta)
	if err != nil {
		return err
	}
	e.emitter.Emit(NewAdjustedEvent(change, reason))
	return nil
}

// RewardAmicable raises both parties by Delta(fee) after a damage-free return.
func (e *Engine) RewardAmicable(owner, borrower [20]byte, fee *big.Int) error {
	step := Delta(fee)
	if err := e.adjust(RoleOwner, owner, step, ReasonAmicable); err != nil {
		return err
	}
	return e.adjust(RoleBorrower, borrower, step, ReasonAmicable)
}

// ApplyUndepositedDamage handles damage reported on a loan without deposit:
// the owner gains one point and the borrower loses two.
func (e *Engine) ApplyUndepositedDamage(owner, borrower [20]byte) error {
	if err := e.adjust(RoleOwner, owner, undepositedBonus, ReasonDamageNoStake); err != nil {
		return err
	}
	return e.adjust(RoleBorrower, borrower, -undepositedFine, ReasonDamageNoStake)
}

// ApplyOutcome rewards the winner with one point and charges the loser
// Delta(amountLost).
func (e *Engine) ApplyOutcome(owner, borrower [20]byte, ownerWon bool, amountLost *big.Int) error {
	loss := negate(Delta(amountLost))
	if ownerWon {
		if err := e.adjust(RoleOwner, owner, winnerBonus, ReasonOutcome); err != nil {
			return err
		}
		return e.adjust(RoleBorrower, borrower, loss, ReasonOutcome)
	}
	if err := e.adjust(RoleBorrower, borrower, winnerBonus, ReasonOutcome); err != nil {
		return err
	}
	return e.adjust(RoleOwner, owner, loss, ReasonOutcome)
}

// RecordParticipation raises every panel member that voted by one point and
// lowers every silent member by two. Members are processed in panel order.
func (e *Engine) RecordParticipation(panel [][20]byte, voted func([20]byte) bool) error {
	for _, member := range panel {
		if voted != nil && voted(member) {
			if err := e.adjust(RoleArbitrator, member, voteBonus, ReasonVoted); err != nil {
				return err
			}
			continue
		}
		if err := e.adjust(RoleArbitrator, member, -silenceFine, ReasonSilent); err != nil {
			return err
		}
	}
	return nil
}
