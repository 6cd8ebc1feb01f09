package arbitration

import (
	"math/big"
)

const (
	// DefaultPanelSize is the number of arbitrators on a panel.
	DefaultPanelSize = 3
	// DefaultIncentivePct mirrors the ledger's incentive share of a deposit.
	DefaultIncentivePct = 5
	// DefaultFinalizerPct is the share of the incentive pool paid to the
	// account that finalizes a dispute.
	DefaultFinalizerPct = 10

	DefaultVotingPeriod    int64 = 3 * 24 * 60 * 60
	DefaultMinVotingPeriod int64 = 60 * 60
	DefaultMaxVotingPeriod int64 = 30 * 24 * 60 * 60

	// MaxSeverity bounds the severity of an owner-favouring vote.
	MaxSeverity = 100
)

// Dispute tracks a damage claim on a loan from opening to verdict. Panel is
// the arbitrator set frozen when the dispute opened.
type Dispute struct {
	TransactionID  uint64
	DepositAtStake *big.Int
	IncentivePool  *big.Int
	CreatedAt      int64
	Deadline       int64
	ItemOwner      [20]byte
	Borrower       [20]byte
	Active         bool
	Resolved       bool
	Panel          [][20]byte
	VotesCast      uint64
	OwnerWon       bool
	Penalty        *big.Int
	Refund         *big.Int
	FinalizedBy    [20]byte
	FinalizedAt    int64
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	clone.DepositAtStake = cloneBigInt(d.DepositAtStake)
	clone.IncentivePool = cloneBigInt(d.IncentivePool)
	clone.Penalty = cloneBigInt(d.Penalty)
	clone.Refund = cloneBigInt(d.Refund)
	clone.Panel = append([][20]byte(nil), d.Panel...)
	return &clone
}

// OnPanel reports whether addr belongs to the dispute's frozen panel.
func (d *Dispute) OnPanel(addr [20]byte) bool {
	if d == nil {
		return false
	}
	for _, member := range d.Panel {
		if member == addr {
			return true
		}
	}
	return false
}

// Vote is one arbitrator's ballot on a dispute. Severity is the share of the
// deposit, in percent, the arbitrator awards the owner; it is zero for
// borrower-favouring votes.
type Vote struct {
	TransactionID uint64
	Arbitrator    [20]byte
	FavorOwner    bool
	Severity      uint8
	HasVoted      bool
	CastAt        int64
}

// Params are the current engine parameters.
type Params struct {
	VotingPeriod    int64
	MinVotingPeriod int64
	MaxVotingPeriod int64
	PanelSize       int
	IncentivePct    uint64
	FinalizerPct    uint64
	Ledger          [20]byte
	Owner           [20]byte
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
