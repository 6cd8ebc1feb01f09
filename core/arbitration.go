package core

import (
	"context"
	"math/big"

	"lendchain/native/arbitration"
	"lendchain/native/reputation"
)

// CastVote records a panel member's ballot.
func (n *Node) CastVote(ctx context.Context, caller [20]byte, txID uint64, favorOwner bool, severity int) error {
	err := n.apply(ctx, ModuleArbitration, "cast_vote", func() error {
		return n.arbitration.CastVote(caller, txID, favorOwner, severity)
	})
	if err == nil {
		n.metrics.IncVote(favorOwner)
	}
	return err
}

// Finalize closes a dispute, applies the verdict on the ledger and pays
// incentives, all in one transition.
func (n *Node) Finalize(ctx context.Context, caller [20]byte, txID uint64) (*arbitration.Dispute, arbitration.Verdict, error) {
	var (
		dispute *arbitration.Dispute
		verdict arbitration.Verdict
	)
	err := n.apply(ctx, ModuleArbitration, "finalize", func() error {
		var err error
		dispute, verdict, err = n.arbitration.Finalize(caller, txID)
		return err
	})
	if err != nil {
		return nil, arbitration.Verdict{}, err
	}
	n.metrics.IncDisputeFinalized(string(verdict.Outcome))
	return dispute, verdict, nil
}

// SetVotingPeriod changes the voting window for future disputes.
func (n *Node) SetVotingPeriod(ctx context.Context, caller [20]byte, period int64) error {
	return n.apply(ctx, ModuleArbitration, "set_voting_period", func() error {
		return n.arbitration.SetVotingPeriod(caller, period)
	})
}

// SetPanel replaces the panel used for future disputes.
func (n *Node) SetPanel(ctx context.Context, caller [20]byte, panel [][20]byte) error {
	return n.apply(ctx, ModuleArbitration, "set_panel", func() error {
		return n.arbitration.SetPanel(caller, panel)
	})
}

// WithdrawStray moves value the arbitration account holds beyond its locked
// incentives.
func (n *Node) WithdrawStray(ctx context.Context, caller, to [20]byte, amount *big.Int) error {
	return n.apply(ctx, ModuleArbitration, "withdraw_stray", func() error {
		return n.arbitration.WithdrawStray(caller, to, amount)
	})
}

// SetLedger repoints the trusted ledger identity of the arbitration engine.
func (n *Node) SetLedger(ctx context.Context, caller, ledger [20]byte) error {
	return n.apply(ctx, ModuleArbitration, "set_ledger", func() error {
		return n.arbitration.SetLedger(caller, ledger)
	})
}

// Dispute returns the dispute opened for txID.
func (n *Node) Dispute(txID uint64) (*arbitration.Dispute, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.Dispute(txID)
}

// Vote returns an arbitrator's ballot on txID.
func (n *Node) Vote(txID uint64, arbitrator [20]byte) (*arbitration.Vote, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.Vote(txID, arbitrator)
}

// Panel returns the panel future disputes will freeze.
func (n *Node) Panel() ([][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.Panel()
}

// ArbitrationParams returns the live arbitration parameters.
func (n *Node) ArbitrationParams() (arbitration.Params, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.Params()
}

// LockedIncentives returns the incentive value held for open disputes.
func (n *Node) LockedIncentives() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.LockedIncentives()
}

// StrayBalance returns what WithdrawStray may currently move.
func (n *Node) StrayBalance() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arbitration.StrayBalance()
}

// Reputation returns the score of addr in role.
func (n *Node) Reputation(role reputation.Role, addr [20]byte) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch role {
	case reputation.RoleOwner:
		return n.reputation.Owner(addr)
	case reputation.RoleBorrower:
		return n.reputation.Borrower(addr)
	case reputation.RoleArbitrator:
		return n.reputation.Arbitrator(addr)
	default:
		return 0, reputation.ErrInvalidRole
	}
}
