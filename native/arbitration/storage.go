package arbitration

import (
	"fmt"
	"math/big"
)

var paramsKey = []byte("arbitration/params")

func disputeKey(txID uint64) []byte {
	return []byte(fmt.Sprintf("arbitration/dispute/%d", txID))
}

func voteKey(txID uint64, arbitrator [20]byte) []byte {
	return []byte(fmt.Sprintf("arbitration/vote/%d/%x", txID, arbitrator))
}

type storedDispute struct {
	TransactionID  uint64
	DepositAtStake *big.Int
	IncentivePool  *big.Int
	CreatedAt      uint64
	Deadline       uint64
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
	FinalizedAt    uint64
}

func newStoredDispute(d *Dispute) *storedDispute {
	return &storedDispute{
		TransactionID:  d.TransactionID,
		DepositAtStake: cloneBigInt(d.DepositAtStake),
		IncentivePool:  cloneBigInt(d.IncentivePool),
		CreatedAt:      uint64(d.CreatedAt),
		Deadline:       uint64(d.Deadline),
		ItemOwner:      d.ItemOwner,
		Borrower:       d.Borrower,
		Active:         d.Active,
		Resolved:       d.Resolved,
		Panel:          append([][20]byte(nil), d.Panel...),
		VotesCast:      d.VotesCast,
		OwnerWon:       d.OwnerWon,
		Penalty:        cloneBigInt(d.Penalty),
		Refund:         cloneBigInt(d.Refund),
		FinalizedBy:    d.FinalizedBy,
		FinalizedAt:    uint64(d.FinalizedAt),
	}
}

func (s *storedDispute) toDispute() *Dispute {
	return &Dispute{
		TransactionID:  s.TransactionID,
		DepositAtStake: cloneBigInt(s.DepositAtStake),
		IncentivePool:  cloneBigInt(s.IncentivePool),
		CreatedAt:      int64(s.CreatedAt),
		Deadline:       int64(s.Deadline),
		ItemOwner:      s.ItemOwner,
		Borrower:       s.Borrower,
		Active:         s.Active,
		Resolved:       s.Resolved,
		Panel:          append([][20]byte(nil), s.Panel...),
		VotesCast:      s.VotesCast,
		OwnerWon:       s.OwnerWon,
		Penalty:        cloneBigInt(s.Penalty),
		Refund:         cloneBigInt(s.Refund),
		FinalizedBy:    s.FinalizedBy,
		FinalizedAt:    int64(s.FinalizedAt),
	}
}

type storedVote struct {
	TransactionID uint64
	Arbitrator    [20]byte
	FavorOwner    bool
	Severity      uint8
	CastAt        uint64
}

// storedParams holds everything the admin operations can change.
type storedParams struct {
	VotingPeriod uint64
	Panel        [][20]byte
	Ledger       [20]byte
	Locked       *big.Int
}

func (e *Engine) loadParams() (*storedParams, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var params storedParams
	ok, err := e.state.KVGet(paramsKey, &params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &storedParams{
			VotingPeriod: uint64(e.cfg.VotingPeriod),
			Panel:        append([][20]byte(nil), e.cfg.Panel...),
			Ledger:       e.cfg.Ledger,
			Locked:       big.NewInt(0),
		}, nil
	}
	if params.Locked == nil {
		params.Locked = big.NewInt(0)
	}
	return &params, nil
}

func (e *Engine) storeParams(params *storedParams) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(paramsKey, params)
}

func (e *Engine) loadDispute(txID uint64) (*Dispute, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedDispute
	ok, err := e.state.KVGet(disputeKey(txID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toDispute(), true, nil
}

func (e *Engine) storeDispute(d *Dispute) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(disputeKey(d.TransactionID), newStoredDispute(d))
}

func (e *Engine) loadVote(txID uint64, arbitrator [20]byte) (*Vote, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedVote
	ok, err := e.state.KVGet(voteKey(txID, arbitrator), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Vote{
		TransactionID: stored.TransactionID,
		Arbitrator:    stored.Arbitrator,
		FavorOwner:    stored.FavorOwner,
		Severity:      stored.Severity,
		HasVoted:      true,
		CastAt:        int64(stored.CastAt),
	}, true, nil
}

func (e *Engine) storeVote(v *Vote) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(voteKey(v.TransactionID, v.Arbitrator), &storedVote{
		TransactionID: v.TransactionID,
		Arbitrator:    v.Arbitrator,
		FavorOwner:    v.FavorOwner,
		Severity:      v.Severity,
		CastAt:        uint64(v.CastAt),
	})
}
