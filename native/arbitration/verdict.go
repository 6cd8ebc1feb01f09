package arbitration

import (
	"math/big"
)

// Outcome labels the verdict branch taken by ComputeVerdict.
type Outcome string

const (
	OutcomeNoVotes          Outcome = "no_votes"
	OutcomeOwnerMajority    Outcome = "owner_majority"
	OutcomeBorrowerMajority Outcome = "borrower_majority"
	OutcomeTie              Outcome = "tie"
)

// Verdict is the financial result of a dispute.
type Verdict struct {
	Outcome       Outcome
	OwnerWon      bool
	Penalty       *big.Int
	Refund        *big.Int
	OwnerVotes    uint64
	BorrowerVotes uint64
	Severity      uint64
}

var hundred = big.NewInt(100)

// ComputeVerdict tallies the cast votes against deposit.
//
// With no votes the borrower gets the full deposit back. A strict owner
// majority awards the owner deposit × average owner severity / 100. A strict
// borrower majority refunds the deposit. A tie counts as a borrower win but
// splits the deposit in half, the odd unit going to the borrower.
func ComputeVerdict(deposit *big.Int, votes []*Vote) Verdict {
	deposit = cloneBigInt(deposit)
	v := Verdict{Penalty: big.NewInt(0), Refund: new(big.Int).Set(deposit)}
	var severitySum uint64
	for _, vote := range votes {
		if vote == nil || !vote.HasVoted {
			continue
		}
		if vote.FavorOwner {
			v.OwnerVotes++
			severitySum += uint64(vote.Severity)
		} else {
			v.BorrowerVotes++
		}
	}
	switch {
	case v.OwnerVotes == 0 && v.BorrowerVotes == 0:
		v.Outcome = OutcomeNoVotes
	case v.OwnerVotes > v.BorrowerVotes:
		v.Outcome = OutcomeOwnerMajority
		v.OwnerWon = true
		v.Severity = severitySum / v.OwnerVotes
		v.Penalty = new(big.Int).Mul(deposit, new(big.Int).SetUint64(v.Severity))
		v.Penalty.Quo(v.Penalty, hundred)
		v.Refund = new(big.Int).Sub(deposit, v.Penalty)
	case v.BorrowerVotes > v.OwnerVotes:
		v.Outcome = OutcomeBorrowerMajority
	default:
		v.Outcome = OutcomeTie
		v.Penalty = new(big.Int).Quo(deposit, big.NewInt(2))
		v.Refund = new(big.Int).Sub(deposit, v.Penalty)
	}
	return v
}

// Share is one arbitrator's cut of an incentive pool.
type Share struct {
	Arbitrator [20]byte
	Amount     *big.Int
}

// Distribution is how an incentive pool is paid out.
type Distribution struct {
	FinalizerFee *big.Int
	Shares       []Share
	// Unused is the part of the pool returned to the borrower when nobody
	// voted.
	Unused *big.Int
}

// Total returns the sum of every payout in the distribution.
func (d Distribution) Total() *big.Int {
	total := new(big.Int).Add(cloneBigInt(d.FinalizerFee), cloneBigInt(d.Unused))
	for _, share := range d.Shares {
		total.Add(total, share.Amount)
	}
	return total
}

// SplitIncentives divides pool between the finalizer and the voters. Voters
// must be listed in panel order; integer remainder goes one unit at a time to
// voters from the front of that order. Without voters the whole pool is
// marked unused.
func SplitIncentives(pool *big.Int, finalizerPct uint64, voters [][20]byte) Distribution {
	pool = cloneBigInt(pool)
	if len(voters) == 0 {
		return Distribution{FinalizerFee: big.NewInt(0), Unused: pool}
	}
	fee := new(big.Int).Mul(pool, new(big.Int).SetUint64(finalizerPct))
	fee.Quo(fee, hundred)
	if fee.Cmp(pool) > 0 {
		fee.Set(pool)
	}
	rest := new(big.Int).Sub(pool, fee)
	count := big.NewInt(int64(len(voters)))
	each, remainder := new(big.Int).QuoRem(rest, count, new(big.Int))
	left := remainder.Int64()
	shares := make([]Share, 0, len(voters))
	for i, voter := range voters {
		amount := new(big.Int).Set(each)
		if int64(i) < left {
			amount.Add(amount, big.NewInt(1))
		}
		shares = append(shares, Share{Arbitrator: voter, Amount: amount})
	}
	return Distribution{FinalizerFee: fee, Shares: shares, Unused: big.NewInt(0)}
}
