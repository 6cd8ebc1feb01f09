package arbitration

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func ownerVote(severity uint8) *Vote {
	return &Vote{FavorOwner: true, Severity: severity, HasVoted: true}
}
func borrowerVote() *Vote { return &Vote{HasVoted: true} }

func TestComputeVerdict(t *testing.T) {
	deposit := big.NewInt(1_000)
	cases := []struct {
		name     string
		votes    []*Vote
		outcome  Outcome
		ownerWon bool
		penalty  int64
		refund   int64
	}{
		{"no votes", nil, OutcomeNoVotes, false, 0, 1_000},
		{"majority averages severity", []*Vote{ownerVote(70), ownerVote(50), borrowerVote()}, OutcomeOwnerMajority, true, 600, 400},
		{"unanimous owner", []*Vote{ownerVote(100)}, OutcomeOwnerMajority, true, 1_000, 0},
		{"borrower majority", []*Vote{ownerVote(100), borrowerVote(), borrowerVote()}, OutcomeBorrowerMajority, false, 0, 1_000},
		{"tie ignores severity", []*Vote{ownerVote(1), borrowerVote()}, OutcomeTie, false, 500, 500},
		{"uncast ballots ignored", []*Vote{{FavorOwner: true, Severity: 90}}, OutcomeNoVotes, false, 0, 1_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ComputeVerdict(deposit, tc.votes)
			require.Equal(t, tc.outcome, v.Outcome)
			require.Equal(t, tc.ownerWon, v.OwnerWon)
			require.Equal(t, tc.penalty, v.Penalty.Int64())
			require.Equal(t, tc.refund, v.Refund.Int64())
			require.LessOrEqual(t, new(big.Int).Add(v.Penalty, v.Refund).Cmp(deposit), 0)
		})
	}
}

func TestSplitIncentives(t *testing.T) {
	voters := [][20]byte{{1}, {2}, {3}}

	d := SplitIncentives(big.NewInt(101), 10, voters)
	require.Equal(t, int64(10), d.FinalizerFee.Int64())
	require.Len(t, d.Shares, 3)
	require.Equal(t, []int64{31, 30, 30}, []int64{d.Shares[0].Amount.Int64(), d.Shares[1].Amount.Int64(), d.Shares[2].Amount.Int64()})
	require.Equal(t, int64(101), d.Total().Int64())
	require.Zero(t, d.Unused.Sign())

	empty := SplitIncentives(big.NewInt(77), 10, nil)
	require.Zero(t, empty.FinalizerFee.Sign())
	require.Empty(t, empty.Shares)
	require.Equal(t, int64(77), empty.Unused.Int64())
}
