package rpc

import (
	"context"

	"lendchain/native/reputation"
)

type castVoteParams struct {
	TransactionID txID `json:"transactionId"`
	FavorOwner    bool `json:"favorOwner"`
	Severity      int  `json:"severity"`
}

type votingPeriodParams struct {
	Seconds int64 `json:"seconds"`
}

type panelParams struct {
	Panel []string `json:"panel"`
}

type withdrawStrayParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type voteLookupParams struct {
	TransactionID txID   `json:"transactionId"`
	Arbitrator    string `json:"arbitrator"`
}

type arbitratorParams struct {
	Address string `json:"address"`
}

type finalizeResult struct {
	Dispute disputeJSON `json:"dispute"`
	Verdict verdictJSON `json:"verdict"`
}

type paramsResult struct {
	VotingPeriod     int64    `json:"votingPeriod"`
	MinVotingPeriod  int64    `json:"minVotingPeriod"`
	MaxVotingPeriod  int64    `json:"maxVotingPeriod"`
	PanelSize        int      `json:"panelSize"`
	IncentivePct     uint64   `json:"incentivePct"`
	FinalizerPct     uint64   `json:"finalizerPct"`
	Ledger           string   `json:"ledger"`
	Owner            string   `json:"owner"`
	Panel            []string `json:"panel"`
	LockedIncentives string   `json:"lockedIncentives"`
	StrayBalance     string   `json:"strayBalance"`
}

func (s *Server) handleCastVote(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params castVoteParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.node.CastVote(ctx, caller, uint64(params.TransactionID), params.FavorOwner, params.Severity); err != nil {
		return nil, err
	}
	vote, err := s.node.Vote(uint64(params.TransactionID), caller)
	if err != nil {
		return nil, err
	}
	return formatVote(vote), nil
}

func (s *Server) handleFinalize(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params transactionIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	dispute, verdict, err := s.node.Finalize(ctx, caller, uint64(params.TransactionID))
	if err != nil {
		return nil, err
	}
	return finalizeResult{Dispute: formatDispute(dispute), Verdict: formatVerdict(verdict)}, nil
}

func (s *Server) handleSetVotingPeriod(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params votingPeriodParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.node.SetVotingPeriod(ctx, caller, params.Seconds); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleSetPanel(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params panelParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	panel := make([][20]byte, 0, len(params.Panel))
	for _, member := range params.Panel {
		addr, err := parseAddress("panel", member)
		if err != nil {
			return nil, err
		}
		panel = append(panel, addr)
	}
	if err := s.node.SetPanel(ctx, caller, panel); err != nil {
		return nil, err
	}
	return map[string][]string{"panel": formatAddresses(panel)}, nil
}

func (s *Server) handleWithdrawStray(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params withdrawStrayParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.WithdrawStray(ctx, caller, to, amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleSetLedger(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	if err := s.node.SetLedger(ctx, caller, addr); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleGetDispute(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params transactionIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	dispute, err := s.node.Dispute(uint64(params.TransactionID))
	if err != nil {
		return nil, err
	}
	return formatDispute(dispute), nil
}

func (s *Server) handleGetVote(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params voteLookupParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	arbitrator, err := parseAddress("arbitrator", params.Arbitrator)
	if err != nil {
		return nil, err
	}
	vote, err := s.node.Vote(uint64(params.TransactionID), arbitrator)
	if err != nil {
		return nil, err
	}
	return formatVote(vote), nil
}

func (s *Server) handleGetPanel(_ context.Context, _ [20]byte, _ *RPCRequest) (interface{}, error) {
	panel, err := s.node.Panel()
	if err != nil {
		return nil, err
	}
	return formatAddresses(panel), nil
}

func (s *Server) handleGetParams(_ context.Context, _ [20]byte, _ *RPCRequest) (interface{}, error) {
	params, err := s.node.ArbitrationParams()
	if err != nil {
		return nil, err
	}
	panel, err := s.node.Panel()
	if err != nil {
		return nil, err
	}
	locked, err := s.node.LockedIncentives()
	if err != nil {
		return nil, err
	}
	stray, err := s.node.StrayBalance()
	if err != nil {
		return nil, err
	}
	return paramsResult{
		VotingPeriod:     params.VotingPeriod,
		MinVotingPeriod:  params.MinVotingPeriod,
		MaxVotingPeriod:  params.MaxVotingPeriod,
		PanelSize:        params.PanelSize,
		IncentivePct:     params.IncentivePct,
		FinalizerPct:     params.FinalizerPct,
		Ledger:           formatAddress(params.Ledger),
		Owner:            formatAddress(params.Owner),
		Panel:            formatAddresses(panel),
		LockedIncentives: formatAmount(locked),
		StrayBalance:     formatAmount(stray),
	}, nil
}

func (s *Server) handleGetArbitratorReputation(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params arbitratorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	return s.reputation(reputation.RoleArbitrator, params.Address)
}
