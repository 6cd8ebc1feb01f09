package rpc

import (
	"context"
	"errors"
	"strings"

	"lendchain/core"
	"lendchain/indexer"
)

var errEventsDisabled = errors.New("event index disabled")

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type pauseResult struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type listEventsParams struct {
	After         uint64 `json:"after"`
	Limit         int    `json:"limit"`
	Type          string `json:"type,omitempty"`
	TransactionID txID   `json:"transactionId,omitempty"`
}

type eventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt int64             `json:"recordedAt"`
}

func (s *Server) handleGetBalance(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: formatAddress(addr), Balance: formatAmount(balance)}, nil
}

func (s *Server) handleSetPaused(_ context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params pauseParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	if module != core.ModuleLedger && module != core.ModuleArbitration {
		return nil, invalidParams("module must be %q or %q", core.ModuleLedger, core.ModuleArbitration)
	}
	if err := s.node.Pause(caller, module, params.Paused); err != nil {
		return nil, err
	}
	return pauseResult{Module: module, Paused: s.node.IsPaused(module)}, nil
}

func (s *Server) handleListEvents(ctx context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	if s.cfg.Events == nil {
		return nil, errEventsDisabled
	}
	var params listEventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	records, err := s.cfg.Events.List(ctx, indexerQuery(params))
	if err != nil {
		return nil, err
	}
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decoded()
		if err != nil {
			return nil, err
		}
		out = append(out, eventJSON{
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			Attributes: attrs,
			RecordedAt: rec.RecordedAt.Unix(),
		})
	}
	return out, nil
}

func indexerQuery(p listEventsParams) indexer.Query {
	return indexer.Query{
		After:         p.After,
		Limit:         p.Limit,
		Type:          strings.TrimSpace(p.Type),
		TransactionID: uint64(p.TransactionID),
	}
}
