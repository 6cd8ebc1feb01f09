package rpc

import (
	"context"
	"math/big"
	"strings"

	"lendchain/native/reputation"
)

type listItemParams struct {
	ItemID                string `json:"itemId,omitempty"`
	Fee                   string `json:"fee"`
	Deposit               string `json:"deposit"`
	MetadataRef           string `json:"metadataRef"`
	MinBorrowerReputation int64  `json:"minBorrowerReputation"`
}

type itemIDParams struct {
	ItemID string `json:"itemId"`
}

type borrowParams struct {
	ItemID    string `json:"itemId"`
	Fee       string `json:"fee"`
	Deposit   string `json:"deposit"`
	Signature string `json:"signature"`
	// Value is the amount the borrower attaches. It defaults to fee plus
	// deposit.
	Value string `json:"value,omitempty"`
}

type settleParams struct {
	TransactionID  txID `json:"transactionId"`
	DamageReported bool `json:"damageReported"`
}

type transactionIDParams struct {
	TransactionID txID `json:"transactionId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type reputationParams struct {
	Role    string `json:"role"`
	Address string `json:"address"`
}

type borrowDigestParams struct {
	ItemID   string `json:"itemId"`
	Borrower string `json:"borrower"`
}

type borrowDigestResult struct {
	Digest            string `json:"digest"`
	ItemID            string `json:"itemId"`
	Fee               string `json:"fee"`
	Deposit           string `json:"deposit"`
	Nonce             uint64 `json:"nonce"`
	Borrower          string `json:"borrower"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type statsResult struct {
	ActiveLoans       uint64 `json:"activeLoans"`
	ActiveDisputes    uint64 `json:"activeDisputes"`
	NextTransactionID uint64 `json:"nextTransactionId"`
	Arbitration       string `json:"arbitration"`
	Ledger            string `json:"ledger"`
}

type reputationResult struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Score   int64  `json:"score"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleListItem(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params listItemParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, false)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("fee", params.Fee)
	if err != nil {
		return nil, err
	}
	deposit, err := parseAmount("deposit", params.Deposit)
	if err != nil {
		return nil, err
	}
	item, err := s.node.ListItem(ctx, caller, itemID, fee, deposit, strings.TrimSpace(params.MetadataRef), params.MinBorrowerReputation)
	if err != nil {
		return nil, err
	}
	return formatItem(item), nil
}

func (s *Server) handleUpdateItem(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params listItemParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, true)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("fee", params.Fee)
	if err != nil {
		return nil, err
	}
	deposit, err := parseAmount("deposit", params.Deposit)
	if err != nil {
		return nil, err
	}
	item, err := s.node.UpdateItem(ctx, caller, itemID, fee, deposit, strings.TrimSpace(params.MetadataRef), params.MinBorrowerReputation)
	if err != nil {
		return nil, err
	}
	return formatItem(item), nil
}

func (s *Server) handleDelistItem(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params itemIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, true)
	if err != nil {
		return nil, err
	}
	item, err := s.node.DelistItem(ctx, caller, itemID)
	if err != nil {
		return nil, err
	}
	return formatItem(item), nil
}

func (s *Server) handleBorrow(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params borrowParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, true)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("fee", params.Fee)
	if err != nil {
		return nil, err
	}
	deposit, err := parseAmount("deposit", params.Deposit)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Signature) == "" {
		return nil, invalidParams("signature required")
	}
	signature, err := decodeHex("signature", params.Signature)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Add(fee, deposit)
	if strings.TrimSpace(params.Value) != "" {
		if value, err = parseAmount("value", params.Value); err != nil {
			return nil, err
		}
	}
	tx, err := s.node.Borrow(ctx, caller, itemID, fee, deposit, signature, value)
	if err != nil {
		return nil, err
	}
	return formatTransaction(tx), nil
}

func (s *Server) handleSettle(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params settleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	tx, err := s.node.Settle(ctx, caller, uint64(params.TransactionID), params.DamageReported)
	if err != nil {
		return nil, err
	}
	return formatTransaction(tx), nil
}

func (s *Server) handleSetArbitration(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	if err := s.node.SetArbitration(ctx, caller, addr); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleGetItem(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params itemIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, true)
	if err != nil {
		return nil, err
	}
	item, err := s.node.Item(itemID)
	if err != nil {
		return nil, err
	}
	return formatItem(item), nil
}

func (s *Server) handleGetItemsByOwner(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	items, err := s.node.ItemsByOwner(owner)
	if err != nil {
		return nil, err
	}
	out := make([]itemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, formatItem(item))
	}
	return out, nil
}

func (s *Server) handleGetTransaction(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params transactionIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	tx, err := s.node.Transaction(uint64(params.TransactionID))
	if err != nil {
		return nil, err
	}
	return formatTransaction(tx), nil
}

func (s *Server) handleGetStats(_ context.Context, _ [20]byte, _ *RPCRequest) (interface{}, error) {
	stats, err := s.node.Stats()
	if err != nil {
		return nil, err
	}
	arb, err := s.node.Arbitration()
	if err != nil {
		return nil, err
	}
	return statsResult{
		ActiveLoans:       stats.ActiveLoans,
		ActiveDisputes:    stats.ActiveDisputes,
		NextTransactionID: stats.NextTransactionID,
		Arbitration:       formatAddress(arb),
		Ledger:            formatAddress(s.node.LedgerAddress()),
	}, nil
}

func (s *Server) reputation(role reputation.Role, address string) (interface{}, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return nil, err
	}
	score, err := s.node.Reputation(role, addr)
	if err != nil {
		return nil, err
	}
	return reputationResult{Role: role.String(), Address: formatAddress(addr), Score: score}, nil
}

func (s *Server) handleGetReputation(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params reputationParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	role, err := reputation.ParseRole(params.Role)
	if err != nil {
		return nil, invalidParams("role must be owner, borrower or arbitrator")
	}
	return s.reputation(role, params.Address)
}

func (s *Server) handleBorrowDigest(_ context.Context, _ [20]byte, req *RPCRequest) (interface{}, error) {
	var params borrowDigestParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	itemID, err := parseItemID("itemId", params.ItemID, true)
	if err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		return nil, err
	}
	digest, item, err := s.node.BorrowDigest(itemID, borrower)
	if err != nil {
		return nil, err
	}
	domain := s.node.Domain()
	return borrowDigestResult{
		Digest:            formatHex(digest[:]),
		ItemID:            formatHex(item.ID[:]),
		Fee:               formatAmount(item.Fee),
		Deposit:           formatAmount(item.Deposit),
		Nonce:             item.Nonce,
		Borrower:          formatAddress(borrower),
		ChainID:           formatAmount(domain.ChainID),
		VerifyingContract: formatHex(domain.VerifyingContract[:]),
	}, nil
}
