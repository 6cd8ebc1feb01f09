package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"lendchain/crypto"
	"lendchain/native/arbitration"
	"lendchain/native/escrow"
)

const jsonRPCVersion = "2.0"

// RPCRequest is a JSON-RPC 2.0 call. Params carries a single object.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is the JSON-RPC 2.0 reply envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error object. Data carries the sentinel name of
// domain failures.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// paramError marks malformed request parameters.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, args ...any) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return invalidParams("params required")
	}
	if len(req.Params) > 1 {
		return invalidParams("expected a single params object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("%s must be a decimal integer", field)
	}
	if amount.Sign() < 0 {
		return nil, invalidParams("%s must not be negative", field)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(field, value)
}

func parseAddress(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, invalidParams("%s required", field)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParams("%s: %v", field, err)
	}
	return addr, nil
}

func decodeHex(field, value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, invalidParams("%s must be hex: %v", field, err)
	}
	return raw, nil
}

func parseItemID(field, value string, required bool) ([32]byte, error) {
	var id [32]byte
	if strings.TrimSpace(value) == "" {
		if required {
			return id, invalidParams("%s required", field)
		}
		return id, nil
	}
	raw, err := decodeHex(field, value)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, invalidParams("%s must be 32 bytes", field)
	}
	copy(id[:], raw)
	return id, nil
}

// txID accepts a JSON number or a decimal string.
type txID uint64

func (t *txID) UnmarshalJSON(data []byte) error {
	var num uint64
	if err := json.Unmarshal(data, &num); err == nil {
		*t = txID(num)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("transactionId must be a number")
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return fmt.Errorf("transactionId must be a number")
	}
	*t = txID(parsed)
	return nil
}

func formatAddress(addr [20]byte) string {
	return crypto.FromBytes(addr).String()
}

func formatAddresses(addrs [][20]byte) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, formatAddress(addr))
	}
	return out
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

type itemJSON struct {
	ID                    string `json:"id"`
	Owner                 string `json:"owner"`
	Nonce                 uint64 `json:"nonce"`
	Fee                   string `json:"fee"`
	Deposit               string `json:"deposit"`
	MetadataRef           string `json:"metadataRef"`
	Available             bool   `json:"available"`
	Delisted              bool   `json:"delisted"`
	MinBorrowerReputation int64  `json:"minBorrowerReputation"`
	CreatedAt             int64  `json:"createdAt"`
	UpdatedAt             int64  `json:"updatedAt"`
}

func formatItem(item *escrow.Item) itemJSON {
	return itemJSON{
		ID:                    formatHex(item.ID[:]),
		Owner:                 formatAddress(item.Owner),
		Nonce:                 item.Nonce,
		Fee:                   formatAmount(item.Fee),
		Deposit:               formatAmount(item.Deposit),
		MetadataRef:           item.MetadataRef,
		Available:             item.Available,
		Delisted:              item.Delisted,
		MinBorrowerReputation: item.MinBorrowerReputation,
		CreatedAt:             item.CreatedAt,
		UpdatedAt:             item.UpdatedAt,
	}
}

type transactionJSON struct {
	ID                       uint64 `json:"id"`
	ItemID                   string `json:"itemId"`
	Borrower                 string `json:"borrower"`
	ItemOwner                string `json:"itemOwner"`
	FeePaid                  string `json:"feePaid"`
	DepositPaid              string `json:"depositPaid"`
	Concluded                bool   `json:"concluded"`
	DamageReported           bool   `json:"damageReported"`
	Disputed                 bool   `json:"disputed"`
	OutcomeApplied           bool   `json:"outcomeApplied"`
	AmountPaidToOwner        string `json:"amountPaidToOwner"`
	AmountRefundedToBorrower string `json:"amountRefundedToBorrower"`
	CreatedAt                int64  `json:"createdAt"`
	ConcludedAt              int64  `json:"concludedAt,omitempty"`
}

func formatTransaction(tx *escrow.LoanTransaction) transactionJSON {
	return transactionJSON{
		ID:                       tx.ID,
		ItemID:                   formatHex(tx.ItemID[:]),
		Borrower:                 formatAddress(tx.Borrower),
		ItemOwner:                formatAddress(tx.ItemOwner),
		FeePaid:                  formatAmount(tx.FeePaid),
		DepositPaid:              formatAmount(tx.DepositPaid),
		Concluded:                tx.Concluded,
		DamageReported:           tx.DamageReported,
		Disputed:                 tx.Disputed(),
		OutcomeApplied:           tx.OutcomeApplied,
		AmountPaidToOwner:        formatAmount(tx.AmountPaidToOwner),
		AmountRefundedToBorrower: formatAmount(tx.AmountRefundedToBorrower),
		CreatedAt:                tx.CreatedAt,
		ConcludedAt:              tx.ConcludedAt,
	}
}

type disputeJSON struct {
	TransactionID  uint64   `json:"transactionId"`
	DepositAtStake string   `json:"depositAtStake"`
	IncentivePool  string   `json:"incentivePool"`
	CreatedAt      int64    `json:"createdAt"`
	Deadline       int64    `json:"deadline"`
	ItemOwner      string   `json:"itemOwner"`
	Borrower       string   `json:"borrower"`
	Active         bool     `json:"active"`
	Resolved       bool     `json:"resolved"`
	Panel          []string `json:"panel"`
	VotesCast      uint64   `json:"votesCast"`
	OwnerWon       bool     `json:"ownerWon"`
	Penalty        string   `json:"penalty"`
	Refund         string   `json:"refund"`
	FinalizedBy    string   `json:"finalizedBy,omitempty"`
	FinalizedAt    int64    `json:"finalizedAt,omitempty"`
}

func formatDispute(d *arbitration.Dispute) disputeJSON {
	out := disputeJSON{
		TransactionID:  d.TransactionID,
		DepositAtStake: formatAmount(d.DepositAtStake),
		IncentivePool:  formatAmount(d.IncentivePool),
		CreatedAt:      d.CreatedAt,
		Deadline:       d.Deadline,
		ItemOwner:      formatAddress(d.ItemOwner),
		Borrower:       formatAddress(d.Borrower),
		Active:         d.Active,
		Resolved:       d.Resolved,
		Panel:          formatAddresses(d.Panel),
		VotesCast:      d.VotesCast,
		OwnerWon:       d.OwnerWon,
		Penalty:        formatAmount(d.Penalty),
		Refund:         formatAmount(d.Refund),
		FinalizedAt:    d.FinalizedAt,
	}
	if d.FinalizedBy != ([20]byte{}) {
		out.FinalizedBy = formatAddress(d.FinalizedBy)
	}
	return out
}

type verdictJSON struct {
	Outcome       string `json:"outcome"`
	OwnerWon      bool   `json:"ownerWon"`
	Penalty       string `json:"penalty"`
	Refund        string `json:"refund"`
	OwnerVotes    uint64 `json:"ownerVotes"`
	BorrowerVotes uint64 `json:"borrowerVotes"`
	Severity      uint64 `json:"severity"`
}

func formatVerdict(v arbitration.Verdict) verdictJSON {
	return verdictJSON{
		Outcome:       string(v.Outcome),
		OwnerWon:      v.OwnerWon,
		Penalty:       formatAmount(v.Penalty),
		Refund:        formatAmount(v.Refund),
		OwnerVotes:    v.OwnerVotes,
		BorrowerVotes: v.BorrowerVotes,
		Severity:      v.Severity,
	}
}

type voteJSON struct {
	TransactionID uint64 `json:"transactionId"`
	Arbitrator    string `json:"arbitrator"`
	HasVoted      bool   `json:"hasVoted"`
	FavorOwner    bool   `json:"favorOwner"`
	Severity      uint8  `json:"severity"`
	CastAt        int64  `json:"castAt,omitempty"`
}

func formatVote(v *arbitration.Vote) voteJSON {
	return voteJSON{
		TransactionID: v.TransactionID,
		Arbitrator:    formatAddress(v.Arbitrator),
		HasVoted:      v.HasVoted,
		FavorOwner:    v.FavorOwner,
		Severity:      v.Severity,
		CastAt:        v.CastAt,
	}
}
