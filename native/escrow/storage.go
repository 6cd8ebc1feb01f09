package escrow

import (
	"fmt"
	"math/big"
)

var (
	itemPrefix        = "escrow/item/"
	ownerItemsPrefix  = "escrow/owner/"
	transactionPrefix = "escrow/tx/"
	statsKey          = []byte("escrow/stats")
	paramsKey         = []byte("escrow/params")
)

func itemKey(id [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", itemPrefix, id))
}

func ownerItemsKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/items", ownerItemsPrefix, owner))
}

func transactionKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", transactionPrefix, id))
}

type storedItem struct {
	ID             [32]byte
	Owner          [20]byte
	Nonce          uint64
	Fee            *big.Int
	Deposit        *big.Int
	MetadataRef    string
	Available      bool
	Delisted       bool
	MinRep         uint64
	MinRepNegative bool
	CreatedAt      uint64
	UpdatedAt      uint64
}

func newStoredItem(i *Item) *storedItem {
	stored := &storedItem{
		ID:          i.ID,
		Owner:       i.Owner,
		Nonce:       i.Nonce,
		Fee:         cloneBigInt(i.Fee),
		Deposit:     cloneBigInt(i.Deposit),
		MetadataRef: i.MetadataRef,
		Available:   i.Available,
		Delisted:    i.Delisted,
		CreatedAt:   uint64(i.CreatedAt),
		UpdatedAt:   uint64(i.UpdatedAt),
	}
	if i.MinBorrowerReputation < 0 {
		stored.MinRep = uint64(-i.MinBorrowerReputation)
		stored.MinRepNegative = true
	} else {
		stored.MinRep = uint64(i.MinBorrowerReputation)
	}
	return stored
}

func (s *storedItem) toItem() *Item {
	item := &Item{
		ID:          s.ID,
		Owner:       s.Owner,
		Nonce:       s.Nonce,
		Fee:         cloneBigInt(s.Fee),
		Deposit:     cloneBigInt(s.Deposit),
		MetadataRef: s.MetadataRef,
		Available:   s.Available,
		Delisted:    s.Delisted,
		CreatedAt:   int64(s.CreatedAt),
		UpdatedAt:   int64(s.UpdatedAt),
	}
	if s.MinRepNegative {
		item.MinBorrowerReputation = -int64(s.MinRep)
	} else {
		item.MinBorrowerReputation = int64(s.MinRep)
	}
	return item
}

type storedTransaction struct {
	ID                       uint64
	ItemID                   [32]byte
	Borrower                 [20]byte
	ItemOwner                [20]byte
	FeePaid                  *big.Int
	DepositPaid              *big.Int
	Concluded                bool
	DamageReported           bool
	OutcomeApplied           bool
	AmountPaidToOwner        *big.Int
	AmountRefundedToBorrower *big.Int
	CreatedAt                uint64
	ConcludedAt              uint64
}

func newStoredTransaction(t *LoanTransaction) *storedTransaction {
	return &storedTransaction{
		ID:                       t.ID,
		ItemID:                   t.ItemID,
		Borrower:                 t.Borrower,
		ItemOwner:                t.ItemOwner,
		FeePaid:                  cloneBigInt(t.FeePaid),
		DepositPaid:              cloneBigInt(t.DepositPaid),
		Concluded:                t.Concluded,
		DamageReported:           t.DamageReported,
		OutcomeApplied:           t.OutcomeApplied,
		AmountPaidToOwner:        cloneBigInt(t.AmountPaidToOwner),
		AmountRefundedToBorrower: cloneBigInt(t.AmountRefundedToBorrower),
		CreatedAt:                uint64(t.CreatedAt),
		ConcludedAt:              uint64(t.ConcludedAt),
	}
}

func (s *storedTransaction) toTransaction() *LoanTransaction {
	return &LoanTransaction{
		ID:                       s.ID,
		ItemID:                   s.ItemID,
		Borrower:                 s.Borrower,
		ItemOwner:                s.ItemOwner,
		FeePaid:                  cloneBigInt(s.FeePaid),
		DepositPaid:              cloneBigInt(s.DepositPaid),
		Concluded:                s.Concluded,
		DamageReported:           s.DamageReported,
		OutcomeApplied:           s.OutcomeApplied,
		AmountPaidToOwner:        cloneBigInt(s.AmountPaidToOwner),
		AmountRefundedToBorrower: cloneBigInt(s.AmountRefundedToBorrower),
		CreatedAt:                int64(s.CreatedAt),
		ConcludedAt:              int64(s.ConcludedAt),
	}
}

type storedParams struct {
	Arbitration [20]byte
}

func (e *Engine) loadItem(id [32]byte) (*Item, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedItem
	ok, err := e.state.KVGet(itemKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toItem(), true, nil
}

func (e *Engine) storeItem(item *Item) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(itemKey(item.ID), newStoredItem(item))
}

func (e *Engine) loadTransaction(id uint64) (*LoanTransaction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedTransaction
	ok, err := e.state.KVGet(transactionKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toTransaction(), true, nil
}

func (e *Engine) storeTransaction(tx *LoanTransaction) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(transactionKey(tx.ID), newStoredTransaction(tx))
}

func (e *Engine) loadStats() (*Stats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stats Stats
	ok, err := e.state.KVGet(statsKey, &stats)
	if err != nil {
		return nil, err
	}
	if !ok || stats.NextTransactionID == 0 {
		stats.NextTransactionID = 1
	}
	return &stats, nil
}

func (e *Engine) storeStats(stats *Stats) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(statsKey, stats)
}

func (e *Engine) arbitrationAddress() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	var params storedParams
	ok, err := e.state.KVGet(paramsKey, &params)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return e.cfg.Arbitration, nil
	}
	return params.Arbitration, nil
}
