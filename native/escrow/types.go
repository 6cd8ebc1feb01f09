package escrow

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Item is a lendable listing. The nonce advances on every borrow so a borrow
// authorization can be used at most once.
type Item struct {
	ID                    [32]byte
	Owner                 [20]byte
	Nonce                 uint64
	Fee                   *big.Int
	Deposit               *big.Int
	MetadataRef           string
	Available             bool
	Delisted              bool
	MinBorrowerReputation int64
	CreatedAt             int64
	UpdatedAt             int64
}

// Borrowable reports whether the item can currently be borrowed.
func (i *Item) Borrowable() bool {
	return i != nil && i.Available && !i.Delisted
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Fee = cloneBigInt(i.Fee)
	clone.Deposit = cloneBigInt(i.Deposit)
	return &clone
}

// LoanTransaction records a single borrow of an item and how its escrowed
// deposit was eventually split.
type LoanTransaction struct {
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
	CreatedAt                int64
	ConcludedAt              int64
}

// Clone returns a deep copy of the transaction.
func (t *LoanTransaction) Clone() *LoanTransaction {
	if t == nil {
		return nil
	}
	clone := *t
	clone.FeePaid = cloneBigInt(t.FeePaid)
	clone.DepositPaid = cloneBigInt(t.DepositPaid)
	clone.AmountPaidToOwner = cloneBigInt(t.AmountPaidToOwner)
	clone.AmountRefundedToBorrower = cloneBigInt(t.AmountRefundedToBorrower)
	return &clone
}

// Disputed reports whether the transaction is waiting for an arbitration
// outcome.
func (t *LoanTransaction) Disputed() bool {
	return t != nil && t.Concluded && t.DamageReported && !t.OutcomeApplied && t.DepositPaid.Sign() > 0
}

// Stats are the ledger-wide counters.
type Stats struct {
	ActiveLoans       uint64
	ActiveDisputes    uint64
	NextTransactionID uint64
}

// ItemIDFromMetadata derives the content id of an item listed by owner.
func ItemIDFromMetadata(owner [20]byte, metadataRef string) [32]byte {
	return ethcrypto.Keccak256Hash(owner[:], []byte(metadataRef))
}

// SanitizeItem validates the supplied item and returns a normalised clone
// with non-nil amounts.
func SanitizeItem(i *Item) (*Item, error) {
	if i == nil {
		return nil, fmt.Errorf("nil item")
	}
	clone := i.Clone()
	if clone.ID == ([32]byte{}) {
		return nil, fmt.Errorf("item id required")
	}
	if clone.Owner == ([20]byte{}) {
		return nil, fmt.Errorf("item owner required")
	}
	if clone.Fee.Sign() < 0 {
		return nil, fmt.Errorf("item fee must be non-negative")
	}
	if clone.Deposit.Sign() < 0 {
		return nil, fmt.Errorf("item deposit must be non-negative")
	}
	return clone, nil
}

// SanitizeTransaction validates the payout invariant of a transaction.
func SanitizeTransaction(t *LoanTransaction) (*LoanTransaction, error) {
	if t == nil {
		return nil, fmt.Errorf("nil transaction")
	}
	clone := t.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("transaction id required")
	}
	paid := new(big.Int).Add(clone.AmountPaidToOwner, clone.AmountRefundedToBorrower)
	if paid.Cmp(clone.DepositPaid) > 0 {
		return nil, fmt.Errorf("transaction payouts %s exceed deposit %s", paid, clone.DepositPaid)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
