package bank

import (
	"errors"
	"fmt"
	"math/big"

	"lendchain/core/types"
)

var (
	// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrNegativeAmount rejects negative transfer amounts.
	ErrNegativeAmount = errors.New("bank: negative amount")
	errNilState       = errors.New("bank: state not configured")
)

type accountState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// ReceiveHook runs after a transfer has been written, modelling whatever side
// effect the recipient's receive path triggers. An error fails the transfer
// and with it the surrounding transition.
type ReceiveHook func(from, to [20]byte, amount *big.Int) error

// Bank moves native value between accounts held in state.
type Bank struct {
	state accountState
	hook  ReceiveHook
}

// New constructs a bank bound to the supplied account state.
func New(state accountState) *Bank {
	return &Bank{state: state}
}

// SetReceiveHook installs the hook invoked after every non-zero transfer.
// Passing nil removes it.
func (b *Bank) SetReceiveHook(hook ReceiveHook) { b.hook = hook }

func ensureBalance(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Balance returns the current balance of addr.
func (b *Bank) Balance(addr [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	acc, err := b.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(ensureBalance(acc).Balance), nil
}

// Credit mints amount into addr. Only genesis allocation uses it.
func (b *Bank) Credit(addr [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	acc, err := b.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureBalance(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return b.state.PutAccount(addr[:], acc)
}

// Transfer moves amount from one account to another. Zero amounts are a
// no-op and do not invoke the receive hook.
func (b *Bank) Transfer(from, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromAcc, err := b.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureBalance(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance, amount)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	if err := b.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	toAcc, err := b.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureBalance(toAcc)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := b.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	if b.hook != nil {
		return b.hook(from, to, new(big.Int).Set(amount))
	}
	return nil
}
