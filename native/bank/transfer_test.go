package bank

import (
	"errors"
	"math/big"
	"testing"

	"lendchain/core/state"
	"lendchain/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	b := New(state.NewManager(storage.NewMemDB()))
	alice, bob := addr(0x01), addr(0x02)
	if err := b.Credit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aBal, _ := b.Balance(alice)
	bBal, _ := b.Balance(bob)
	if aBal.Int64() != 60 || bBal.Int64() != 40 {
		t.Fatalf("unexpected balances alice=%s bob=%s", aBal, bBal)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	b := New(state.NewManager(storage.NewMemDB()))
	err := b.Transfer(addr(0x01), addr(0x02), big.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestReceiveHookErrorPropagates(t *testing.T) {
	b := New(state.NewManager(storage.NewMemDB()))
	sentinel := errors.New("hook failed")
	calls := 0
	b.SetReceiveHook(func(from, to [20]byte, amount *big.Int) error {
		calls++
		return sentinel
	})
	if err := b.Credit(addr(0x01), big.NewInt(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Transfer(addr(0x01), addr(0x02), big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should be a no-op: %v", err)
	}
	if calls != 0 {
		t.Fatalf("hook must not run for zero transfers")
	}
	if err := b.Transfer(addr(0x01), addr(0x02), big.NewInt(5)); !errors.Is(err, sentinel) {
		t.Fatalf("expected hook error, got %v", err)
	}
}
