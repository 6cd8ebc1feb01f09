package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"lendchain/crypto"
)

var (
	// ErrInvalidAllocation reports a malformed genesis balance entry.
	ErrInvalidAllocation = errors.New("genesis: invalid allocation")

	appliedKey = []byte("genesis/applied")
)

// Allocation is a balance grant as it appears in the node configuration.
// Address accepts lend bech32 or 0x hex; Balance is a base-10 integer.
type Allocation struct {
	Address string `toml:"Address" yaml:"address" json:"address"`
	Balance string `toml:"Balance" yaml:"balance" json:"balance"`
}

// Entry is a parsed allocation.
type Entry struct {
	Address [20]byte
	Balance *big.Int
}

type markerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type crediter interface {
	Credit(addr [20]byte, amount *big.Int) error
}

// ParseAllocations validates the configured grants and returns them ordered by
// address. Duplicate addresses and non-positive balances are rejected.
func ParseAllocations(allocs []Allocation) ([]Entry, error) {
	entries := make([]Entry, 0, len(allocs))
	seen := make(map[[20]byte]struct{}, len(allocs))
	for i, alloc := range allocs {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidAllocation, i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%w: entry %d: duplicate address %s", ErrInvalidAllocation, i, alloc.Address)
		}
		seen[addr] = struct{}{}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Balance), 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: entry %d: balance %q", ErrInvalidAllocation, i, alloc.Balance)
		}
		entries = append(entries, Entry{Address: addr, Balance: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Address[:], entries[j].Address[:]) < 0
	})
	return entries, nil
}

// Apply credits every entry once. A marker in state makes later calls no-ops
// so restarting a node over an existing database never mints twice. The
// returned flag reports whether balances were written.
func Apply(state markerState, bank crediter, entries []Entry) (bool, error) {
	if state == nil || bank == nil {
		return false, fmt.Errorf("genesis: state and bank required")
	}
	var done bool
	ok, err := state.KVGet(appliedKey, &done)
	if err != nil {
		return false, err
	}
	if ok && done {
		return false, nil
	}
	for _, entry := range entries {
		if err := bank.Credit(entry.Address, entry.Balance); err != nil {
			return false, fmt.Errorf("genesis: credit %x: %w", entry.Address, err)
		}
	}
	if err := state.KVPut(appliedKey, true); err != nil {
		return false, err
	}
	return true, nil
}
