package types

import "math/big"

// Account holds the native balance of a single identity. Escrow vaults, the
// incentive reserve and the arbitration vault are ordinary accounts whose
// addresses are fixed in configuration.
type Account struct {
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate balances without touching
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := &Account{Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
