package config

import (
	"math/big"

	"lendchain/core"
	"lendchain/core/genesis"
	"lendchain/native/arbitration"
	"lendchain/native/escrow"
	"lendchain/native/reputation"
)

// GenesisEntries parses the configured balance allocations.
func (c *Config) GenesisEntries() ([]genesis.Entry, error) {
	return genesis.ParseAllocations(c.Genesis)
}

// NodeConfig converts the validated file configuration into engine wiring.
func (c *Config) NodeConfig() (core.Config, error) {
	if err := c.Validate(); err != nil {
		return core.Config{}, err
	}
	ledger, _ := requiredAddress("Ledger.Address", c.Ledger.Address)
	reserve, _ := requiredAddress("Ledger.Reserve", c.Ledger.Reserve)
	admin, _ := optionalAddress("Ledger.Admin", c.Ledger.Admin)
	arb, _ := requiredAddress("Arbitration.Address", c.Arbitration.Address)
	owner, _ := optionalAddress("Arbitration.Owner", c.Arbitration.Owner)
	panel, err := parseAddresses("Arbitration.Panel", c.Arbitration.Panel)
	if err != nil {
		return core.Config{}, err
	}
	entries, err := c.GenesisEntries()
	if err != nil {
		return core.Config{}, err
	}
	return core.Config{
		Ledger: escrow.Config{
			Address:      ledger,
			Admin:        admin,
			Reserve:      reserve,
			Arbitration:  arb,
			IncentivePct: c.Ledger.IncentivePct,
			ChainID:      new(big.Int).SetUint64(c.ChainID),
		},
		Arbitration: arbitration.Config{
			Address:         arb,
			Owner:           owner,
			Ledger:          ledger,
			Panel:           panel,
			VotingPeriod:    c.Arbitration.VotingPeriodSeconds,
			MinVotingPeriod: c.Arbitration.MinVotingPeriodSeconds,
			MaxVotingPeriod: c.Arbitration.MaxVotingPeriodSeconds,
			PanelSize:       c.Arbitration.PanelSize,
			IncentivePct:    c.Ledger.IncentivePct,
			FinalizerPct:    *c.Arbitration.FinalizerPct,
		},
		Reputation: reputation.Bounds{
			Min:     c.Reputation.Min,
			Max:     c.Reputation.Max,
			Initial: c.Reputation.Initial,
		},
		Genesis: entries,
	}, nil
}
