package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lendchain/crypto"
	"lendchain/native/arbitration"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// MinProductionSecretLen is the shortest JWT secret accepted in production.
const MinProductionSecretLen = 32

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func requiredAddress(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, invalid("%s required", field)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalid("%s: %v", field, err)
	}
	return addr, nil
}

func optionalAddress(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return requiredAddress(field, value)
}

// Validate checks every section for values the engines would reject or
// silently misinterpret.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return invalid("DataDir required")
	}
	if c.ChainID == 0 {
		return invalid("ChainID must be positive")
	}

	ledger, err := requiredAddress("Ledger.Address", c.Ledger.Address)
	if err != nil {
		return err
	}
	reserve, err := requiredAddress("Ledger.Reserve", c.Ledger.Reserve)
	if err != nil {
		return err
	}
	if _, err := optionalAddress("Ledger.Admin", c.Ledger.Admin); err != nil {
		return err
	}
	arb, err := requiredAddress("Arbitration.Address", c.Arbitration.Address)
	if err != nil {
		return err
	}
	if _, err := optionalAddress("Arbitration.Owner", c.Arbitration.Owner); err != nil {
		return err
	}
	if ledger == arb || ledger == reserve || arb == reserve {
		return invalid("ledger, reserve and arbitration accounts must differ")
	}
	if c.Ledger.IncentivePct == 0 || c.Ledger.IncentivePct > 100 {
		return invalid("Ledger.IncentivePct must be within 1..100")
	}

	a := c.Arbitration
	if a.FinalizerPct == nil {
		return invalid("Arbitration.FinalizerPct required")
	}
	if *a.FinalizerPct > 100 {
		return invalid("Arbitration.FinalizerPct must be within 0..100")
	}
	if a.PanelSize <= 0 {
		return invalid("Arbitration.PanelSize must be positive")
	}
	if a.MinVotingPeriodSeconds <= 0 || a.MinVotingPeriodSeconds > a.MaxVotingPeriodSeconds {
		return invalid("Arbitration voting period bounds %d..%d", a.MinVotingPeriodSeconds, a.MaxVotingPeriodSeconds)
	}
	if a.VotingPeriodSeconds < a.MinVotingPeriodSeconds || a.VotingPeriodSeconds > a.MaxVotingPeriodSeconds {
		return invalid("Arbitration.VotingPeriodSeconds %d outside %d..%d", a.VotingPeriodSeconds, a.MinVotingPeriodSeconds, a.MaxVotingPeriodSeconds)
	}
	if len(a.Panel) > 0 {
		panel, err := parseAddresses("Arbitration.Panel", a.Panel)
		if err != nil {
			return err
		}
		if err := arbitration.ValidatePanel(panel, a.PanelSize); err != nil {
			return invalid("Arbitration.Panel: %v", err)
		}
	}

	r := c.Reputation
	if r.Min > r.Max || r.Initial < r.Min || r.Initial > r.Max {
		return invalid("Reputation bounds min=%d max=%d initial=%d", r.Min, r.Max, r.Initial)
	}

	if strings.TrimSpace(c.RPC.Listen) == "" {
		return invalid("RPC.Listen required")
	}
	if c.RPC.RateLimit < 0 || c.RPC.RateBurst < 0 {
		return invalid("RPC rate limit must be non-negative")
	}
	if strings.EqualFold(c.Env, "production") && len(c.RPC.JWTSecret) < MinProductionSecretLen {
		return invalid("RPC.JWTSecret must be at least %d bytes in production", MinProductionSecretLen)
	}
	if strings.TrimSpace(c.Webhook.URL) != "" {
		u, err := url.Parse(strings.TrimSpace(c.Webhook.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("Webhook.URL must be an http(s) URL")
		}
		if c.Webhook.Secret == "" {
			return invalid("Webhook.Secret required when Webhook.URL is set")
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return invalid("Telemetry.SampleRatio must be within 0..1")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return invalid("Log rotation settings must be non-negative")
	}
	if _, err := c.GenesisEntries(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func parseAddresses(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for i, v := range values {
		addr, err := requiredAddress(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
