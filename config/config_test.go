package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lendchain/core/genesis"
	"lendchain/crypto"
)

func memberHex(fill byte) string {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return crypto.FromBytes(addr).Hex()
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendd", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, ModuleAddress("ledger"), cfg.Ledger.Address)
	require.EqualValues(t, 5, cfg.Ledger.IncentivePct)
	require.EqualValues(t, 3*24*60*60, cfg.Arbitration.VotingPeriodSeconds)
	require.NotNil(t, cfg.Arbitration.FinalizerPct)
	require.EqualValues(t, 10, *cfg.Arbitration.FinalizerPct)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Ledger, again.Ledger)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/lend"
ChainID = 7

[Ledger]
Address = "` + ModuleAddress("ledger") + `"
Reserve = "` + ModuleAddress("reserve") + `"
Admin = "` + memberHex(0xAD) + `"
IncentivePct = 8

[Arbitration]
Address = "` + ModuleAddress("arbitration") + `"
Panel = ["` + memberHex(1) + `", "` + memberHex(2) + `", "` + memberHex(3) + `"]
VotingPeriodSeconds = 7200
FinalizerPct = 0

[RPC]
Listen = ":9000"
RateLimit = 5.5

[[Genesis]]
Address = "` + memberHex(0xB0) + `"
Balance = "10000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/lend", cfg.DataDir)
	require.EqualValues(t, 8, cfg.Ledger.IncentivePct)
	require.Len(t, cfg.Arbitration.Panel, 3)
	require.Equal(t, 5.5, cfg.RPC.RateLimit)
	require.Equal(t, 40, cfg.RPC.RateBurst)

	nodeCfg, err := cfg.NodeConfig()
	require.NoError(t, err)
	require.EqualValues(t, 7, nodeCfg.Ledger.ChainID.Int64())
	require.EqualValues(t, 8, nodeCfg.Arbitration.IncentivePct)
	require.EqualValues(t, 7200, nodeCfg.Arbitration.VotingPeriod)
	require.Zero(t, nodeCfg.Arbitration.FinalizerPct)
	require.Equal(t, nodeCfg.Ledger.Address, nodeCfg.Arbitration.Ledger)
	require.Len(t, nodeCfg.Genesis, 1)
	require.EqualValues(t, 10_000, nodeCfg.Genesis[0].Balance.Int64())
}

func TestLoadRejectsUnknownTOMLKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `dataDir: ./yaml-data
ledger:
  address: "` + ModuleAddress("ledger") + `"
  reserve: "` + ModuleAddress("reserve") + `"
arbitration:
  address: "` + ModuleAddress("arbitration") + `"
  finalizerPct: 20
reputation:
  min: -50
  max: 500
  initial: 10
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./yaml-data", cfg.DataDir)
	require.NotNil(t, cfg.Arbitration.FinalizerPct)
	require.EqualValues(t, 20, *cfg.Arbitration.FinalizerPct)
	require.Equal(t, Reputation{Min: -50, Max: 500, Initial: 10}, cfg.Reputation)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		EnvDataDir:   "/data",
		EnvRPCListen: "0.0.0.0:1",
		EnvJWTSecret: "s3cret",
		EnvEnv:       "staging",
	}
	cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.Equal(t, "/data", cfg.DataDir)
	require.Equal(t, "0.0.0.0:1", cfg.RPC.Listen)
	require.Equal(t, "s3cret", cfg.RPC.JWTSecret)
	require.Equal(t, "staging", cfg.Env)
}

func TestLoadAppliesProcessEnv(t *testing.T) {
	t.Setenv(EnvDataDir, "/from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.Equal(t, "/from-env", cfg.DataDir)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"missing ledger":      func(c *Config) { c.Ledger.Address = "" },
		"bad reserve":         func(c *Config) { c.Ledger.Reserve = "0x1234" },
		"shared accounts":     func(c *Config) { c.Arbitration.Address = c.Ledger.Address },
		"incentive above 100": func(c *Config) { c.Ledger.IncentivePct = 101 },
		"finalizer above 100": func(c *Config) { c.Arbitration.FinalizerPct = uint64Ptr(150) },
		"period below min":    func(c *Config) { c.Arbitration.VotingPeriodSeconds = 60 },
		"inverted bounds":     func(c *Config) { c.Arbitration.MinVotingPeriodSeconds = c.Arbitration.MaxVotingPeriodSeconds + 1 },
		"short panel":         func(c *Config) { c.Arbitration.Panel = []string{memberHex(1)} },
		"duplicate panel":     func(c *Config) { c.Arbitration.Panel = []string{memberHex(1), memberHex(1), memberHex(2)} },
		"initial above max":   func(c *Config) { c.Reputation.Initial = c.Reputation.Max + 1 },
		"empty listen":        func(c *Config) { c.RPC.Listen = "" },
		"negative rate":       func(c *Config) { c.RPC.RateLimit = -1 },
		"sample above one":    func(c *Config) { c.Telemetry.SampleRatio = 1.5 },
		"weak prod secret":    func(c *Config) { c.Env = "production"; c.RPC.JWTSecret = "short" },
		"bad genesis":         func(c *Config) { c.Genesis = append(c.Genesis, genesisEntry("nope", "1")) },
		"webhook no secret":   func(c *Config) { c.Webhook.URL = "https://hooks.example.com/lend" },
		"webhook bad url":     func(c *Config) { c.Webhook.URL = "ftp://x"; c.Webhook.Secret = "s" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func genesisEntry(addr, balance string) genesis.Allocation {
	return genesis.Allocation{Address: addr, Balance: balance}
}
