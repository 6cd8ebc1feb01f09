package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"lendchain/native/arbitration"
	"lendchain/native/escrow"
	"lendchain/native/reputation"
)

// Environment variables that override file values.
const (
	EnvDataDir   = "LEND_DATA_DIR"
	EnvRPCListen = "LEND_RPC_LISTEN"
	EnvJWTSecret = "LEND_JWT_SECRET"
	EnvEnv       = "LEND_ENV"
	// EnvWebhookSecret keeps the webhook signing key out of config files.
	EnvWebhookSecret = "LEND_WEBHOOK_SECRET"
)

// Load loads the configuration from the given path. A missing file is
// created with defaults. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML. Environment overrides are applied last and the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if err := decode(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(path string, cfg *Config) error {
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(raw, cfg)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	return nil
}

// ModuleAddress derives the keyless account of a native module from its
// label.
func ModuleAddress(label string) string {
	hash := ethcrypto.Keccak256([]byte("lendchain/module/" + label))
	return "0x" + hex.EncodeToString(hash[12:])
}

// Default returns a development configuration. Module accounts are derived
// with ModuleAddress; admin identities are left for the operator to set.
func Default() *Config {
	bounds := reputation.DefaultBounds()
	return &Config{
		DataDir: "./lend-data",
		ChainID: 31337,
		Env:     "development",
		Ledger: Ledger{
			Address:      ModuleAddress("ledger"),
			Reserve:      ModuleAddress("reserve"),
			IncentivePct: escrow.DefaultIncentivePct,
		},
		Arbitration: Arbitration{
			Address:                ModuleAddress("arbitration"),
			Panel:                  []string{},
			PanelSize:              arbitration.DefaultPanelSize,
			VotingPeriodSeconds:    arbitration.DefaultVotingPeriod,
			MinVotingPeriodSeconds: arbitration.DefaultMinVotingPeriod,
			MaxVotingPeriodSeconds: arbitration.DefaultMaxVotingPeriod,
			FinalizerPct:           uint64Ptr(arbitration.DefaultFinalizerPct),
		},
		Reputation: Reputation{Min: bounds.Min, Max: bounds.Max, Initial: bounds.Initial},
		RPC: RPC{
			Listen:              "127.0.0.1:8545",
			JWTIssuer:           "lendchain",
			RateLimit:           20,
			RateBurst:           40,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
		},
		Indexer: Indexer{DSN: "events.db"},
		Redis:   Redis{Channel: "lendchain.events"},
		Log:     Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	if c.ChainID == 0 {
		c.ChainID = def.ChainID
	}
	if c.Ledger.IncentivePct == 0 {
		c.Ledger.IncentivePct = def.Ledger.IncentivePct
	}
	a := &c.Arbitration
	if a.PanelSize == 0 {
		a.PanelSize = def.Arbitration.PanelSize
	}
	if a.VotingPeriodSeconds == 0 {
		a.VotingPeriodSeconds = def.Arbitration.VotingPeriodSeconds
	}
	if a.MinVotingPeriodSeconds == 0 {
		a.MinVotingPeriodSeconds = def.Arbitration.MinVotingPeriodSeconds
	}
	if a.MaxVotingPeriodSeconds == 0 {
		a.MaxVotingPeriodSeconds = def.Arbitration.MaxVotingPeriodSeconds
	}
	if a.FinalizerPct == nil {
		a.FinalizerPct = def.Arbitration.FinalizerPct
	}
	if c.Reputation == (Reputation{}) {
		c.Reputation = def.Reputation
	}
	if strings.TrimSpace(c.RPC.Listen) == "" {
		c.RPC.Listen = def.RPC.Listen
	}
	if c.RPC.JWTIssuer == "" {
		c.RPC.JWTIssuer = def.RPC.JWTIssuer
	}
	if c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = def.RPC.RateBurst
	}
	if c.RPC.ReadTimeoutSeconds == 0 {
		c.RPC.ReadTimeoutSeconds = def.RPC.ReadTimeoutSeconds
	}
	if c.RPC.WriteTimeoutSeconds == 0 {
		c.RPC.WriteTimeoutSeconds = def.RPC.WriteTimeoutSeconds
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = def.Redis.Channel
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// ApplyEnv overrides file values with the LEND_* variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDataDir); ok && strings.TrimSpace(v) != "" {
		c.DataDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRPCListen); ok && strings.TrimSpace(v) != "" {
		c.RPC.Listen = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		c.RPC.JWTSecret = v
	}
	if v, ok := lookup(EnvEnv); ok && strings.TrimSpace(v) != "" {
		c.Env = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvWebhookSecret); ok && v != "" {
		c.Webhook.Secret = v
	}
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
