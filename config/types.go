package config

import "lendchain/core/genesis"

// Config is the lendd node configuration.
type Config struct {
	DataDir string `toml:"DataDir" yaml:"dataDir"`
	ChainID uint64 `toml:"ChainID" yaml:"chainId"`
	// Env labels logs and telemetry; "production" tightens validation.
	Env string `toml:"Env" yaml:"env"`

	Ledger      Ledger      `toml:"Ledger" yaml:"ledger"`
	Arbitration Arbitration `toml:"Arbitration" yaml:"arbitration"`
	Reputation  Reputation  `toml:"Reputation" yaml:"reputation"`
	RPC         RPC         `toml:"RPC" yaml:"rpc"`
	Indexer     Indexer     `toml:"Indexer" yaml:"indexer"`
	Redis       Redis       `toml:"Redis" yaml:"redis"`
	Webhook     Webhook     `toml:"Webhook" yaml:"webhook"`
	Telemetry   Telemetry   `toml:"Telemetry" yaml:"telemetry"`
	Log         Log         `toml:"Log" yaml:"log"`

	Genesis []genesis.Allocation `toml:"Genesis" yaml:"genesis"`
}

// Ledger configures the escrow ledger identities.
type Ledger struct {
	Address string `toml:"Address" yaml:"address"`
	Admin   string `toml:"Admin" yaml:"admin"`
	// Reserve funds dispute incentive pools.
	Reserve      string `toml:"Reserve" yaml:"reserve"`
	IncentivePct uint64 `toml:"IncentivePct" yaml:"incentivePct"`
}

// Arbitration configures the panel engine.
type Arbitration struct {
	Address                string   `toml:"Address" yaml:"address"`
	Owner                  string   `toml:"Owner" yaml:"owner"`
	Panel                  []string `toml:"Panel" yaml:"panel"`
	PanelSize              int      `toml:"PanelSize" yaml:"panelSize"`
	VotingPeriodSeconds    int64    `toml:"VotingPeriodSeconds" yaml:"votingPeriodSeconds"`
	MinVotingPeriodSeconds int64    `toml:"MinVotingPeriodSeconds" yaml:"minVotingPeriodSeconds"`
	MaxVotingPeriodSeconds int64    `toml:"MaxVotingPeriodSeconds" yaml:"maxVotingPeriodSeconds"`
	// FinalizerPct is nil when unset; an explicit 0 disables the fee.
	FinalizerPct *uint64 `toml:"FinalizerPct" yaml:"finalizerPct"`
}

// Reputation bounds owner and borrower scores.
type Reputation struct {
	Min     int64 `toml:"Min" yaml:"min"`
	Max     int64 `toml:"Max" yaml:"max"`
	Initial int64 `toml:"Initial" yaml:"initial"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	Listen    string `toml:"Listen" yaml:"listen"`
	JWTSecret string `toml:"JWTSecret" yaml:"jwtSecret"`
	JWTIssuer string `toml:"JWTIssuer" yaml:"jwtIssuer"`
	// RateLimit is the sustained requests per second allowed per client.
	RateLimit           float64 `toml:"RateLimit" yaml:"rateLimit"`
	RateBurst           int     `toml:"RateBurst" yaml:"rateBurst"`
	ReadTimeoutSeconds  int     `toml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int     `toml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
}

// Indexer configures the committed event store.
type Indexer struct {
	// DSN is a sqlite path or a postgres:// URL. Empty disables indexing.
	DSN string `toml:"DSN" yaml:"dsn"`
}

// Redis configures the optional event fan-out.
type Redis struct {
	Addr     string `toml:"Addr" yaml:"addr"`
	Password string `toml:"Password" yaml:"password"`
	DB       int    `toml:"DB" yaml:"db"`
	Channel  string `toml:"Channel" yaml:"channel"`
}

// Webhook configures signed dispute notifications. An empty URL disables
// delivery.
type Webhook struct {
	URL    string   `toml:"URL" yaml:"url"`
	Secret string   `toml:"Secret" yaml:"secret"`
	Events []string `toml:"Events" yaml:"events"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	// SampleRatio traces that fraction of transitions; 0 traces all.
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

// Log configures structured logging.
type Log struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}
