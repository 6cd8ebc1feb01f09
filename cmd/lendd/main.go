package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lendchain/config"
	"lendchain/core"
	"lendchain/indexer"
	"lendchain/integrations/redisbus"
	"lendchain/integrations/webhooks"
	"lendchain/observability"
	"lendchain/observability/logging"
	lendotel "lendchain/observability/otel"
	"lendchain/rpc"
	"lendchain/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "lendd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, nil); err != nil {
		fmt.Fprintf(os.Stderr, "lendd: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// indexerDSN anchors relative SQLite paths inside the data directory.
func indexerDSN(dataDir, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return ""
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.HasPrefix(lower, "file:"), filepath.IsAbs(dsn):
		return dsn
	default:
		return filepath.Join(dataDir, dsn)
	}
}

// run starts the node and serves RPC until ctx is cancelled. ready, when set,
// receives the bound RPC address.
func run(ctx context.Context, configPath string, ready func(addr string)) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.SetupWithOptions(logging.Options{
		Service:    "lendd",
		Env:        cfg.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	shutdownTelemetry, err := lendotel.Init(ctx, lendotel.Config{
		ServiceName: "lendd",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     lendotel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	node, err := core.NewNode(db, nodeCfg)
	if err != nil {
		db.Close()
		return err
	}
	defer node.Close()
	node.SetLogger(logger)
	node.Subscribe(observability.Events())

	serverCfg := rpc.ServerConfig{
		JWTSecret:    cfg.RPC.JWTSecret,
		JWTIssuer:    cfg.RPC.JWTIssuer,
		RateLimit:    cfg.RPC.RateLimit,
		RateBurst:    cfg.RPC.RateBurst,
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSeconds) * time.Second,
		Logger:       logger,
	}

	if dsn := indexerDSN(cfg.DataDir, cfg.Indexer.DSN); dsn != "" {
		store, err := indexer.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()
		node.Subscribe(store)
		serverCfg.Events = store
		logger.Info("event indexer enabled")
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		pub, err := redisbus.Dial(ctx, redisbus.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		node.Subscribe(pub)
		logger.Info("redis event bus enabled", slog.String("channel", pub.Channel()))
	}

	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		dispatcher, err := webhooks.NewDispatcher(url, []byte(cfg.Webhook.Secret),
			webhooks.WithEventTypes(cfg.Webhook.Events),
			webhooks.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		node.Subscribe(dispatcher)
		logger.Info("dispute webhooks enabled")
	}

	hub := rpc.NewHub(logger)
	node.Subscribe(hub)
	serverCfg.Hub = hub

	if strings.TrimSpace(cfg.RPC.JWTSecret) == "" {
		logger.Warn("RPC JWT secret not set; mutating methods are disabled")
	}
	srv, err := rpc.NewServer(node, serverCfg)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.RPC.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPC.Listen, err)
	}
	if ready != nil {
		ready(listener.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeListener(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return <-errCh
}
