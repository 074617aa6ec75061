package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nhbmarket/config"
	"nhbmarket/core"
	"nhbmarket/core/events"
	"nhbmarket/core/genesis"
	"nhbmarket/indexer"
	"nhbmarket/observability"
	"nhbmarket/observability/logging"
	telemetry "nhbmarket/observability/otel"
	"nhbmarket/rpc"
	"nhbmarket/storage"
)

const genesisPathEnv = "NHBMARKET_GENESIS"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFile := flag.String("config", "./market.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides NHBMARKET_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(os.Getenv("NHB_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.SetupWithOptions("marketd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv), env, logger); err != nil {
		logger.Error("marketd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, genesisPath, env string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "marketd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Version:     version,
		Storage:     cfg.Storage,
		Indexer:     indexerLabel(cfg),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		return err
	}
	node.SetLogger(logger)
	if err := bootstrap(node, genesisPath, logger); err != nil {
		return err
	}

	sinks := []events.Emitter{observability.Events()}
	var lister *indexer.Indexer
	if cfg.Indexer.Enabled {
		lister, err = indexer.Open(cfg.Indexer.Driver, cfg.IndexerDSN(), logger)
		if err != nil {
			return err
		}
		defer lister.Close()
		queue := lister.Queue(cfg.Indexer.QueueSize)
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := queue.Close(drainCtx); err != nil {
				logger.Warn("indexer queue not drained", "pending", queue.Pending(), "error", err)
			}
		}()
		logger.Info("event indexer enabled", "driver", cfg.Indexer.Driver, logging.MaskField("dsn", cfg.IndexerDSN()))
		sinks = append(sinks, queue)
	}
	hub := rpc.NewHub(cfg.RPC.WebsocketBuffer)
	sinks = append(sinks, hub)
	node.SetEmitter(events.NewFanout(logger, sinks...))

	serverCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}
	var server *rpc.Server
	if lister != nil {
		server = rpc.NewServer(node, lister, hub, serverCfg, logger.With("component", "rpc"))
	} else {
		server = rpc.NewServer(node, nil, hub, serverCfg, logger.With("component", "rpc"))
	}

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPCAddress, err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown rpc: %w", err)
	}
	return nil
}

// openStore opens the configured key-value backend.
func openStore(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	case config.StorageBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.StoragePath())
	case config.StorageLevelDB:
		return storage.NewLevelDB(cfg.StoragePath())
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage)
	}
}

// bootstrap applies genesis on a fresh store. An initialised store ignores
// the genesis file; a fresh store without one is an error.
func bootstrap(node *core.Node, genesisPath string, logger *slog.Logger) error {
	ok, err := node.Initialized()
	if err != nil {
		return err
	}
	if ok {
		if genesisPath != "" {
			logger.Info("store already initialised; ignoring genesis file", "path", genesisPath)
		}
		return nil
	}
	if genesisPath == "" {
		return errors.New("store is not initialised and no genesis file was provided")
	}
	spec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	return node.Bootstrap(spec)
}

func resolveGenesisPath(flagValue, configValue string, lookupEnv func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookupEnv != nil {
		if value, ok := lookupEnv(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(configValue)
}

func indexerLabel(cfg *config.Config) string {
	if !cfg.Indexer.Enabled {
		return "disabled"
	}
	return cfg.Indexer.Driver
}

func serverConfig(cfg *config.Config) (rpc.ServerConfig, error) {
	out := rpc.ServerConfig{
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(cfg.RPC.IdleTimeout),
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		RateLimit:         cfg.RPC.RateLimitPerSecond,
		RateBurst:         cfg.RPC.RateLimitBurst,
		TrustProxyHeaders: cfg.RPC.TrustProxyHeaders,
		Auth: rpc.AuthOptions{
			Enabled:  cfg.Auth.Enabled,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		},
	}
	if cfg.Auth.Enabled {
		secret, err := cfg.Auth.Secret()
		if err != nil {
			return rpc.ServerConfig{}, err
		}
		out.Auth.Secret = secret
	}
	return out, nil
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}
