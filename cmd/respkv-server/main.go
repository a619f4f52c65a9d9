package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/infra/buildinfo"
	"github.com/yndnr/respkv-go/internal/infra/confloader"
	"github.com/yndnr/respkv-go/internal/infra/shutdown"
	"github.com/yndnr/respkv-go/internal/server/config"
	"github.com/yndnr/respkv-go/internal/server/redisserver"
	"github.com/yndnr/respkv-go/internal/server/replication"
	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/internal/storage/snapshot"
	"github.com/yndnr/respkv-go/internal/telemetry/logger"
	"github.com/yndnr/respkv-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

// flagKeys maps flags to the configuration keys they override.
var flagKeys = map[string]string{
	"port":         "server.port",
	"bind":         "server.bind",
	"dir":          "snapshot.dir",
	"dbfilename":   "snapshot.dbfilename",
	"replicaof":    "replication.replicaof",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "respkv-server",
		Usage:   "Redis protocol compatible in-memory key-value server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML configuration file", EnvVars: []string{"RESPKV_CONFIG"}},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port"},
			&cli.StringFlag{Name: "bind", Usage: "listen address"},
			&cli.StringFlag{Name: "dir", Usage: "snapshot directory"},
			&cli.StringFlag{Name: "dbfilename", Usage: "snapshot file name"},
			&cli.StringFlag{Name: "replicaof", Usage: `primary address, "host port" or host:port`},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus /metrics listen address"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	configFile := c.String("config")
	cfg, err := loadConfig(configFile, flagOverrides(c))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting respkv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	metrics := metric.NewRegistry()
	store := memory.New()
	metrics.MustRegister(metric.NewCollector(store))

	loadSnapshot(cfg, store, metrics, log)

	identity, err := initIdentity(cfg)
	if err != nil {
		return fmt.Errorf("init identity: %w", err)
	}

	handler := redisserver.NewCommandHandler(store, config.NewParams(cfg), identity, metrics)
	srv := redisserver.New(&redisserver.Config{
		Address:      net.JoinHostPort(cfg.Server.Bind, strconv.Itoa(cfg.Server.Port)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, handler, metrics, slogLogger)

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, slogLogger)

	if err := startServer(ctx, srv, cfg, identity, log); err != nil {
		return err
	}
	shutdownHandler.OnShutdown("resp server", srv.Shutdown)

	if cfg.Metrics.Addr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, slogLogger); err != nil {
				log.Error("metrics endpoint failed", "error", err)
				shutdownHandler.Trigger()
			}
		}()
		shutdownHandler.OnShutdown("metrics endpoint", func(context.Context) error {
			stopMetrics()
			return nil
		})
	}

	if configFile != "" {
		watcher, err := watchConfig(configFile, flagOverrides(c), log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// flagOverrides collects the flags given on the command line.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if flag == "port" {
			overrides[key] = c.Int(flag)
			continue
		}
		overrides[key] = c.String(flag)
	}
	return overrides
}

// loadConfig loads configuration from file, .env, environment and flags.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{
		confloader.WithDotEnv(".env"),
		confloader.WithOverrides(overrides),
	}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// loadSnapshot seeds store from the configured RDB file. Failures are
// logged and the server starts with whatever was decoded.
func loadSnapshot(cfg *config.ServerConfig, store *memory.Store, metrics *metric.Registry, log logger.Logger) {
	path := snapshot.Path(cfg.Snapshot.Dir, cfg.Snapshot.DBFilename)
	info, err := snapshot.LoadFile(path, store)
	if info == nil && err == nil {
		log.Info("no snapshot found, starting empty", "path", path)
		return
	}
	if info != nil {
		metrics.SnapshotResult(info.Loaded, info.Expired, info.Skipped)
	}

	var formatErr *snapshot.FormatError
	switch {
	case errors.As(err, &formatErr):
		log.Error("snapshot is corrupt, keeping entries decoded so far",
			"path", path, "offset", formatErr.Offset, "error", formatErr.Err, "loaded", info.Loaded)
	case err != nil:
		log.Error("snapshot load failed", "path", path, "error", err)
	default:
		log.Info("snapshot loaded",
			"path", path,
			"rdb_version", info.Version,
			"redis_version", info.Aux["redis-ver"],
			"loaded", info.Loaded,
			"expired", info.Expired,
			"skipped", info.Skipped)
	}
}

func initIdentity(cfg *config.ServerConfig) (replication.Identity, error) {
	if cfg.Replication.ReplicaOf != "" {
		return replication.NewReplica(), nil
	}
	return replication.NewPrimary()
}

// startServer binds the listener and, on a replica, completes the
// handshake before any connection is accepted.
func startServer(ctx context.Context, srv *redisserver.Server, cfg *config.ServerConfig, identity replication.Identity, log logger.Logger) error {
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if identity.Role == replication.RoleReplica {
		port := cfg.Server.Port
		if addr, ok := srv.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		handshake(ctx, cfg, port, log)
	}
	srv.Serve(ctx)
	return nil
}

// handshake announces this replica to its primary. Failures are logged
// and the server keeps serving.
func handshake(ctx context.Context, cfg *config.ServerConfig, listeningPort int, log logger.Logger) {
	primary, err := config.ParseReplicaOf(cfg.Replication.ReplicaOf)
	if err != nil {
		log.Warn("replica handshake skipped", "error", err)
		return
	}

	timeout := cfg.Replication.HandshakeTimeout
	if timeout <= 0 {
		timeout = config.DefaultHandshakeTimeout
	}
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := replication.Handshake(hsCtx, primary, listeningPort, log.Slog()); err != nil {
		log.Warn("replica handshake failed, serving without a primary", "primary", primary, "error", err)
	}
}

// watchConfig reloads the log level when the config file changes.
func watchConfig(configFile string, overrides map[string]any, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(configFile, overrides)
		if err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		prev := logger.GetLevel()
		logger.SetLevel(cfg.Log.Level)
		if level := logger.GetLevel(); level != prev {
			log.Info("log level changed", "from", prev, "to", level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
