package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sirosfoundation/go-workspace-backend/internal/api"
	"github.com/sirosfoundation/go-workspace-backend/internal/backend"
	"github.com/sirosfoundation/go-workspace-backend/internal/server"
	"github.com/sirosfoundation/go-workspace-backend/internal/service"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
	"github.com/sirosfoundation/go-workspace-backend/pkg/logging"
)

// configEnv names the environment variable holding the config file path
const configEnv = "WORKSPACE_CONFIG"

var (
	version   = "dev"
	buildTime = "unknown"
)

var errUsage = errors.New("usage")

func main() {
	address, port, err := parseArgs(os.Args[1:])
	if err != nil {
		printUsage(os.Stderr, os.Args[0], err)
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Getenv(configEnv), address, port)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseArgs accepts exactly <address> <port>
func parseArgs(args []string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, fmt.Errorf("%w: expected 2 arguments, got %d", errUsage, len(args))
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: invalid port %q", errUsage, args[1])
	}
	return args[0], port, nil
}

func printUsage(w io.Writer, prog string, err error) {
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	_, _ = red.Fprintf(w, "Error: %v\n", err)
	_, _ = fmt.Fprint(w, "Usage: ")
	_, _ = cyan.Fprintf(w, "%s <address> <port>\n", prog)
	_, _ = fmt.Fprintf(w, "Example:\n    %s 0.0.0.0 8080\n", prog)
	_, _ = fmt.Fprintf(w, "Set %s to load a YAML configuration file.\n", configEnv)
}

// loadConfig loads the config file and applies the command line address
func loadConfig(file, address string, port int) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	cfg.Server.Host = address
	cfg.Server.Port = port
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting Workspace Backend Server",
		zap.String("version", version),
		zap.String("build_time", buildTime),
	)

	// Initialize storage backend
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := backend.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Ping storage to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to ping storage: %w", err)
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	clock := quartz.NewReal()
	services := service.NewServices(store, cfg, clock, logger)
	router := api.NewRouter(services, cfg, clock, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(registry)

	srv := server.New(router, server.Config{
		Timeout:      cfg.Server.ConnectionTimeout(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, clock, metrics, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Address())
	})
	if cfg.Server.MetricsPort > 0 {
		g.Go(func() error {
			return server.ServeMetrics(gctx, cfg.Server.MetricsAddress(), registry, logger)
		})
	}

	err = g.Wait()
	logger.Info("Server exited")
	return err
}
