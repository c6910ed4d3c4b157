// Package commands provides the cobra commands for the diligence binary.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/meridianvc/diligence/config"
	coherencereconciler "github.com/meridianvc/diligence/processor/coherence-reconciler"
)

// runnable is the lifecycle surface of a processor component.
type runnable interface {
	component.Discoverable
	Initialize() error
	Start(context.Context) error
	Stop(time.Duration) error
}

// NewServeCommand returns the command that runs the reconciliation service.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coherence reconciliation service",
		Long: `Serve connects to NATS and consumes reconciliation requests from the
pipeline stream, publishing reconciled results and orchestrator callbacks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	if err := ensureStream(ctx, cfg, natsClient, logger); err != nil {
		return err
	}

	reconciler, err := buildReconciler(cfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create coherence-reconciler: %w", err)
	}

	if err := reconciler.Initialize(); err != nil {
		return fmt.Errorf("initialize coherence-reconciler: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := reconciler.Start(signalCtx); err != nil {
		return fmt.Errorf("start coherence-reconciler: %w", err)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Listen, logger)
	}

	logger.Info("Diligence service ready",
		"nats", cfg.NATS.URL,
		"stream", cfg.NATS.Stream)

	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown error", "error", err)
		}
	}

	if err := reconciler.Stop(30 * time.Second); err != nil {
		logger.Error("Error stopping coherence-reconciler", "error", err)
	}

	logger.Info("Diligence shutdown complete")
	return nil
}

// loadServiceConfig loads an explicit config file, or the layered default
// configuration when no path is given.
func loadServiceConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName("diligence"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, cfg.NATS.URL)
	}

	connCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, cfg.NATS.URL)
	}

	logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set DILIGENCE_NATS_URL to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// ensureStream creates the pipeline stream if it does not exist yet.
func ensureStream(ctx context.Context, cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	js, err := natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.NATS.Stream,
		Subjects: []string{"pipeline.>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.NATS.Stream, err)
	}

	logger.Debug("JetStream stream ready", "stream", cfg.NATS.Stream)
	return nil
}

// buildReconciler constructs the coherence-reconciler component from the
// service configuration.
func buildReconciler(cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) (runnable, error) {
	componentConfig := map[string]any{
		"stream_name":   cfg.NATS.Stream,
		"consumer_name": cfg.Coherence.ConsumerName,
		"policy_path":   cfg.Coherence.PolicyPath,
		"policy_reload": cfg.Coherence.PolicyReload,
	}
	rawConfig, err := json.Marshal(componentConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal component config: %w", err)
	}

	comp, err := coherencereconciler.NewComponent(rawConfig, component.Dependencies{
		NATSClient: natsClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	reconciler, ok := comp.(runnable)
	if !ok {
		return nil, fmt.Errorf("component does not implement the runnable lifecycle")
	}
	return reconciler, nil
}

func startMetricsServer(listen string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics endpoint listening", "addr", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	return server
}
