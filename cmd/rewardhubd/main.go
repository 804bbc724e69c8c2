package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"

	"github.com/rewardhub/rewardhub/internal/api"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/config"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
	"github.com/rewardhub/rewardhub/internal/metrics"
	"github.com/rewardhub/rewardhub/internal/rewards"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rewardhubd",
	Short: "RewardHub campus rewards platform daemon",
	Long:  "Serves the RewardHub API: achievement awarding, perk redemption, and the on-chain token ledger behind both.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := ledger.Open(postgres.Open(cfg.DatabaseURL))
	if err != nil {
		return err
	}

	conn, err := chain.Dial(ctx, chain.ConnectionConfig{
		RPCURL:          cfg.Chain.RPCURL,
		PrivateKey:      cfg.Chain.PrivateKey,
		ContractAddress: cfg.Chain.ContractAddress,
		ProbeTimeout:    cfg.Chain.ProbeTimeout,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	collector := metrics.NewCollector()

	client, err := chain.NewClient(conn, chain.ClientConfig{
		Retry: chain.RetryPolicy{
			MaxAttempts:  cfg.Chain.MaxAttempts,
			InitialDelay: cfg.Chain.InitialRetryDelay,
			MaxDelay:     cfg.Chain.MaxRetryDelay,
			Multiplier:   2.0,
		},
		GasLimitBuffer: cfg.Chain.GasLimitBuffer,
		TxTimeout:      cfg.Chain.TxTimeout,
		Metrics:        collector,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	reconciler := rewards.NewReconciler(store, client)
	services := api.Services{
		Reconciler: reconciler,
		Redeemer:   rewards.NewRedeemer(store, client, reconciler),
		Granter:    rewards.NewGranter(store, client),
		Aggregator: rewards.NewAggregator(store, client),
		Catalog:    rewards.NewCatalog(store, client),
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	job := rewards.NewReconcileJob(store, client)
	if err := job.Schedule(scheduler, cfg.Chain.ReconcileInterval); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	server := api.NewServer(api.Config{
		JWTSecret:     cfg.JWTSecret,
		SessionExpiry: cfg.SessionExpiry,
	}, store, services, client, collector)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: collector.Handler()}
	go func() {
		logging.Info("metrics listener started", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics listener failed", logging.Err(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("api listener started", "addr", cfg.ListenAddr, "version", version)
		errCh <- server.Listen(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return server.Shutdown()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.LogFormat == "text" {
		logging.SetTextOutput(os.Stderr)
	} else {
		logging.SetOutput(os.Stdout)
	}
	logging.SetLevel(level)
	logging.EnableRedaction()
}
