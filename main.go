package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/sendparcel/internal/poller"
	"github.com/tournevent/sendparcel/internal/server"
	"github.com/tournevent/sendparcel/internal/telemetry"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/tournevent/sendparcel/pkg/parcel/memory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sendparcel",
	Short:   "Sendparcel - multi-carrier shipment lifecycle service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shipment API server and status poller",
	RunE:  runServe,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List user-selectable providers",
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(providersCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	registry, err := initRegistry(cfg, logger, tracer)
	if err != nil {
		return err
	}

	repo := memory.NewRepository()
	metrics := telemetry.NewMetrics()

	flow := parcel.NewFlow(parcel.FlowConfig{
		Repository: repo,
		Registry:   registry,
		Validators: initValidators(),
		Settings:   cfg.ProviderSettings(),
		Logger:     logger,
		Tracer:     tracer,
	})

	logger.Info("Starting sendparcel",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
	)

	srv := server.New(server.Config{Port: cfg.Port}, flow, registry, repo, logger, metrics)
	sweep := poller.New(poller.Config{
		Schedule:    cfg.PollSchedule,
		Concurrency: cfg.PollConcurrency,
	}, flow, registry, repo, logger, metrics)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return sweep.Run(ctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := initRegistry(cfg, logger, nil)
	if err != nil {
		return err
	}

	choices, err := registry.Choices()
	if err != nil {
		return err
	}
	for _, c := range choices {
		fmt.Printf("%s\t%s\n", c.Slug, c.DisplayName)
	}
	return nil
}
