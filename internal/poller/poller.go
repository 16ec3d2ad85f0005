// Package poller runs the periodic status sweep for PULL providers:
// carriers that never call back must be polled for status changes.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tournevent/sendparcel/internal/telemetry"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store lists the shipments the sweep considers.
type Store interface {
	ListActive(ctx context.Context) ([]*parcel.Shipment, error)
}

// Config holds poller configuration.
type Config struct {
	Schedule    string // cron spec, e.g. "@every 1m"
	Concurrency int    // max concurrent polls per sweep
}

// Poller schedules and runs the polling sweep.
type Poller struct {
	flow        *parcel.Flow
	registry    *parcel.Registry
	store       Store
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics
	schedule    string
	concurrency int
}

// New creates a poller over the given flow and store.
func New(cfg Config, flow *parcel.Flow, registry *parcel.Registry, store Store, logger *otelzap.Logger, metrics *telemetry.Metrics) *Poller {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Poller{
		flow:        flow,
		registry:    registry,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		schedule:    cfg.Schedule,
		concurrency: concurrency,
	}
}

// Run schedules the sweep and blocks until context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() { p.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", p.schedule, err)
	}

	p.logger.Info("Starting status poller", zap.String("schedule", p.schedule))
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// Sweep polls every active shipment whose provider requires pulling.
// Individual poll failures are logged and do not abort the sweep.
func (p *Poller) Sweep(ctx context.Context) {
	shipments, err := p.store.ListActive(ctx)
	if err != nil {
		p.logger.Error("Failed to list active shipments", zap.Error(err))
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	polled := 0
	for _, shipment := range shipments {
		if !p.pollable(shipment) {
			continue
		}
		polled++
		shipment := shipment
		g.Go(func() error {
			start := time.Now()
			_, err := p.flow.PollStatus(ctx, shipment.ID)
			outcome := "success"
			if err != nil {
				outcome = "error"
				p.logger.Warn("Poll failed",
					zap.String("shipment_id", shipment.ID),
					zap.String("provider", shipment.Provider),
					zap.Error(err),
				)
			}
			p.metrics.RecordOperation(parcel.OpPollStatus, shipment.Provider, outcome, time.Since(start).Seconds())
			return nil
		})
	}

	g.Wait()
	if polled > 0 {
		p.logger.Info("Poll sweep complete", zap.Int("polled", polled))
	}
}

// pollable reports whether the shipment's provider requires polling and
// declares the PullStatus capability.
func (p *Poller) pollable(shipment *parcel.Shipment) bool {
	if parcel.IsTerminal(shipment.Status) {
		return false
	}
	desc, err := p.registry.Get(shipment.Provider)
	if err != nil {
		return false
	}
	return desc.ConfirmationMethod == parcel.ConfirmPull &&
		desc.Capabilities.Has(parcel.CapabilityPullStatus)
}
