package main

import (
	"context"

	"github.com/tournevent/sendparcel/internal/config"
	"github.com/tournevent/sendparcel/internal/telemetry"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/tournevent/sendparcel/pkg/parcel/dummy"
	"github.com/tournevent/sendparcel/pkg/parcel/pakpost"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

// initRegistry builds the provider registry with the enabled built-in
// providers as its discovery source. External plugins can be added as
// further sources before first use.
func initRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*parcel.Registry, error) {
	builtins := func() []parcel.Descriptor {
		var descriptors []parcel.Descriptor

		if cfg.DummyEnabled {
			descriptors = append(descriptors, dummy.Descriptor())
		}

		if cfg.PakPostEnabled {
			descriptors = append(descriptors, pakpost.Descriptor(pakpost.Config{
				APIKey:  cfg.PakPostAPIKey,
				BaseURL: cfg.PakPostBaseURL,
				UseMock: cfg.PakPostUseMock,
			}, logger, tracer))
		}

		return descriptors
	}

	registry := parcel.NewRegistry(builtins)
	if err := registry.Discover(); err != nil {
		return nil, err
	}
	return registry, nil
}

// initValidators assembles the pre-operation validator chain.
func initValidators() *parcel.Chain {
	return parcel.NewChain().
		For(parcel.OpCreateShipment, parcel.ValidatorFunc(requireParcels)).
		For(parcel.OpCreateShipment, parcel.ValidatorFunc(requireAddresses))
}

func requireParcels(ctx context.Context, op string, shipment *parcel.Shipment, payload map[string]any) error {
	parcels, _ := payload["parcels"].([]parcel.ParcelInfo)
	if len(parcels) == 0 {
		return &parcel.ValidationError{Operation: op, Reason: "at least one parcel is required"}
	}
	return nil
}

func requireAddresses(ctx context.Context, op string, shipment *parcel.Shipment, payload map[string]any) error {
	sender, _ := payload["sender"].(parcel.AddressInfo)
	receiver, _ := payload["receiver"].(parcel.AddressInfo)
	if sender.CountryCode == "" || receiver.CountryCode == "" {
		return &parcel.ValidationError{Operation: op, Reason: "sender and receiver country codes are required"}
	}
	return nil
}
