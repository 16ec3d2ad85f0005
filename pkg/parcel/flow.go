package parcel

import (
	"context"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Flow orchestrates shipment lifecycle operations. Each operation runs
// the validator chain, resolves and instantiates the provider, checks
// the required capability, invokes the provider, maps the result
// through the state machine, and persists via the repository. Within
// one invocation everything is strictly sequential; I/O happens only at
// provider and repository calls.
type Flow struct {
	repo       Repository
	registry   *Registry
	validators *Chain
	settings   map[string]Settings // provider slug -> settings
	logger     *otelzap.Logger
	tracer     trace.Tracer
}

// FlowConfig holds Flow construction dependencies.
type FlowConfig struct {
	Repository Repository
	Registry   *Registry
	Validators *Chain              // optional
	Settings   map[string]Settings // optional, per provider slug
	Logger     *otelzap.Logger     // optional, defaults to a nop logger
	Tracer     trace.Tracer        // optional
}

// NewFlow creates a flow over the given repository and registry.
func NewFlow(cfg FlowConfig) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Flow{
		repo:       cfg.Repository,
		registry:   cfg.Registry,
		validators: cfg.Validators,
		settings:   cfg.Settings,
		logger:     logger,
		tracer:     cfg.Tracer,
	}
}

// CreateShipmentRequest carries the inputs for CreateShipment.
type CreateShipmentRequest struct {
	Provider string
	Sender   AddressInfo
	Receiver AddressInfo
	Parcels  []ParcelInfo
	OrderRef string
	Extra    map[string]any
}

// CreateShipment creates a shipment row, registers it with the carrier,
// and advances it to CREATED (or LABEL_READY when the carrier returned
// a label inline). On a provider failure the shipment is moved to
// FAILED before the error is returned, so the caller observes both a
// persisted terminal state and a *ProviderError.
func (f *Flow) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*Shipment, error) {
	ctx, end := f.span(ctx, "parcel.create_shipment")
	defer end()

	if err := f.validators.Run(ctx, OpCreateShipment, nil, map[string]any{
		"provider": req.Provider,
		"sender":   req.Sender,
		"receiver": req.Receiver,
		"parcels":  req.Parcels,
	}); err != nil {
		return nil, err
	}

	// Resolve the descriptor before touching the repository so an
	// unknown slug never leaves an orphaned row behind.
	if _, err := f.registry.Get(req.Provider); err != nil {
		return nil, err
	}

	shipment, err := f.repo.Create(ctx, &Shipment{
		Status:   StatusNew,
		Provider: req.Provider,
		OrderRef: req.OrderRef,
	})
	if err != nil {
		return nil, fmt.Errorf("creating shipment record: %w", err)
	}

	provider, err := f.instantiate(shipment)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Creating shipment with provider",
		zap.String("shipment_id", shipment.ID),
		zap.String("provider", req.Provider),
		zap.Int("parcel_count", len(req.Parcels)),
	)

	result, err := provider.CreateShipment(ctx, &CreateRequest{
		Sender:   req.Sender,
		Receiver: req.Receiver,
		Parcels:  req.Parcels,
		Extra:    req.Extra,
	})
	if err != nil {
		return nil, f.failShipment(ctx, shipment, OpCreateShipment, err)
	}

	shipment.ExternalID = result.ExternalID
	shipment.TrackingNumber = result.TrackingNumber

	status, err := ApplyTransition(shipment.Status, TransitionConfirmCreated, FieldsOf(shipment))
	if err != nil {
		return nil, err
	}
	shipment.Status = status

	if result.Label != nil && result.Label.URL != "" {
		shipment.LabelURL = result.Label.URL
		if CanTransition(shipment.Status, TransitionConfirmLabel, FieldsOf(shipment)) {
			shipment.Status, _ = ApplyTransition(shipment.Status, TransitionConfirmLabel, FieldsOf(shipment))
		}
	}

	return f.repo.UpdateStatus(ctx, shipment.ID, shipment.Status, &ShipmentPatch{
		ExternalID:     strptr(shipment.ExternalID),
		TrackingNumber: strptr(shipment.TrackingNumber),
		LabelURL:       strptr(shipment.LabelURL),
	})
}

// CreateLabel asks the provider for a shipping label and advances the
// shipment to LABEL_READY. The provider must declare the Label
// capability.
func (f *Flow) CreateLabel(ctx context.Context, shipmentID string) (*Shipment, error) {
	ctx, end := f.span(ctx, "parcel.create_label")
	defer end()

	shipment, provider, err := f.load(ctx, OpCreateLabel, shipmentID, nil)
	if err != nil {
		return nil, err
	}

	labeler, ok := provider.(Labeler)
	if !ok || !f.supports(shipment, CapabilityLabel) {
		return nil, fmt.Errorf("%w: %s does not support labeling", ErrUnsupportedCapability, shipment.Provider)
	}

	label, err := labeler.CreateLabel(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: shipment.Provider, Op: OpCreateLabel, Cause: err}
	}

	shipment.LabelURL = label.URL
	status, err := ApplyTransition(shipment.Status, TransitionConfirmLabel, FieldsOf(shipment))
	if err != nil {
		return nil, err
	}

	f.logger.Info("Label ready",
		zap.String("shipment_id", shipment.ID),
		zap.String("provider", shipment.Provider),
		zap.String("label_url", shipment.LabelURL),
	)

	return f.repo.UpdateStatus(ctx, shipment.ID, status, &ShipmentPatch{
		LabelURL: strptr(shipment.LabelURL),
	})
}

// HandleCallback verifies and applies an inbound carrier webhook. The
// provider must declare the PushCallback capability. A payload that
// fails verification leaves the shipment untouched and surfaces
// ErrInvalidCallback; a reported status whose transition is unreachable
// from the current status surfaces ErrInvalidTransition without
// persisting.
func (f *Flow) HandleCallback(ctx context.Context, shipmentID string, data map[string]any, headers map[string]string) (*Shipment, error) {
	ctx, end := f.span(ctx, "parcel.handle_callback")
	defer end()

	shipment, provider, err := f.load(ctx, OpHandleCallback, shipmentID, map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	handler, ok := provider.(CallbackHandler)
	if !ok || !f.supports(shipment, CapabilityPushCallback) {
		return nil, fmt.Errorf("%w: %s does not support callbacks", ErrUnsupportedCapability, shipment.Provider)
	}

	if err := handler.VerifyCallback(ctx, data, headers); err != nil {
		f.logger.Warn("Callback verification failed",
			zap.String("shipment_id", shipment.ID),
			zap.String("provider", shipment.Provider),
			zap.Error(err),
		)
		return nil, err
	}

	target, err := handler.HandleCallback(ctx, data, headers)
	if err != nil {
		return nil, &ProviderError{Provider: shipment.Provider, Op: OpHandleCallback, Cause: err}
	}
	if target == "" || target == shipment.Status {
		return shipment, nil
	}

	return f.applyReported(ctx, shipment, target)
}

// PollStatus fetches the carrier-side status and applies the matching
// transition when it differs from the current one. An unchanged status
// is a successful no-op, so repeated polls are idempotent. The provider
// must declare the PullStatus capability.
func (f *Flow) PollStatus(ctx context.Context, shipmentID string) (*Shipment, error) {
	ctx, end := f.span(ctx, "parcel.poll_status")
	defer end()

	shipment, provider, err := f.load(ctx, OpPollStatus, shipmentID, nil)
	if err != nil {
		return nil, err
	}

	fetcher, ok := provider.(StatusFetcher)
	if !ok || !f.supports(shipment, CapabilityPullStatus) {
		return nil, fmt.Errorf("%w: %s does not support status polling", ErrUnsupportedCapability, shipment.Provider)
	}

	resp, err := fetcher.FetchStatus(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: shipment.Provider, Op: OpPollStatus, Cause: err}
	}

	if len(resp.TrackingEvents) > 0 {
		f.logger.Debug("Tracking events received",
			zap.String("shipment_id", shipment.ID),
			zap.Int("event_count", len(resp.TrackingEvents)),
		)
	}

	if resp.Status == "" || resp.Status == shipment.Status {
		return shipment, nil
	}

	return f.applyReported(ctx, shipment, resp.Status)
}

// CancelShipment cancels a shipment that has not left the warehouse
// (NEW, CREATED, or LABEL_READY). When the provider declares the
// Cancellable capability the carrier is told as well, but the local
// state machine stays authoritative: a carrier refusal is logged and
// does not block the local transition.
func (f *Flow) CancelShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	ctx, end := f.span(ctx, "parcel.cancel_shipment")
	defer end()

	shipment, provider, err := f.load(ctx, OpCancelShipment, shipmentID, nil)
	if err != nil {
		return nil, err
	}

	status, err := ApplyTransition(shipment.Status, TransitionCancel, FieldsOf(shipment))
	if err != nil {
		return nil, err
	}

	if canceller, ok := provider.(Canceller); ok && f.supports(shipment, CapabilityCancel) {
		accepted, err := canceller.CancelShipment(ctx)
		if err != nil {
			return nil, &ProviderError{Provider: shipment.Provider, Op: OpCancelShipment, Cause: err}
		}
		if !accepted {
			f.logger.Warn("Carrier refused cancellation, cancelling locally",
				zap.String("shipment_id", shipment.ID),
				zap.String("provider", shipment.Provider),
			)
		}
	}

	return f.repo.UpdateStatus(ctx, shipment.ID, status, nil)
}

// load fetches the shipment, runs the validator chain against its
// current state, and instantiates its provider.
func (f *Flow) load(ctx context.Context, op, shipmentID string, payload map[string]any) (*Shipment, Provider, error) {
	shipment, err := f.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, nil, err
	}
	if err := f.validators.Run(ctx, op, shipment, payload); err != nil {
		return nil, nil, err
	}
	provider, err := f.instantiate(shipment)
	if err != nil {
		return nil, nil, err
	}
	return shipment, provider, nil
}

func (f *Flow) instantiate(shipment *Shipment) (Provider, error) {
	return f.registry.Instantiate(shipment.Provider, shipment, f.settings[shipment.Provider])
}

/// supports checks capability support both ways: the descriptor must
// declare the capability and the instance must satisfy its interface.
func (f *Flow) supports(shipment *Shipment, cap Capability) bool {
	desc, err := f.registry.Get(shipment.Provider)
	if err != nil {
		return false
	}
	return desc.Capabilities.Has(cap)
}

// applyReported maps a provider-reported status to its transition,
// checks reachability from the current status, and persists the result.
func (f *Flow) applyReported(ctx context.Context, shipment *Shipment, target ShipmentStatus) (*Shipment, error) {
	name, ok := TransitionForStatus(target)
	if !ok {
		return nil, fmt.Errorf("%w: no transition reaches status %s", ErrInvalidTransition, target)
	}
	status, err := ApplyTransition(shipment.Status, name, FieldsOf(shipment))
	if err != nil {
		return nil, err
	}
	f.logger.Info("Applying reported status",
		zap.String("shipment_id", shipment.ID),
		zap.String("provider", shipment.Provider),
		zap.String("transition", name),
		zap.String("from", string(shipment.Status)),
		zap.String("to", string(status)),
	)
	return f.repo.UpdateStatus(ctx, shipment.ID, status, nil)
}

// failShipment performs the compensating FAILED transition after a
// provider failure during creation and re-raises the wrapped cause.
func (f *Flow) failShipment(ctx context.Context, shipment *Shipment, op string, cause error) error {
	status, terr := ApplyTransition(shipment.Status, TransitionFail, FieldsOf(shipment))
	if terr == nil {
		if _, perr := f.repo.UpdateStatus(ctx, shipment.ID, status, nil); perr != nil {
			f.logger.Error("Failed to persist FAILED status",
				zap.String("shipment_id", shipment.ID),
				zap.Error(perr),
			)
		}
	}
	f.logger.Error("Provider rejected shipment",
		zap.String("shipment_id", shipment.ID),
		zap.String("provider", shipment.Provider),
		zap.Error(cause),
	)
	return &ProviderError{Provider: shipment.Provider, Op: op, Cause: cause}
}

func (f *Flow) span(ctx context.Context, name string) (context.Context, func()) {
	if f.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := f.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
