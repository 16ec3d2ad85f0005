// Package parcel provides a carrier-agnostic shipment lifecycle core:
// a guarded state machine over shipment status, a provider plugin
// registry, an optional-capability model, a pre-operation validator
// chain, and the Flow orchestrator that composes them with a
// Repository collaborator.
package parcel

import (
	"context"
)

// Provider is the minimal contract every carrier integration must
// implement. An instance is bound to exactly one shipment and one
// settings map at instantiation time.
//
// Optional operations are declared through the capability interfaces
// below (Labeler, CallbackHandler, StatusFetcher, Canceller). The flow
// checks interface satisfaction before invoking any of them.
type Provider interface {
	// Slug returns the provider identifier (e.g., "dummy", "pakpost").
	Slug() string

	// CreateShipment registers the shipment with the carrier.
	CreateShipment(ctx context.Context, req *CreateRequest) (*ShipmentCreateResult, error)
}

// Labeler is the capability trait for providers that can generate
// shipping labels.
type Labeler interface {
	CreateLabel(ctx context.Context) (*LabelInfo, error)
}

// CallbackHandler is the capability trait for providers that receive
// push notifications (webhooks) from their carrier.
type CallbackHandler interface {
	// VerifyCallback authenticates an inbound callback payload.
	// Implementations must return an error wrapping ErrInvalidCallback
	// to reject it.
	VerifyCallback(ctx context.Context, data map[string]any, headers map[string]string) error

	// HandleCallback interprets a verified callback payload and returns
	// the status the carrier reports. An empty status means the payload
	// carries no status change.
	HandleCallback(ctx context.Context, data map[string]any, headers map[string]string) (ShipmentStatus, error)
}

// StatusFetcher is the capability trait for providers whose status must
// be actively polled.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*ShipmentStatusResponse, error)
}

// Canceller is the capability trait for providers that support
// carrier-side cancellation. A false result means the carrier refused;
// the local state machine remains authoritative for the recorded status.
type Canceller interface {
	CancelShipment(ctx context.Context) (bool, error)
}

// Capability names one optional provider trait.
type Capability string

const (
	CapabilityLabel        Capability = "label"
	CapabilityPushCallback Capability = "push_callback"
	CapabilityPullStatus   Capability = "pull_status"
	CapabilityCancel       Capability = "cancel"
)

// Capabilities is the declared capability set of a provider descriptor.
type Capabilities []Capability

// Has reports whether c is in the set.
func (cs Capabilities) Has(c Capability) bool {
	for _, have := range cs {
		if have == c {
			return true
		}
	}
	return false
}

// AllCapabilities returns the full closed capability set.
func AllCapabilities() Capabilities {
	return Capabilities{
		CapabilityLabel,
		CapabilityPushCallback,
		CapabilityPullStatus,
		CapabilityCancel,
	}
}

// Factory binds a concrete provider implementation to one shipment and
// a settings map for the duration of a single flow operation.
type Factory func(shipment *Shipment, settings Settings) Provider

// Descriptor describes a registered provider: its identity, service
// metadata, declared capability set, and the factory used to
// instantiate it.
type Descriptor struct {
	Slug               string
	DisplayName        string
	SupportedCountries []string
	SupportedServices  []string
	ConfirmationMethod ConfirmationMethod
	UserSelectable     bool
	Capabilities       Capabilities
	New                Factory
}
