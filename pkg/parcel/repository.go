package parcel

import (
	"context"
)

// ShipmentPatch carries the optional field updates persisted alongside
// a status change. A nil field is left untouched.
type ShipmentPatch struct {
	ExternalID     *string
	TrackingNumber *string
	LabelURL       *string
}

// Repository is the persistence collaborator owning Shipment storage.
// Implementations must supply atomic read-modify-write semantics (for
// example optimistic versioning) if concurrent operations on one
// shipment are possible; the flow provides no per-shipment mutual
// exclusion of its own.
type Repository interface {
	// Create persists a new shipment row and assigns its identity.
	Create(ctx context.Context, shipment *Shipment) (*Shipment, error)

	// GetByID fetches a shipment, failing with ErrShipmentNotFound
	// when absent.
	GetByID(ctx context.Context, id string) (*Shipment, error)

	// Save persists the full shipment record.
	Save(ctx context.Context, shipment *Shipment) (*Shipment, error)

	// UpdateStatus atomically applies a status change plus the patched
	// fields and returns the updated shipment.
	UpdateStatus(ctx context.Context, id string, status ShipmentStatus, patch *ShipmentPatch) (*Shipment, error)
}

func strptr(s string) *string { return &s }
