// Package memory provides an in-memory Repository implementation with
// optimistic versioning. It backs the reference wiring and the flow
// tests; production deployments supply their own persistence.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/sendparcel/pkg/parcel"
)

// ErrVersionConflict indicates a Save raced with another writer: the
// shipment's stored version no longer matches the version read.
var ErrVersionConflict = errors.New("shipment version conflict")

// Repository is a thread-safe in-memory shipment store.
type Repository struct {
	mu        sync.RWMutex
	shipments map[string]*parcel.Shipment
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{shipments: make(map[string]*parcel.Shipment)}
}

// Create assigns an identity and persists a new shipment row.
func (r *Repository) Create(ctx context.Context, shipment *parcel.Shipment) (*parcel.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *shipment
	stored.ID = uuid.New().String()
	stored.Version = 1
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.shipments[stored.ID] = &stored

	out := stored
	return &out, nil
}

// GetByID returns a copy of the stored shipment.
func (r *Repository) GetByID(ctx context.Context, id string) (*parcel.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parcel.ErrShipmentNotFound, id)
	}
	out := *stored
	return &out, nil
}

// Save persists the full record. It fails with ErrVersionConflict when
// the stored version differs from the version the caller read, which
// gives concurrent flow invocations on one shipment read-modify-write
// atomicity.
func (r *Repository) Save(ctx context.Context, shipment *parcel.Shipment) (*parcel.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.shipments[shipment.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parcel.ErrShipmentNotFound, shipment.ID)
	}
	if stored.Version != shipment.Version {
		return nil, fmt.Errorf("%w: %s read v%d, stored v%d",
			ErrVersionConflict, shipment.ID, shipment.Version, stored.Version)
	}

	next := *shipment
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	next.CreatedAt = stored.CreatedAt
	r.shipments[next.ID] = &next

	out := next
	return &out, nil
}

// UpdateStatus atomically applies a status change plus patched fields.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status parcel.ShipmentStatus, patch *parcel.ShipmentPatch) (*parcel.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parcel.ErrShipmentNotFound, id)
	}

	next := *stored
	next.Status = status
	if patch != nil {
		if patch.ExternalID != nil {
			next.ExternalID = *patch.ExternalID
		}
		if patch.TrackingNumber != nil {
			next.TrackingNumber = *patch.TrackingNumber
		}
		if patch.LabelURL != nil {
			next.LabelURL = *patch.LabelURL
		}
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.shipments[id] = &next

	out := next
	return &out, nil
}

// ListActive returns copies of all shipments in a non-terminal status.
// Used by the polling sweep.
func (r *Repository) ListActive(ctx context.Context) ([]*parcel.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*parcel.Shipment, 0, len(r.shipments))
	for _, stored := range r.shipments {
		if parcel.IsTerminal(stored.Status) {
			continue
		}
		out := *stored
		active = append(active, &out)
	}
	return active, nil
}
