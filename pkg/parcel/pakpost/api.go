package pakpost

import (
	"context"
	"fmt"
)

// APIClient defines the interface for PakPost API operations. The
// abstraction allows mock implementations during testing and the real
// HTTP implementation in production.
type APIClient interface {
	// CreateParcel registers a parcel with PakPost.
	CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error)

	// GetLabel retrieves the shipping label for a parcel.
	GetLabel(ctx context.Context, parcelID string, format string) (*LabelResponse, error)

	// GetTracking retrieves the tracking timeline for a parcel.
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error)

	// CancelParcel cancels a parcel before pickup.
	CancelParcel(ctx context.Context, parcelID string) (*CancelResponse, error)
}

// ============================================================================
// API Request/Response Types (match PakPost REST API v1 structure)
// ============================================================================

// ParcelRequest represents a PakPost parcel creation request.
// POST /parcels endpoint
type ParcelRequest struct {
	Reference string    `json:"reference,omitempty"`
	Sender    Party     `json:"sender"`
	Receiver  Party     `json:"receiver"`
	Packages  []Package `json:"packages"`
	Service   string    `json:"service,omitempty"`
}

// Party represents sender or receiver details.
type Party struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2 code
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Package represents a single package.
type Package struct {
	WeightKG float64 `json:"weight_kg"`
	LengthCM float64 `json:"length_cm"`
	WidthCM  float64 `json:"width_cm"`
	HeightCM float64 `json:"height_cm"`
}

// ParcelResponse is returned by POST /parcels.
type ParcelResponse struct {
	ParcelID       string `json:"parcel_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	LabelURL       string `json:"label_url,omitempty"`
}

// LabelResponse is returned by GET /parcels/{id}/label.
type LabelResponse struct {
	ParcelID string `json:"parcel_id"`
	Format   string `json:"format"`
	URL      string `json:"url"`
	Data     string `json:"data,omitempty"` // base64 when inline
}

// TrackingResponse is returned by GET /tracking/{number}.
type TrackingResponse struct {
	TrackingNumber string          `json:"tracking_number"`
	Status         string          `json:"status"`
	Events         []TrackingEvent `json:"events,omitempty"`
}

// TrackingEvent is one entry on the PakPost tracking timeline.
type TrackingEvent struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Timestamp   string `json:"timestamp"` // RFC 3339
}

// CancelResponse is returned by POST /parcels/{id}/cancel.
type CancelResponse struct {
	ParcelID  string `json:"parcel_id"`
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

// APIError represents an error response from the PakPost API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("pakpost API error %s: %s", e.Code, e.Message)
}

// PakPost wire statuses.
const (
	wireStatusRegistered     = "REGISTERED"
	wireStatusLabelGenerated = "LABEL_GENERATED"
	wireStatusInTransit      = "IN_TRANSIT"
	wireStatusOutForDelivery = "OUT_FOR_DELIVERY"
	wireStatusDelivered      = "DELIVERED"
	wireStatusReturned       = "RETURNED"
	wireStatusCancelled      = "CANCELLED"
	wireStatusLost           = "LOST"
)
