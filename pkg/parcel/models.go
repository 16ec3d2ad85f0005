package parcel

import (
	"time"
)

// ShipmentStatus represents the lifecycle status of a shipment.
type ShipmentStatus string

const (
	StatusNew            ShipmentStatus = "new"
	StatusCreated        ShipmentStatus = "created"
	StatusLabelReady     ShipmentStatus = "label_ready"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusCancelled      ShipmentStatus = "cancelled"
	StatusFailed         ShipmentStatus = "failed"
	StatusReturned       ShipmentStatus = "returned"
)

// ConfirmationMethod describes how a provider reports status changes:
// by inbound webhook (PUSH) or by active polling (PULL).
type ConfirmationMethod string

const (
	ConfirmPush ConfirmationMethod = "PUSH"
	ConfirmPull ConfirmationMethod = "PULL"
)

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "pdf"
	LabelPNG LabelFormat = "png"
	LabelZPL LabelFormat = "zpl"
)

// Shipment is a single parcel-delivery record tracked through the
// lifecycle state machine. Persistence is owned by the Repository
// collaborator; the flow only mutates it through guarded transitions.
type Shipment struct {
	ID             string
	Status         ShipmentStatus
	Provider       string // provider slug
	ExternalID     string // carrier-side shipment identifier
	TrackingNumber string
	LabelURL       string
	OrderRef       string // optional reference to order data
	Version        int64  // optimistic concurrency token, repository-owned
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddressInfo describes a sender or receiver address.
type AddressInfo struct {
	Name        string
	Company     string
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string // ISO 3166-1 alpha-2
	Phone       string
	Email       string
}

// ParcelInfo describes the physical attributes of one parcel.
type ParcelInfo struct {
	WeightKG float64
	LengthCM float64
	WidthCM  float64
	HeightCM float64
}

// LabelInfo is the label metadata returned by a provider.
type LabelInfo struct {
	Format LabelFormat
	URL    string
	Data   string // base64 encoded if inline
}

// TrackingEvent is a single entry on a shipment's tracking timeline.
type TrackingEvent struct {
	Code        string
	Description string
	Location    string
	OccurredAt  time.Time
}

// ShipmentCreateResult is the provider response for CreateShipment.
// The flow never persists fields it did not receive here.
type ShipmentCreateResult struct {
	ExternalID     string
	TrackingNumber string
	Label          *LabelInfo // inline label, if the carrier returns one
}

// ShipmentStatusResponse is the provider response for FetchStatus.
type ShipmentStatusResponse struct {
	Status         ShipmentStatus // empty means "no change reported"
	TrackingEvents []TrackingEvent
}

// CreateRequest carries the data a provider needs to create a shipment
// with its carrier.
type CreateRequest struct {
	Sender   AddressInfo
	Receiver AddressInfo
	Parcels  []ParcelInfo
	Extra    map[string]any
}

// Settings is the per-provider configuration map handed to a provider
// instance at instantiation time. It is passed through unmodified from
// the host's configuration surface.
type Settings map[string]any

// String reads a string setting, falling back to def when absent.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// Bool reads a boolean setting, falling back to def when absent.
func (s Settings) Bool(key string, def bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return def
}

// Duration reads a time.Duration setting, falling back to def when absent.
func (s Settings) Duration(key string, def time.Duration) time.Duration {
	if v, ok := s[key].(time.Duration); ok {
		return v
	}
	return def
}
