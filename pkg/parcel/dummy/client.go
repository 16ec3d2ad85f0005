// Package dummy provides the deterministic built-in reference provider
// used for local development and tests. It talks to no carrier: results
// are derived from a process-wide sequence and the settings map.
package dummy

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tournevent/sendparcel/pkg/parcel"
)

// Slug is the registry key of the dummy provider.
const Slug = "dummy"

// sequence numbers successful CreateShipment calls across the process.
var sequence atomic.Int64

// ResetSequence rewinds the create counter. Test support only.
func ResetSequence() {
	sequence.Store(0)
}

// Client is the dummy provider instance, bound to one shipment.
type Client struct {
	shipment *parcel.Shipment
	settings parcel.Settings
	caps     parcel.Capabilities
}

// Descriptor returns the dummy descriptor declaring all capabilities.
func Descriptor() parcel.Descriptor {
	return DescriptorWith(parcel.AllCapabilities())
}

// DescriptorWith returns a dummy descriptor declaring only the given
// capability subset. Instances created from it satisfy exactly those
// capability interfaces, which makes it useful for exercising
// capability rejections in tests.
func DescriptorWith(caps parcel.Capabilities) parcel.Descriptor {
	return parcel.Descriptor{
		Slug:               Slug,
		DisplayName:        "Dummy",
		SupportedCountries: []string{"PL", "DE", "US"},
		SupportedServices:  []string{"standard", "express"},
		ConfirmationMethod: parcel.ConfirmPush,
		UserSelectable:     true,
		Capabilities:       caps,
		New: func(shipment *parcel.Shipment, settings parcel.Settings) parcel.Provider {
			return &Client{shipment: shipment, settings: settings, caps: caps}
		},
	}
}

// Slug returns the provider identifier.
func (c *Client) Slug() string {
	return Slug
}

// CreateShipment returns deterministic identifiers: the Nth successful
// call in the process yields external ID "dummy-N" and tracking number
// "DUMMY-N". When the Label capability is declared the result carries
// an inline label.
func (c *Client) CreateShipment(ctx context.Context, req *parcel.CreateRequest) (*parcel.ShipmentCreateResult, error) {
	if err := c.simulateLatency(ctx); err != nil {
		return nil, err
	}
	n := sequence.Add(1)
	result := &parcel.ShipmentCreateResult{
		ExternalID:     fmt.Sprintf("dummy-%d", n),
		TrackingNumber: fmt.Sprintf("DUMMY-%d", n),
	}
	if c.caps.Has(parcel.CapabilityLabel) {
		result.Label = &parcel.LabelInfo{Format: parcel.LabelPDF, URL: c.labelURL()}
	}
	return result, nil
}

// CreateLabel returns a PDF label hosted under the label_base_url setting.
func (c *Client) CreateLabel(ctx context.Context) (*parcel.LabelInfo, error) {
	if err := c.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return &parcel.LabelInfo{Format: parcel.LabelPDF, URL: c.labelURL()}, nil
}

// VerifyCallback checks the x-dummy-token header against the
// callback_token setting.
func (c *Client) VerifyCallback(ctx context.Context, data map[string]any, headers map[string]string) error {
	expected := c.settings.String("callback_token", "dummy-token")
	if headers["x-dummy-token"] != expected {
		return fmt.Errorf("%w: bad token", parcel.ErrInvalidCallback)
	}
	return nil
}

// HandleCallback reads the reported status from the payload. A missing
// status means "no change".
func (c *Client) HandleCallback(ctx context.Context, data map[string]any, headers map[string]string) (parcel.ShipmentStatus, error) {
	if err := c.simulateLatency(ctx); err != nil {
		return "", err
	}
	status, _ := data["status"].(string)
	return parcel.ShipmentStatus(status), nil
}

// FetchStatus reports the status_override setting, or the shipment's
// current status when unset (a no-op poll).
func (c *Client) FetchStatus(ctx context.Context) (*parcel.ShipmentStatusResponse, error) {
	if err := c.simulateLatency(ctx); err != nil {
		return nil, err
	}
	status := c.settings.String("status_override", string(c.shipment.Status))
	return &parcel.ShipmentStatusResponse{Status: parcel.ShipmentStatus(status)}, nil
}

// CancelShipment reports the cancel_success setting, true by default.
func (c *Client) CancelShipment(ctx context.Context) (bool, error) {
	if err := c.simulateLatency(ctx); err != nil {
		return false, err
	}
	return c.settings.Bool("cancel_success", true), nil
}

func (c *Client) labelURL() string {
	base := c.settings.String("label_base_url", "https://dummy.local/labels")
	return fmt.Sprintf("%s/%s.pdf", strings.TrimRight(base, "/"), c.shipment.ID)
}

func (c *Client) simulateLatency(ctx context.Context) error {
	delay := c.settings.Duration("latency", 0)
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
