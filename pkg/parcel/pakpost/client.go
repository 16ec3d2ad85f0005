// Package pakpost provides integration with the PakPost shipping API.
// PakPost is a PULL carrier: status changes are fetched by polling its
// tracking endpoint rather than delivered by webhook.
package pakpost

import (
	"context"
	"time"

	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Slug is the registry key of the PakPost provider.
const Slug = "pakpost"

// Config holds PakPost configuration.
type Config struct {
	APIKey  string
	BaseURL string
	UseMock bool // When true, uses the mock API client
}

// Client is the PakPost provider instance. It implements
// parcel.Provider plus the Labeler, StatusFetcher, and Canceller
// capabilities, delegating API calls to the underlying APIClient.
type Client struct {
	config    Config
	shipment  *parcel.Shipment
	settings  parcel.Settings
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// Descriptor returns the PakPost provider descriptor. The returned
// factory binds each instance to one shipment and its settings.
func Descriptor(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) parcel.Descriptor {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: 30 * time.Second,
		})
	}
	return DescriptorWithAPIClient(cfg, apiClient, logger, tracer)
}

// DescriptorWithAPIClient returns a descriptor whose instances use a
// custom API client. Useful for injecting mocks in tests.
func DescriptorWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) parcel.Descriptor {
	return parcel.Descriptor{
		Slug:               Slug,
		DisplayName:        "PakPost",
		SupportedCountries: []string{"PL", "DE", "CZ", "SK"},
		SupportedServices:  []string{"standard", "express"},
		ConfirmationMethod: parcel.ConfirmPull,
		UserSelectable:     true,
		Capabilities: parcel.Capabilities{
			parcel.CapabilityLabel,
			parcel.CapabilityPullStatus,
			parcel.CapabilityCancel,
		},
		New: func(shipment *parcel.Shipment, settings parcel.Settings) parcel.Provider {
			return &Client{
				config:    cfg,
				shipment:  shipment,
				settings:  settings,
				apiClient: apiClient,
				logger:    logger,
				tracer:    tracer,
			}
		},
	}
}

// Slug returns the provider identifier.
func (c *Client) Slug() string {
	return Slug
}

// CreateShipment registers the shipment with PakPost.
func (c *Client) CreateShipment(ctx context.Context, req *parcel.CreateRequest) (*parcel.ShipmentCreateResult, error) {
	c.logger.Info("Creating PakPost parcel",
		zap.String("shipment_id", c.shipment.ID),
		zap.String("receiver_city", req.Receiver.City),
		zap.Int("package_count", len(req.Parcels)),
	)

	apiReq := &ParcelRequest{
		Reference: c.shipment.OrderRef,
		Sender:    addressToParty(req.Sender),
		Receiver:  addressToParty(req.Receiver),
		Packages:  parcelsToAPI(req.Parcels),
		Service:   c.settings.String("service", "standard"),
	}

	apiResp, err := c.apiClient.CreateParcel(ctx, apiReq)
	if err != nil {
		c.logger.Error("PakPost API error", zap.Error(err))
		return nil, err
	}

	result := &parcel.ShipmentCreateResult{
		ExternalID:     apiResp.ParcelID,
		TrackingNumber: apiResp.TrackingNumber,
	}
	if apiResp.LabelURL != "" {
		result.Label = &parcel.LabelInfo{Format: parcel.LabelPDF, URL: apiResp.LabelURL}
	}
	return result, nil
}

// CreateLabel fetches the shipping label for the shipment's parcel.
func (c *Client) CreateLabel(ctx context.Context) (*parcel.LabelInfo, error) {
	format := c.settings.String("label_format", string(parcel.LabelPDF))

	apiResp, err := c.apiClient.GetLabel(ctx, c.shipment.ExternalID, format)
	if err != nil {
		c.logger.Error("PakPost API error", zap.Error(err))
		return nil, err
	}

	return &parcel.LabelInfo{
		Format: parcel.LabelFormat(apiResp.Format),
		URL:    apiResp.URL,
		Data:   apiResp.Data,
	}, nil
}

// FetchStatus polls the PakPost tracking endpoint and normalizes the
// wire status.
func (c *Client) FetchStatus(ctx context.Context) (*parcel.ShipmentStatusResponse, error) {
	apiResp, err := c.apiClient.GetTracking(ctx, c.shipment.TrackingNumber)
	if err != nil {
		c.logger.Error("PakPost API error", zap.Error(err))
		return nil, err
	}

	return &parcel.ShipmentStatusResponse{
		Status:         wireStatusToParcel(apiResp.Status),
		TrackingEvents: eventsToParcel(apiResp.Events),
	}, nil
}

// CancelShipment asks PakPost to cancel the parcel before pickup.
func (c *Client) CancelShipment(ctx context.Context) (bool, error) {
	apiResp, err := c.apiClient.CancelParcel(ctx, c.shipment.ExternalID)
	if err != nil {
		c.logger.Error("PakPost API error", zap.Error(err))
		return false, err
	}
	if !apiResp.Cancelled {
		c.logger.Warn("PakPost refused cancellation",
			zap.String("parcel_id", apiResp.ParcelID),
			zap.String("reason", apiResp.Reason),
		)
	}
	return apiResp.Cancelled, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func addressToParty(a parcel.AddressInfo) Party {
	return Party{
		Name:       a.Name,
		Company:    a.Company,
		Street:     a.Line1,
		Street2:    a.Line2,
		City:       a.City,
		Region:     a.State,
		PostalCode: a.PostalCode,
		Country:    a.CountryCode,
		Phone:      a.Phone,
		Email:      a.Email,
	}
}

func parcelsToAPI(parcels []parcel.ParcelInfo) []Package {
	out := make([]Package, 0, len(parcels))
	for _, p := range parcels {
		out = append(out, Package{
			WeightKG: p.WeightKG,
			LengthCM: p.LengthCM,
			WidthCM:  p.WidthCM,
			HeightCM: p.HeightCM,
		})
	}
	return out
}

func wireStatusToParcel(status string) parcel.ShipmentStatus {
	switch status {
	case wireStatusRegistered:
		return parcel.StatusCreated
	case wireStatusLabelGenerated:
		return parcel.StatusLabelReady
	case wireStatusInTransit:
		return parcel.StatusInTransit
	case wireStatusOutForDelivery:
		return parcel.StatusOutForDelivery
	case wireStatusDelivered:
		return parcel.StatusDelivered
	case wireStatusReturned:
		return parcel.StatusReturned
	case wireStatusCancelled:
		return parcel.StatusCancelled
	case wireStatusLost:
		return parcel.StatusFailed
	default:
		// Unknown wire status reports no change.
		return ""
	}
}

func eventsToParcel(events []TrackingEvent) []parcel.TrackingEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]parcel.TrackingEvent, 0, len(events))
	for _, e := range events {
		occurred, _ := time.Parse(time.RFC3339, e.Timestamp)
		out = append(out, parcel.TrackingEvent{
			Code:        e.Code,
			Description: e.Description,
			Location:    e.Location,
			OccurredAt:  occurred,
		})
	}
	return out
}
