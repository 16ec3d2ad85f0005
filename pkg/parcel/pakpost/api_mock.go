package pakpost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateParcel func(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error)
	OnGetLabel     func(ctx context.Context, parcelID string, format string) (*LabelResponse, error)
	OnGetTracking  func(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
	OnCancelParcel func(ctx context.Context, parcelID string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) before() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// CreateParcel returns a mock parcel registration.
func (m *MockAPIClient) CreateParcel(ctx context.Context, req *ParcelRequest) (*ParcelResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnCreateParcel != nil {
		return m.OnCreateParcel(ctx, req)
	}

	parcelID := "pp-" + uuid.New().String()[:8]
	return &ParcelResponse{
		ParcelID:       parcelID,
		TrackingNumber: fmt.Sprintf("PP%d", time.Now().UnixNano()%1000000000),
		Status:         wireStatusRegistered,
	}, nil
}

// GetLabel returns a mock label.
func (m *MockAPIClient) GetLabel(ctx context.Context, parcelID string, format string) (*LabelResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnGetLabel != nil {
		return m.OnGetLabel(ctx, parcelID, format)
	}

	if format == "" {
		format = "pdf"
	}
	return &LabelResponse{
		ParcelID: parcelID,
		Format:   format,
		URL:      fmt.Sprintf("https://labels.pakpost.mock/%s.%s", parcelID, format),
	}, nil
}

// GetTracking returns a mock tracking timeline.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingNumber)
	}

	now := time.Now().UTC()
	return &TrackingResponse{
		TrackingNumber: trackingNumber,
		Status:         wireStatusInTransit,
		Events: []TrackingEvent{
			{
				Code:        "PU",
				Description: "Picked up by carrier",
				Location:    "Warsaw DC",
				Timestamp:   now.Add(-2 * time.Hour).Format(time.RFC3339),
			},
			{
				Code:        "IT",
				Description: "In transit to destination hub",
				Location:    "Poznan Hub",
				Timestamp:   now.Format(time.RFC3339),
			},
		},
	}, nil
}

// CancelParcel returns a mock cancellation confirmation.
func (m *MockAPIClient) CancelParcel(ctx context.Context, parcelID string) (*CancelResponse, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	if m.OnCancelParcel != nil {
		return m.OnCancelParcel(ctx, parcelID)
	}

	return &CancelResponse{ParcelID: parcelID, Cancelled: true}, nil
}
