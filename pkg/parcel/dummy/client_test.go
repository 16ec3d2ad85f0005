package dummy_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/tournevent/sendparcel/pkg/parcel/dummy"
	"github.com/tournevent/sendparcel/pkg/parcel/memory"
)

func newDummyFlow(t *testing.T, desc parcel.Descriptor, settings parcel.Settings) (*parcel.Flow, *memory.Repository) {
	t.Helper()
	dummy.ResetSequence()

	registry := parcel.NewRegistry()
	require.NoError(t, registry.Register(desc))

	repo := memory.NewRepository()
	flow := parcel.NewFlow(parcel.FlowConfig{
		Repository: repo,
		Registry:   registry,
		Settings:   map[string]parcel.Settings{dummy.Slug: settings},
	})
	return flow, repo
}

func dummyCreateReq() *parcel.CreateShipmentRequest {
	return &parcel.CreateShipmentRequest{
		Provider: dummy.Slug,
		Sender:   parcel.AddressInfo{Name: "Sender", City: "Warsaw", CountryCode: "PL"},
		Receiver: parcel.AddressInfo{Name: "Receiver", City: "Berlin", CountryCode: "DE"},
		Parcels:  []parcel.ParcelInfo{{WeightKG: 2.0}},
	}
}

func TestCreateShipment_DeterministicSequence(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), nil)

	first, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)
	second, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	assert.Equal(t, "dummy-1", first.ExternalID)
	assert.Equal(t, "DUMMY-1", first.TrackingNumber)
	assert.Equal(t, "dummy-2", second.ExternalID)
	assert.Equal(t, "DUMMY-2", second.TrackingNumber)
}

func TestCreateShipment_InlineLabelWithCapability(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), parcel.Settings{
		"label_base_url": "https://labels.example/",
	})

	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	assert.Equal(t, parcel.StatusLabelReady, shipment.Status)
	assert.True(t, strings.HasPrefix(shipment.LabelURL, "https://labels.example/"))
	assert.True(t, strings.HasSuffix(shipment.LabelURL, shipment.ID+".pdf"))
}

func TestCreateShipment_NoLabelCapabilityStopsAtCreated(t *testing.T) {
	desc := dummy.DescriptorWith(parcel.Capabilities{
		parcel.CapabilityPushCallback,
		parcel.CapabilityPullStatus,
		parcel.CapabilityCancel,
	})
	flow, _ := newDummyFlow(t, desc, nil)

	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	assert.Equal(t, parcel.StatusCreated, shipment.Status)
	assert.Empty(t, shipment.LabelURL)
}

func TestHandleCallback_TokenVerification(t *testing.T) {
	flow, repo := newDummyFlow(t, dummy.Descriptor(), parcel.Settings{
		"callback_token": "s3cret",
	})
	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), shipment.ID,
		map[string]any{"status": "in_transit"},
		map[string]string{"x-dummy-token": "wrong"})
	assert.True(t, errors.Is(err, parcel.ErrInvalidCallback))

	stored, err := repo.GetByID(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusLabelReady, stored.Status)

	updated, err := flow.HandleCallback(context.Background(), shipment.ID,
		map[string]any{"status": "in_transit"},
		map[string]string{"x-dummy-token": "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusInTransit, updated.Status)
}

func TestHandleCallback_DefaultToken(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), nil)
	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	updated, err := flow.HandleCallback(context.Background(), shipment.ID,
		map[string]any{"status": "in_transit"},
		map[string]string{"x-dummy-token": "dummy-token"})
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusInTransit, updated.Status)
}

func TestFetchStatus_OverrideDrivesPolling(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), parcel.Settings{
		"status_override": "in_transit",
	})
	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	updated, err := flow.PollStatus(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusInTransit, updated.Status)

	// The override now matches the current status, so further polls
	// are no-ops.
	again, err := flow.PollStatus(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, again.Version)
}

func TestCancelShipment_RespectsCancelSuccessSetting(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), parcel.Settings{
		"cancel_success": false,
	})
	shipment, err := flow.CreateShipment(context.Background(), dummyCreateReq())
	require.NoError(t, err)

	// A carrier refusal is advisory; the local cancel still lands.
	updated, err := flow.CancelShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusCancelled, updated.Status)
}

func TestSimulateLatency_HonorsContextCancellation(t *testing.T) {
	flow, _ := newDummyFlow(t, dummy.Descriptor(), parcel.Settings{
		"latency": 5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := flow.CreateShipment(ctx, dummyCreateReq())
	assert.True(t, errors.Is(err, context.Canceled))
}