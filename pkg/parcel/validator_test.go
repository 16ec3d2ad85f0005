package parcel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendparcel/pkg/parcel"
)

func recordingValidator(name string, log *[]string, fail bool) parcel.Validator {
	return parcel.ValidatorFunc(func(ctx context.Context, op string, shipment *parcel.Shipment, payload map[string]any) error {
		*log = append(*log, name)
		if fail {
			return &parcel.ValidationError{Operation: op, Reason: name + " rejected"}
		}
		return nil
	})
}

func TestChain_RunOrder(t *testing.T) {
	var log []string
	chain := parcel.NewChain().
		Global(recordingValidator("global-1", &log, false)).
		For(parcel.OpCreateShipment, recordingValidator("scoped-1", &log, false)).
		Global(recordingValidator("global-2", &log, false)).
		For(parcel.OpCreateShipment, recordingValidator("scoped-2", &log, false))

	err := chain.Run(context.Background(), parcel.OpCreateShipment, nil, nil)
	require.NoError(t, err)

	// Globals run first in registration order, then scoped ones.
	assert.Equal(t, []string{"global-1", "global-2", "scoped-1", "scoped-2"}, log)
}

func TestChain_ScopedToOtherOperationSkipped(t *testing.T) {
	var log []string
	chain := parcel.NewChain().
		For(parcel.OpCreateLabel, recordingValidator("label-only", &log, true))

	err := chain.Run(context.Background(), parcel.OpCancelShipment, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestChain_FirstFailureAborts(t *testing.T) {
	var log []string
	chain := parcel.NewChain().
		Global(recordingValidator("global-1", &log, true)).
		Global(recordingValidator("global-2", &log, false))

	err := chain.Run(context.Background(), parcel.OpCreateShipment, nil, nil)

	var verr *parcel.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, parcel.OpCreateShipment, verr.Operation)
	assert.Equal(t, "global-1 rejected", verr.Reason)
	assert.Equal(t, []string{"global-1"}, log, "later validators never run")
}

func TestChain_WrapsPlainErrors(t *testing.T) {
	chain := parcel.NewChain().
		Global(parcel.ValidatorFunc(func(ctx context.Context, op string, shipment *parcel.Shipment, payload map[string]any) error {
			return errors.New("weight limit exceeded")
		}))

	err := chain.Run(context.Background(), parcel.OpCreateShipment, nil, nil)

	var verr *parcel.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "weight limit exceeded", verr.Reason)
}

func TestChain_NilChainPasses(t *testing.T) {
	var chain *parcel.Chain
	assert.NoError(t, chain.Run(context.Background(), parcel.OpCreateShipment, nil, nil))
}

func TestChain_ValidatorSeesShipmentState(t *testing.T) {
	var seen *parcel.Shipment
	chain := parcel.NewChain().
		Global(parcel.ValidatorFunc(func(ctx context.Context, op string, shipment *parcel.Shipment, payload map[string]any) error {
			seen = shipment
			return nil
		}))

	shipment := &parcel.Shipment{ID: "s-1", Status: parcel.StatusCreated}
	require.NoError(t, chain.Run(context.Background(), parcel.OpCreateLabel, shipment, nil))
	assert.Same(t, shipment, seen)
}
