package parcel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendparcel/pkg/parcel"
)

func TestApplyTransition_HappyWalk(t *testing.T) {
	fields := parcel.GuardFields{
		LabelURL:       "https://labels.example/1.pdf",
		TrackingNumber: "TRACK-1",
	}

	steps := []struct {
		transition string
		want       parcel.ShipmentStatus
	}{
		{parcel.TransitionConfirmCreated, parcel.StatusCreated},
		{parcel.TransitionConfirmLabel, parcel.StatusLabelReady},
		{parcel.TransitionMarkInTransit, parcel.StatusInTransit},
		{parcel.TransitionMarkOutForDelivery, parcel.StatusOutForDelivery},
		{parcel.TransitionMarkDelivered, parcel.StatusDelivered},
	}

	status := parcel.StatusNew
	for _, step := range steps {
		next, err := parcel.ApplyTransition(status, step.transition, fields)
		require.NoError(t, err, "transition %s from %s", step.transition, status)
		assert.Equal(t, step.want, next)
		status = next
	}
}

func TestApplyTransition_NoEdge(t *testing.T) {
	_, err := parcel.ApplyTransition(parcel.StatusNew, parcel.TransitionMarkDelivered, parcel.GuardFields{})
	assert.True(t, errors.Is(err, parcel.ErrInvalidTransition))
}

func TestApplyTransition_UnknownName(t *testing.T) {
	_, err := parcel.ApplyTransition(parcel.StatusNew, "teleport", parcel.GuardFields{})
	assert.True(t, errors.Is(err, parcel.ErrInvalidTransition))
}

func TestConfirmLabel_GuardRequiresLabelURL(t *testing.T) {
	_, err := parcel.ApplyTransition(parcel.StatusCreated, parcel.TransitionConfirmLabel, parcel.GuardFields{})
	assert.True(t, errors.Is(err, parcel.ErrGuardFailed))

	next, err := parcel.ApplyTransition(parcel.StatusCreated, parcel.TransitionConfirmLabel, parcel.GuardFields{
		LabelURL: "https://labels.example/1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusLabelReady, next)
}

func TestMarkInTransit_GuardRequiresTrackingNumber(t *testing.T) {
	_, err := parcel.ApplyTransition(parcel.StatusLabelReady, parcel.TransitionMarkInTransit, parcel.GuardFields{})
	assert.True(t, errors.Is(err, parcel.ErrGuardFailed))

	next, err := parcel.ApplyTransition(parcel.StatusLabelReady, parcel.TransitionMarkInTransit, parcel.GuardFields{
		TrackingNumber: "TRACK-1",
	})
	require.NoError(t, err)
	assert.Equal(t, parcel.StatusInTransit, next)
}

func TestCancel_OnlyBeforeTransit(t *testing.T) {
	for _, status := range []parcel.ShipmentStatus{
		parcel.StatusNew, parcel.StatusCreated, parcel.StatusLabelReady,
	} {
		next, err := parcel.ApplyTransition(status, parcel.TransitionCancel, parcel.GuardFields{})
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, parcel.StatusCancelled, next)
	}

	for _, status := range []parcel.ShipmentStatus{
		parcel.StatusInTransit, parcel.StatusOutForDelivery, parcel.StatusDelivered,
		parcel.StatusCancelled, parcel.StatusFailed, parcel.StatusReturned,
	} {
		_, err := parcel.ApplyTransition(status, parcel.TransitionCancel, parcel.GuardFields{})
		assert.True(t, errors.Is(err, parcel.ErrInvalidTransition), "cancel from %s", status)
	}
}

func TestFail_FromAnyNonTerminal(t *testing.T) {
	for _, status := range []parcel.ShipmentStatus{
		parcel.StatusNew, parcel.StatusCreated, parcel.StatusLabelReady,
		parcel.StatusInTransit, parcel.StatusOutForDelivery,
	} {
		next, err := parcel.ApplyTransition(status, parcel.TransitionFail, parcel.GuardFields{})
		require.NoError(t, err, "fail from %s", status)
		assert.Equal(t, parcel.StatusFailed, next)
	}

	for _, status := range []parcel.ShipmentStatus{
		parcel.StatusCancelled, parcel.StatusFailed, parcel.StatusDelivered, parcel.StatusReturned,
	} {
		_, err := parcel.ApplyTransition(status, parcel.TransitionFail, parcel.GuardFields{})
		assert.True(t, errors.Is(err, parcel.ErrInvalidTransition), "fail from %s", status)
	}
}

func TestTerminalStatuses_HaveNoOutgoingEdges(t *testing.T) {
	allTransitions := []string{
		parcel.TransitionConfirmCreated,
		parcel.TransitionConfirmLabel,
		parcel.TransitionMarkInTransit,
		parcel.TransitionMarkOutForDelivery,
		parcel.TransitionMarkDelivered,
		parcel.TransitionMarkReturned,
		parcel.TransitionCancel,
		parcel.TransitionFail,
	}
	fields := parcel.GuardFields{LabelURL: "x", TrackingNumber: "y"}

	for _, status := range []parcel.ShipmentStatus{
		parcel.StatusCancelled, parcel.StatusFailed, parcel.StatusReturned,
	} {
		assert.True(t, parcel.IsTerminal(status))
		for _, name := range allTransitions {
			assert.False(t, parcel.CanTransition(status, name, fields),
				"%s should have no outgoing edge %s", status, name)
		}
	}

	// DELIVERED is terminal: mark_returned from DELIVERED is the single
	// exception the table allows.
	assert.True(t, parcel.IsTerminal(parcel.StatusDelivered))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, parcel.CanTransition(parcel.StatusNew, parcel.TransitionConfirmCreated, parcel.GuardFields{}))
	assert.False(t, parcel.CanTransition(parcel.StatusCreated, parcel.TransitionConfirmLabel, parcel.GuardFields{}))
	assert.True(t, parcel.CanTransition(parcel.StatusCreated, parcel.TransitionConfirmLabel, parcel.GuardFields{LabelURL: "x"}))
}

func TestTransitionForStatus(t *testing.T) {
	name, ok := parcel.TransitionForStatus(parcel.StatusInTransit)
	require.True(t, ok)
	assert.Equal(t, parcel.TransitionMarkInTransit, name)

	_, ok = parcel.TransitionForStatus(parcel.StatusNew)
	assert.False(t, ok, "no transition leads back to NEW")
}
