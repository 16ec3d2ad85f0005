package parcel

import (
	"fmt"
)

// Transition names accepted by the state machine.
const (
	TransitionConfirmCreated     = "confirm_created"
	TransitionConfirmLabel       = "confirm_label"
	TransitionMarkInTransit      = "mark_in_transit"
	TransitionMarkOutForDelivery = "mark_out_for_delivery"
	TransitionMarkDelivered      = "mark_delivered"
	TransitionMarkReturned       = "mark_returned"
	TransitionCancel             = "cancel"
	TransitionFail               = "fail"
)

// GuardFields is the shipment field snapshot transition guards evaluate.
type GuardFields struct {
	LabelURL       string
	TrackingNumber string
}

// FieldsOf extracts the guard-relevant fields from a shipment.
func FieldsOf(s *Shipment) GuardFields {
	return GuardFields{
		LabelURL:       s.LabelURL,
		TrackingNumber: s.TrackingNumber,
	}
}

type transition struct {
	name    string
	sources []ShipmentStatus
	target  ShipmentStatus
	guard   func(GuardFields) error // nil means unconditional
}

func requireLabelURL(f GuardFields) error {
	if f.LabelURL == "" {
		return fmt.Errorf("%w: %s requires label_url", ErrGuardFailed, TransitionConfirmLabel)
	}
	return nil
}

func requireTrackingNumber(f GuardFields) error {
	if f.TrackingNumber == "" {
		return fmt.Errorf("%w: %s requires tracking_number", ErrGuardFailed, TransitionMarkInTransit)
	}
	return nil
}

// transitions is the full edge table of the shipment state machine.
// CANCELLED, FAILED, and RETURNED have no outgoing edges; DELIVERED is
// terminal except for the mark_returned edge.
var transitions = []transition{
	{
		name:    TransitionConfirmCreated,
		sources: []ShipmentStatus{StatusNew},
		target:  StatusCreated,
	},
	{
		name:    TransitionConfirmLabel,
		sources: []ShipmentStatus{StatusCreated},
		target:  StatusLabelReady,
		guard:   requireLabelURL,
	},
	{
		name:    TransitionMarkInTransit,
		sources: []ShipmentStatus{StatusLabelReady},
		target:  StatusInTransit,
		guard:   requireTrackingNumber,
	},
	{
		name:    TransitionMarkOutForDelivery,
		sources: []ShipmentStatus{StatusInTransit},
		target:  StatusOutForDelivery,
	},
	{
		name:    TransitionMarkDelivered,
		sources: []ShipmentStatus{StatusInTransit, StatusOutForDelivery},
		target:  StatusDelivered,
	},
	{
		name:    TransitionMarkReturned,
		sources: []ShipmentStatus{StatusOutForDelivery, StatusDelivered},
		target:  StatusReturned,
	},
	{
		name:    TransitionCancel,
		sources: []ShipmentStatus{StatusNew, StatusCreated, StatusLabelReady},
		target:  StatusCancelled,
	},
	{
		name: TransitionFail,
		sources: []ShipmentStatus{
			StatusNew,
			StatusCreated,
			StatusLabelReady,
			StatusInTransit,
			StatusOutForDelivery,
		},
		target: StatusFailed,
	},
}

var terminalStatuses = map[ShipmentStatus]bool{
	StatusCancelled: true,
	StatusFailed:    true,
	StatusDelivered: true,
	StatusReturned:  true,
}

// IsTerminal reports whether status has no outgoing transition edges.
func IsTerminal(status ShipmentStatus) bool {
	return terminalStatuses[status]
}

func findEdge(status ShipmentStatus, name string) *transition {
	for i := range transitions {
		t := &transitions[i]
		if t.name != name {
			continue
		}
		for _, src := range t.sources {
			if src == status {
				return t
			}
		}
	}
	return nil
}

// CanTransition reports whether the named transition is allowed from
// status with the given shipment fields. It returns false when no edge
// matches or the edge's guard rejects the fields.
func CanTransition(status ShipmentStatus, name string, fields GuardFields) bool {
	edge := findEdge(status, name)
	if edge == nil {
		return false
	}
	if edge.guard != nil && edge.guard(fields) != nil {
		return false
	}
	return true
}

// ApplyTransition computes the status the named transition leads to
// from status. It returns ErrInvalidTransition when no edge matches and
// ErrGuardFailed when the edge's guard rejects the fields. It never
// mutates shared state; persisting the result is the caller's job.
func ApplyTransition(status ShipmentStatus, name string, fields GuardFields) (ShipmentStatus, error) {
	edge := findEdge(status, name)
	if edge == nil {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, name, status)
	}
	if edge.guard != nil {
		if err := edge.guard(fields); err != nil {
			return "", err
		}
	}
	return edge.target, nil
}

// statusTransitions maps a reported target status to the transition
// that reaches it. Used when a callback or polling response names a
// status rather than a transition.
var statusTransitions = map[ShipmentStatus]string{
	StatusCreated:        TransitionConfirmCreated,
	StatusLabelReady:     TransitionConfirmLabel,
	StatusInTransit:      TransitionMarkInTransit,
	StatusOutForDelivery: TransitionMarkOutForDelivery,
	StatusDelivered:      TransitionMarkDelivered,
	StatusReturned:       TransitionMarkReturned,
	StatusCancelled:      TransitionCancel,
	StatusFailed:         TransitionFail,
}

// TransitionForStatus returns the transition name whose target is the
// given status. ok is false for statuses no transition leads to (NEW).
func TransitionForStatus(target ShipmentStatus) (name string, ok bool) {
	name, ok = statusTransitions[target]
	return name, ok
}
