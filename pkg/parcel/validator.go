package parcel

import (
	"context"
	"errors"
)

// Flow operation names, as seen by validators.
const (
	OpCreateShipment = "create_shipment"
	OpCreateLabel    = "create_label"
	OpHandleCallback = "handle_callback"
	OpPollStatus     = "poll_status"
	OpCancelShipment = "cancel_shipment"
)

// Validator is one pre-operation check. It receives the operation name,
// the shipment's current state (nil for create_shipment, which runs
// before any row exists), and call-specific payload. Returning an error
// aborts the operation before any provider call or state mutation.
type Validator interface {
	Validate(ctx context.Context, op string, shipment *Shipment, payload map[string]any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, op string, shipment *Shipment, payload map[string]any) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, op string, shipment *Shipment, payload map[string]any) error {
	return f(ctx, op, shipment, payload)
}

// Chain is an ordered set of validators, global and per-operation.
// For a given operation it runs global validators in registration
// order, then operation-scoped validators in registration order. The
// first failure aborts the whole chain.
type Chain struct {
	global []Validator
	scoped map[string][]Validator
}

// NewChain creates an empty validator chain.
func NewChain() *Chain {
	return &Chain{scoped: make(map[string][]Validator)}
}

// Global appends validators that apply to every operation.
func (c *Chain) Global(vs ...Validator) *Chain {
	c.global = append(c.global, vs...)
	return c
}

// For appends validators scoped to one operation name.
func (c *Chain) For(op string, vs ...Validator) *Chain {
	c.scoped[op] = append(c.scoped[op], vs...)
	return c
}

// Run executes the chain for op. Any validator failure is surfaced as a
// *ValidationError carrying the validator's reason.
func (c *Chain) Run(ctx context.Context, op string, shipment *Shipment, payload map[string]any) error {
	if c == nil {
		return nil
	}
	for _, v := range c.global {
		if err := c.run(ctx, v, op, shipment, payload); err != nil {
			return err
		}
	}
	for _, v := range c.scoped[op] {
		if err := c.run(ctx, v, op, shipment, payload); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) run(ctx context.Context, v Validator, op string, shipment *Shipment, payload map[string]any) error {
	err := v.Validate(ctx, op, shipment, payload)
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &ValidationError{Operation: op, Reason: err.Error()}
}
