package parcel

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the registry, capability checks, state
// machine, and callback verification.
var (
	// ErrProviderNotFound indicates the requested provider slug is not registered.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrDuplicateProvider indicates a slug collision during registration.
	ErrDuplicateProvider = errors.New("duplicate provider slug")

	// ErrUnsupportedCapability indicates the provider does not declare the
	// capability the operation requires.
	ErrUnsupportedCapability = errors.New("capability not supported by provider")

	// ErrInvalidTransition indicates no transition edge matches the
	// shipment's current status.
	ErrInvalidTransition = errors.New("invalid shipment transition")

	// ErrGuardFailed indicates a matching edge exists but its guard
	// rejected the shipment's current field values.
	ErrGuardFailed = errors.New("transition guard failed")

	// ErrInvalidCallback indicates webhook callback authentication failed.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrShipmentNotFound indicates the repository has no shipment with
	// the given identifier.
	ErrShipmentNotFound = errors.New("shipment not found")
)

// ProviderError wraps a provider-level failure raised during an
// operation that already attempted a carrier side effect.
type ProviderError struct {
	Provider string
	Op       string
	Cause    error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error during %s: %v", e.Provider, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ValidationError is raised by the validator chain before any provider
// call or state mutation occurs.
type ValidationError struct {
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Operation, e.Reason)
}
