package domain

import "fmt"

// Error types for consistent error handling across the service.
// The handler layer maps each type to a specific HTTP status so that
// actionable failures (insufficient funds, unknown recipient) are never
// collapsed into a generic message.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrRecipientNotFound indicates the transfer or deal counterparty did
// not resolve to exactly one account.
type ErrRecipientNotFound struct {
	Identifier string
}

func (e *ErrRecipientNotFound) Error() string {
	return fmt.Sprintf("recipient not found: %s", e.Identifier)
}

// ErrInsufficientFunds indicates not enough spendable balance.
type ErrInsufficientFunds struct {
	Available float64
	Required  float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%.2f required=%.2f", e.Available, e.Required)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials, token or transaction PIN.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the acting user is not a party allowed to
// perform the operation (e.g. releasing someone else's deal).
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrConflictRetryExhausted indicates the store kept detecting write
// conflicts until the retry budget ran out. Rare; the caller may retry.
type ErrConflictRetryExhausted struct {
	Operation string
	Attempts  int
}

func (e *ErrConflictRetryExhausted) Error() string {
	return fmt.Sprintf("write conflict retries exhausted for %s after %d attempts", e.Operation, e.Attempts)
}

// ErrExternalService indicates a failure talking to the hosted store or
// another external collaborator.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
