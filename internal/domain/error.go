package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidGateway       = errors.New("unknown or disabled payment gateway")
	ErrUnsupportedCurrency  = errors.New("currency is not configured for this gateway")
	ErrUnknownCorrelationID = errors.New("no payment matches the provider correlation id")
	ErrInvalidTransition    = errors.New("illegal payment status transition")
	ErrNotOwner             = errors.New("subscription belongs to a different user")
	ErrAlreadyCancelled     = errors.New("subscription is not active")
	ErrNotCancelled         = errors.New("subscription is not cancelled")
	ErrTrialNotAvailable    = errors.New("service does not offer a trial or one was already granted")
	ErrServiceInactive      = errors.New("service is not available for purchase")

	// Provider errors. Transient ones are retried by the orchestrator,
	// declined ones are terminal.
	ErrProviderTransient = errors.New("provider temporarily unavailable")
	ErrProviderDeclined  = errors.New("provider declined the payment")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
	ErrLockNotAcquired    = errors.New("could not acquire settlement lock")
)
