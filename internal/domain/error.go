package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrNoPaymentConfig     = errors.New("no payment config version stored")
	ErrLockHeld            = errors.New("lock is held by another owner")

	// Persistence
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	// Payments
	ErrNoProviderAvailable = errors.New("no payment provider available")
	ErrMaintenanceMode     = errors.New("payments are in maintenance mode")
	ErrInvalidSignature    = errors.New("webhook signature verification failed")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
)
