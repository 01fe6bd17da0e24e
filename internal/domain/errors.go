package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrDuplicateRequest = errors.New("a pending request already exists for this listing")
	ErrAlreadySold      = errors.New("listing already sold")
	ErrSelfPurchase     = errors.New("cannot request to buy your own listing")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrConflict is returned by stores when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrTxConflict means a transaction kept failing serialization after all retries.
	ErrTxConflict = errors.New("transaction conflict, retries exhausted")
)
