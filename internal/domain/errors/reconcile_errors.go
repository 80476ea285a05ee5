package errors

import "errors"

var (
	// ErrEmptyRateTable indicates that the run was given no conversion rates
	ErrEmptyRateTable = errors.New("rate table is empty")

	// ErrInvalidRate indicates a non-positive conversion rate
	ErrInvalidRate = errors.New("rate table contains a non-positive rate")

	// ErrMissingBaseCurrency indicates that the rate table has no base currency
	ErrMissingBaseCurrency = errors.New("rate table has no base currency")

	// ErrUnreadableSource indicates that a source list could not be parsed at all
	ErrUnreadableSource = errors.New("source could not be read")

	// ErrInvalidMode indicates that no valid reconcile mode was configured
	ErrInvalidMode = errors.New("reconcile mode must be strict or lenient")

	// ErrNegativeAmount indicates an attempt to normalize a negative amount
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrSnapshotNotFound indicates that no snapshot has been published yet
	ErrSnapshotNotFound = errors.New("no reconciliation snapshot found")

	// ErrProfileNotFound indicates that the snapshot has no profile for the id
	ErrProfileNotFound = errors.New("customer profile not found")

	// ErrCohortNotFound indicates that the snapshot has no cohort by that name
	ErrCohortNotFound = errors.New("cohort not found")

	// ErrRunInProgress indicates that another run holds the service
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
)
