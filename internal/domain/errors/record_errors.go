package errors

import (
	"fmt"
)

// Reason classifies why a raw record was rejected during ingestion
type Reason string

// Rejection reasons
const (
	ReasonMissingIdentifier Reason = "MISSING_IDENTIFIER"
	ReasonInvalidAmount     Reason = "INVALID_AMOUNT"
	ReasonInvalidTimestamp  Reason = "INVALID_TIMESTAMP"
	ReasonInvalidCurrency   Reason = "INVALID_CURRENCY"
	ReasonInvalidStatus     Reason = "INVALID_STATUS"
)

// RecordError describes a single rejected raw record. It is collected, never
// returned as a run failure.
type RecordError struct {
	Source string
	Index  int
	Reason Reason
	Field  string
	Cause  error
}

func (e *RecordError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s record #%d field %q - %v",
			e.Reason, e.Source, e.Index, e.Field, e.Cause)
	}
	return fmt.Sprintf("%s: %s record #%d field %q", e.Reason, e.Source, e.Index, e.Field)
}

func (e *RecordError) Unwrap() error {
	return e.Cause
}

// NewMissingIdentifierError creates a rejection for a record without customer id
func NewMissingIdentifierError(source string, index int, field string, cause error) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: ReasonMissingIdentifier, Field: field, Cause: cause}
}

// NewInvalidAmountError creates a rejection for a negative, non-finite or unparsable amount
func NewInvalidAmountError(source string, index int, field string, cause error) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: ReasonInvalidAmount, Field: field, Cause: cause}
}

// NewInvalidTimestampError creates a rejection for a missing or unparsable timestamp
func NewInvalidTimestampError(source string, index int, field string, cause error) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: ReasonInvalidTimestamp, Field: field, Cause: cause}
}

// NewInvalidCurrencyError creates a rejection for a missing or malformed currency code
func NewInvalidCurrencyError(source string, index int, field string, cause error) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: ReasonInvalidCurrency, Field: field, Cause: cause}
}

// NewInvalidStatusError creates a rejection for a status outside the accepted set
func NewInvalidStatusError(source string, index int, field string, cause error) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: ReasonInvalidStatus, Field: field, Cause: cause}
}
