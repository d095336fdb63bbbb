package domain

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable wraps read and write failures of a result store.
var ErrStoreUnavailable = errors.New("result store unavailable")

// ValidationError identifies the record and invariant a raw series violated.
// Index is -1 when the violation concerns the series as a whole.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return "invalid weather series: " + e.Reason
	case e.Field == "":
		return fmt.Sprintf("invalid weather series: observation %d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("invalid weather series: observation %d: %s: %s", e.Index, e.Field, e.Reason)
	}
}

// IntegrityError means stored content disagrees with its fingerprint, or a put
// tried to replace an entry with different content.
type IntegrityError struct {
	Fingerprint Fingerprint
	Reason      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cache integrity violation for %s: %s", e.Fingerprint.Short(), e.Reason)
}

// NumericDomainError reports a non-finite or out-of-range value produced inside
// the risk model. It indicates a defect in the model constants, not bad input.
type NumericDomainError struct {
	Index    int
	Quantity string
	Value    float64
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("risk model produced invalid %s %v at observation %d", e.Quantity, e.Value, e.Index)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIntegrity reports whether err is or wraps an *IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
