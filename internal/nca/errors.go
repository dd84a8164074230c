package nca

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports that too few usable observations were
// available for a calculation. At subject level it removes the subject from
// aggregate results; it never aborts a population run.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

// CalculationError reports a violated precondition of a derived quantity,
// such as a non-positive lambda_z or AUC_inf. Callers treat it as "parameter
// unavailable" rather than a subject failure.
type CalculationError struct {
	Reason string
}

func (e *CalculationError) Error() string {
	return "calculation error: " + e.Reason
}

func insufficientDataf(format string, args ...any) error {
	return &InsufficientDataError{Reason: fmt.Sprintf(format, args...)}
}

func calculationErrorf(format string, args ...any) error {
	return &CalculationError{Reason: fmt.Sprintf(format, args...)}
}

// IsInsufficientData reports whether err is (or wraps) an
// InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// IsCalculationError reports whether err is (or wraps) a CalculationError.
func IsCalculationError(err error) bool {
	var target *CalculationError
	return errors.As(err, &target)
}
