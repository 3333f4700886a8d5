package cohort

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is the root of every parameter validation failure.
var ErrInvalidParameter = errors.New("cohort: invalid parameter")

// ParameterError describes one violated parameter constraint.
type ParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("cohort: invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}
