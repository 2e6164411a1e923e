package power

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter matches every *InvalidParameterError through errors.Is.
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidParameterError reports a power-analysis input outside its domain.
type InvalidParameterError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %v %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}
