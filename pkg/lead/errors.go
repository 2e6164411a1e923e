package lead

import (
	"errors"
	"fmt"
)

// ErrInvalidFeature matches every *InvalidFeatureError through errors.Is.
var ErrInvalidFeature = errors.New("invalid feature")

// InvalidFeatureError reports a scoring feature that is missing or out of domain.
type InvalidFeatureError struct {
	Feature string
	Value   float64
	Missing bool
	Reason  string
}

func (e *InvalidFeatureError) Error() string {
	if e.Missing {
		return fmt.Sprintf("invalid feature %s: value is missing", e.Feature)
	}
	return fmt.Sprintf("invalid feature %s: %v %s", e.Feature, e.Value, e.Reason)
}

func (e *InvalidFeatureError) Is(target error) bool {
	return target == ErrInvalidFeature
}
