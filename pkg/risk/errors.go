package risk

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches every *InsufficientDataError through errors.Is.
var ErrInsufficientData = errors.New("insufficient training data")

// InsufficientDataError is returned when the training set cannot separate classes.
type InsufficientDataError struct {
	Records  int
	Churned  int
	Retained int
}

func (e *InsufficientDataError) Error() string {
	if e.Records == 0 {
		return "insufficient training data: no records"
	}
	return fmt.Sprintf("insufficient training data: %d records with %d churned and %d retained, both classes required",
		e.Records, e.Churned, e.Retained)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
