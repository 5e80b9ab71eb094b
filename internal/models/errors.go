package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyConfirmed  = errors.New("reservation already confirmed")
	ErrReasonRequired    = errors.New("cancellation reason is required")
)

func invalidTransition(from, to any) error {
	return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
}
