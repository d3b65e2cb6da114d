package travel

import (
	"errors"
	"fmt"

	"travel_tracker/internal/repo"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateProfile   = errors.New("travel profile already exists for guest and event")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPermissionDenied   = errors.New("location permission denied")
	ErrVerificationFailed = errors.New("driver verification failed")
	ErrTransportFailure   = errors.New("push transport failure")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidFix         = errors.New("invalid location fix")
	ErrTrackingDisabled   = errors.New("gps tracking disabled for profile")
)

// storeErr translates repository errors at the store boundary.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repo.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicateProfile)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
