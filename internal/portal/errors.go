package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout is wrapped by every error caused by a request exceeding its deadline.
var ErrTimeout = errors.New("request timed out")

// InvalidCredentialFormatError is returned before any request is made when the
// credentials do not satisfy the portal's input constraints.
type InvalidCredentialFormatError struct {
	Field  string
	Reason string
}

func (e *InvalidCredentialFormatError) Error() string {
	return fmt.Sprintf("invalid credential format: %s: %s", e.Field, e.Reason)
}

// LoginFailedError is returned when the login handshake could not produce an
// authenticated session.
type LoginFailedError struct {
	Reason string
	Err    error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %s", e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("login failed: %s", e.Reason)
}

func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// ListingUnavailableError is returned when the loan listing page could not be
// retrieved or the portal served an error/timeout page in its place.
type ListingUnavailableError struct {
	Reason string
	Err    error
}

func (e *ListingUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("listing unavailable: %s: %s", e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("listing unavailable: %s", e.Reason)
}

func (e *ListingUnavailableError) Unwrap() error {
	return e.Err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyRequestError wraps err with ErrTimeout when it was caused by a deadline.
func classifyRequestError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
