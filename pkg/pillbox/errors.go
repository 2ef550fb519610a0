package pillbox

import (
	"errors"
	"fmt"
)

var (
	ErrNetworkUnreachable = errors.New("pillbox: device unreachable")
	ErrMalformedAddress   = errors.New("pillbox: malformed device address")
	ErrTimeout            = errors.New("pillbox: timeout waiting for device response")
	ErrUnexpectedStatus   = errors.New("pillbox: unexpected device response status")
	ErrUnknownCommand     = errors.New("pillbox: unknown command")
)

// StatusError is returned by the transport when the device answers with a
// status code other than 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pillbox: device answered HTTP %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// failureReason classifies a request error for diagnostics only.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, ErrMalformedAddress):
		return "address"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetworkUnreachable):
		return "network"
	default:
		return "aborted"
	}
}
