package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfStream is returned when the peer closed the stream cleanly,
	// with no partial frame pending.
	ErrEndOfStream = errors.New("end of stream")

	// ErrBrokenProtocol indicates malformed or inconsistent framing.
	ErrBrokenProtocol = errors.New("Protocol error")

	// ErrUnsupported indicates a well-formed request naming a command we
	// do not implement.
	ErrUnsupported = errors.New("unsupported command")

	// ErrEncoding indicates bytes that were required to be text were not.
	ErrEncoding = errors.New("encoding failure")

	// ErrIOFailure matches any *IOError with errors.Is.
	ErrIOFailure = errors.New("io failure")
)

// IOError wraps a failure of the underlying transport.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io failure: %v", e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

func brokenProtocol(reason string) error {
	return fmt.Errorf("%w: %s", ErrBrokenProtocol, reason)
}

func unsupported(verb string) error {
	return fmt.Errorf("%w '%s'", ErrUnsupported, verb)
}

func encodingFailure(reason string) error {
	return fmt.Errorf("%w: %s", ErrEncoding, reason)
}

// IsClientError returns true for errors caused by what the client sent,
// as opposed to transport failures or a clean close.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBrokenProtocol) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrEncoding)
}
