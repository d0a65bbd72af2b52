package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNoOptions = errors.New("options missing")

	// ErrUnsupported is returned for operations a transport cannot perform,
	// such as writing to an HTTPS source.
	ErrUnsupported = errors.New("operation not supported by transport")

	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// ConnectError is a failure to establish a session.
type ConnectError struct {
	Kind Kind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s connect %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// StatusError is an unexpected response from an HTTP based transport.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d for %s", e.StatusCode, e.URL)
}

func unsupported(kind Kind, op, name string) error {
	return fmt.Errorf("%s: %s %s: %w", kind, op, name, ErrUnsupported)
}
