package wsclient

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidEndpoint  = errors.New("invalid websocket endpoint")
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrSetupTimeout     = errors.New("connection setup timed out")
	ErrUnexpectedFrame  = errors.New("unexpected frame format")
	ErrClientClosed     = errors.New("client has been closed")
)

// EndpointError is returned when a connection target cannot be used as a websocket endpoint.
type EndpointError struct {
	URL string
	err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrInvalidEndpoint, e.URL, e.err)
}

func (e *EndpointError) Unwrap() error { return e.err }

func (e *EndpointError) Is(target error) bool { return target == ErrInvalidEndpoint }

func newEndpointError(raw string, err error) *EndpointError {
	if err == nil {
		return nil
	}
	return &EndpointError{URL: raw, err: err}
}
