package wsclient

import (
	"context"
	"net/url"
	"time"
)

// CloseGoingAway is the close code sent when the client drops a transport.
const CloseGoingAway = 1001

type (
	// Transport is a single full-duplex connection to a remote endpoint. A transport is
	// used for exactly one connection attempt and is never reopened.
	Transport interface {
		// Start opens the connection. It may block until the handshake completes or fails;
		// the outcome is reported through TransportEvents, not through a return value.
		Start(ctx context.Context)

		// Receive blocks until the next frame arrives. Calls made before the transport is
		// open wait for the handshake to finish.
		Receive(ctx context.Context) (Message, error)

		// Send writes a single text frame.
		Send(ctx context.Context, text string) error

		// Ping sends a liveness probe and waits for its pong.
		Ping(ctx context.Context) error

		// Close requests a graceful close with the given code. It must not wait for
		// TransportEvents to be delivered.
		Close(code int, reason string)
	}

	// TransportEvents receives the lifecycle notifications of a Transport. Events may be
	// delivered from any goroutine.
	TransportEvents interface {
		Opened()
		Closed(code int)
		Invalidated(err error)
	}

	// TransportFactory builds a transport for u that reports to events. setupTimeout bounds
	// the connection handshake.
	TransportFactory func(u *url.URL, setupTimeout time.Duration, events TransportEvents) Transport
)
