package wsclient

import (
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
)

const (
	DefaultKeepAliveInterval = 60 * time.Second
	DefaultSetupTimeout      = 8 * time.Second
)

// Option configures a Client.
type Option func(*config)

type config struct {
	logger            Logger
	metrics           *Metrics
	transportFactory  TransportFactory
	dialer            *websocket.Dialer
	header            http.Header
	errorAdapters     ErrorAdapters
	keepAliveInterval time.Duration
	setupTimeout      time.Duration
}

func defaultConfig() config {
	return config{
		logger:            NewNoopLogger(),
		keepAliveInterval: DefaultKeepAliveInterval,
		setupTimeout:      DefaultSetupTimeout,
	}
}

// WithLogger sets the diagnostics sink.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records client activity into m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTransportFactory replaces the websocket transport, mostly useful in tests.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *config) {
		c.transportFactory = f
	}
}

// WithDialer sets the dialer used by the default websocket transport.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *config) {
		c.dialer = d
	}
}

// WithHeader sets extra HTTP headers sent on the websocket handshake.
func WithHeader(h http.Header) Option {
	return func(c *config) {
		c.header = h
	}
}

// WithErrorAdapters customizes how dial failures are classified.
func WithErrorAdapters(a ErrorAdapters) Option {
	return func(c *config) {
		c.errorAdapters = a
	}
}

// WithKeepAliveInterval sets the keepalive period. Non-positive values are ignored.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.keepAliveInterval = d
		}
	}
}

// WithSetupTimeout bounds how long a transport may take to open. Non-positive values are ignored.
func WithSetupTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.setupTimeout = d
		}
	}
}
