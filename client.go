package wsclient

import (
	"sync"

	"github.com/google/uuid"
)

// Client keeps one websocket connection to the most recently requested endpoint and
// reports its status and inbound text frames to registered consumers.
//
// Connect and Send never block on the network and never return errors: failures are
// logged and, where they are authoritative, surface as a StatusDisconnected notification.
// Consumers are always called from a single goroutine owned by the client, one event
// at a time. There is no automatic reconnection.
type Client struct {
	id        string
	logger    Logger
	notifier  *notifier
	manager   *connManager
	keepAlive *keepAliveScheduler

	closeOnce sync.Once
}

// New creates a client and starts its keepalive scheduler. No connection is opened until
// Connect is called.
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	logger := cfg.logger.WithField("client_id", id)

	factory := cfg.transportFactory
	if factory == nil {
		factory = NewWebsocketTransportFactory(logger, cfg.dialer, cfg.header, cfg.errorAdapters)
	}

	n := newNotifier()
	m := newConnManager(logger, cfg.metrics, n, factory, cfg.setupTimeout)
	k := newKeepAliveScheduler(m, logger, cfg.metrics, cfg.keepAliveInterval)

	c := &Client{
		id:        id,
		logger:    logger,
		notifier:  n,
		manager:   m,
		keepAlive: k,
	}
	k.start()

	return c
}

// ID identifies the client in logs.
func (c *Client) ID() string {
	return c.id
}

// Connect drops the current connection, if any, and starts connecting to rawURL. An
// invalid endpoint leaves the client disconnected.
func (c *Client) Connect(rawURL string) {
	c.manager.connect(rawURL)
}

// Send queues text for the current connection. Without a connection the message is
// dropped; nothing is buffered for later connections.
func (c *Client) Send(text string) {
	c.manager.send(text)
}

// Status returns the last status applied to the client.
func (c *Client) Status() ConnectionStatus {
	return c.manager.currentStatus()
}

// TargetURL returns the endpoint given to the last Connect call.
func (c *Client) TargetURL() (string, bool) {
	return c.manager.target()
}

// Subscribe registers o for status and message notifications.
func (c *Client) Subscribe(o Observer) (unsubscribe func()) {
	return c.notifier.subscribe(o)
}

// SetStatusHandler replaces the status callback. A nil handler drops notifications.
func (c *Client) SetStatusHandler(h StatusHandler) {
	c.notifier.setStatusHandler(h)
}

// SetMessageHandler replaces the message callback. A nil handler drops messages.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.notifier.setMessageHandler(h)
}

// Close releases the client: the connection is closed, the keepalive stops and, once
// pending notifications have been delivered, consumers are detached. Connect and Send
// are ignored afterwards.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.logger.Debugln("releasing client")
		c.manager.close()
		c.keepAlive.close()
		c.notifier.close()
	})
}
