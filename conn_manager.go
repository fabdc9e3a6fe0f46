package wsclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// session is one transport generation. Everything started on behalf of a transport (its
// receive loop, sends, probes) is bound to the session and stops counting once the
// session is no longer current.
type session struct {
	gen       uint64
	url       *url.URL
	transport Transport
	ctx       context.Context
	cancel    context.CancelFunc
	outbound  *serialExecutor
	watchdog  *time.Timer
	opened    bool
}

func (s *session) stop() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.cancel()
	s.outbound.Close()
}

// generationEvents forwards transport lifecycle events tagged with the generation they
// belong to.
type generationEvents struct {
	manager *connManager
	gen     uint64
}

func (e generationEvents) Opened()               { e.manager.handleOpened(e.gen) }
func (e generationEvents) Closed(code int)       { e.manager.handleClosed(e.gen, code) }
func (e generationEvents) Invalidated(err error) { e.manager.handleInvalidated(e.gen, err) }

// connManager owns the transport and the connection status. All mutations of either go
// through mu and every status write is published while mu is held, so consumers observe
// transitions in the order they were applied.
type connManager struct {
	logger       Logger
	metrics      *Metrics
	notifier     *notifier
	factory      TransportFactory
	setupTimeout time.Duration
	receiver     *receiveLoop

	mu         sync.Mutex
	targetURL  *string
	current    *session
	generation uint64
	status     ConnectionStatus
	closed     bool
}

func newConnManager(
	logger Logger,
	metrics *Metrics,
	n *notifier,
	factory TransportFactory,
	setupTimeout time.Duration,
) *connManager {
	m := &connManager{
		logger:       logger.WithField("component", "connection_manager"),
		metrics:      metrics,
		notifier:     n,
		factory:      factory,
		setupTimeout: setupTimeout,
	}
	m.receiver = newReceiveLoop(m, logger, metrics)
	return m
}

func (m *connManager) connect(rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warnf("ignoring connect to %s: %s", rawURL, ErrClientClosed)
		return
	}

	m.closeTransportLocked()
	m.targetURL = &rawURL
	m.openTransportLocked()
}

func (m *connManager) openTransportLocked() {
	raw := *m.targetURL

	u, err := parseEndpoint(raw)
	if err != nil {
		m.logger.Errorf("cannot open websocket: %s", err)
		m.current = nil
		m.setStatusLocked(StatusDisconnected)
		return
	}

	m.generation++
	gen := m.generation
	m.metrics.generation(gen)

	m.logger.Infof("opening websocket connection #%d to %s", gen, raw)

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		gen:      gen,
		url:      u,
		ctx:      ctx,
		cancel:   cancel,
		outbound: newSerialExecutor(),
	}
	s.transport = m.factory(u, m.setupTimeout, generationEvents{manager: m, gen: gen})
	s.watchdog = time.AfterFunc(m.setupTimeout, func() { m.handleSetupTimeout(gen) })
	m.current = s

	go m.receiver.run(s)
	go s.transport.Start(ctx)
}

// closeTransportLocked is the only path that does not notify an unchanged status.
func (m *connManager) closeTransportLocked() {
	if m.current != nil {
		m.logger.Debugf("closing websocket connection #%d", m.current.gen)
		m.dropLocked()
	}

	if m.status != StatusDisconnected {
		m.setStatusLocked(StatusDisconnected)
	}
}

// dropLocked closes and forgets the current transport without touching status.
func (m *connManager) dropLocked() {
	s := m.current
	if s == nil {
		return
	}
	m.current = nil
	s.stop()
	s.transport.Close(CloseGoingAway, "")
}

func (m *connManager) setStatusLocked(status ConnectionStatus) {
	m.status = status
	m.metrics.statusChanged(status)
	m.notifier.publishStatus(status)
}

// currentLocked returns the session for gen if it is still the live one.
func (m *connManager) currentLocked(gen uint64) (*session, bool) {
	if m.current == nil || m.current.gen != gen {
		return nil, false
	}
	return m.current, true
}

func (m *connManager) stale(gen uint64, what string) {
	m.metrics.staleEvent()
	m.logger.Debugf("discarding %s from stale connection #%d", what, gen)
}

func (m *connManager) send(text string) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		m.logger.Debugf("dropping message, no connection: %s", text)
		m.metrics.sent("dropped")
		return
	}

	m.logger.Debugf("sending: %s", text)

	accepted := s.outbound.Submit(func() {
		if err := s.transport.Send(s.ctx, text); err != nil {
			m.handleSendFailure(s.gen, err)
			return
		}
		m.metrics.sent("ok")
	})
	if !accepted {
		m.logger.Debugf("dropping message, connection #%d is closing: %s", s.gen, text)
		m.metrics.sent("dropped")
	}
}

func (m *connManager) currentStatus() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

func (m *connManager) target() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.targetURL == nil {
		return "", false
	}
	return *m.targetURL, true
}

func (m *connManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.closeTransportLocked()
}

// probeTarget returns the live session if the client is connected.
func (m *connManager) probeTarget() (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusConnected || m.current == nil {
		return nil, false
	}
	return m.current, true
}

func (m *connManager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.currentLocked(gen)
	return ok
}

// deliver publishes an inbound text frame if gen is still live.
func (m *connManager) deliver(gen uint64, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(gen); !ok {
		m.stale(gen, "text frame")
		return false
	}

	m.metrics.frameReceived(TextMessage)
	m.notifier.publishMessage(text)
	return true
}

func (m *connManager) handleOpened(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.currentLocked(gen)
	if !ok {
		m.stale(gen, "open event")
		return
	}

	m.logger.Infof("websocket #%d connected", gen)
	s.opened = true
	s.watchdog.Stop()
	m.setStatusLocked(StatusConnected)
}

func (m *connManager) handleClosed(gen uint64, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(gen); !ok {
		m.stale(gen, "close event")
		return
	}

	m.logger.Infof("websocket #%d closed with code: %d", gen, code)
	m.dropLocked()
	m.setStatusLocked(StatusDisconnected)
}

func (m *connManager) handleInvalidated(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(gen); !ok {
		m.stale(gen, "invalidation")
		return
	}

	m.logger.Errorf("websocket #%d invalidated: %s", gen, err)
	m.dropLocked()
	m.setStatusLocked(StatusDisconnected)
}

func (m *connManager) handleSetupTimeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.currentLocked(gen)
	if !ok || s.opened {
		return
	}

	m.logger.Errorf("websocket #%d: %s after %s", gen, ErrSetupTimeout, m.setupTimeout)
	m.dropLocked()
	m.setStatusLocked(StatusDisconnected)
}

// handleSendFailure forces Disconnected. The transport is also closed and released so a
// Disconnected client never holds a live transport.
func (m *connManager) handleSendFailure(gen uint64, err error) {
	m.metrics.sent("error")

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(gen); !ok {
		m.stale(gen, "send failure")
		return
	}

	m.logger.Errorf("error sending message on #%d: %s", gen, err)
	m.dropLocked()
	m.setStatusLocked(StatusDisconnected)
}

// handleReceiveFailure ends the receive chain for gen.
func (m *connManager) handleReceiveFailure(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(gen); !ok {
		m.stale(gen, "receive failure")
		return
	}

	m.logger.Errorf("websocket #%d error: %s", gen, err)
	m.dropLocked()
	m.setStatusLocked(StatusDisconnected)
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newEndpointError(raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, newEndpointError(raw, errors.Errorf("unsupported scheme %q", u.Scheme))
	}

	if u.Host == "" {
		return nil, newEndpointError(raw, errors.New("missing host"))
	}

	return u, nil
}
