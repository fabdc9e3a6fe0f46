package wsclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

type (
	// ErrAdapter turns the outcome of a dial into the error reported by Invalidated.
	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WsTransport is a Transport backed by a fasthttp/websocket client connection.
	WsTransport struct {
		url          *url.URL
		header       http.Header
		dialer       websocket.Dialer
		setupTimeout time.Duration
		errAdapters  ErrorAdapters
		events       TransportEvents
		logger       Logger

		// ready is closed once the handshake has finished, successfully or not. conn and
		// dialErr are immutable afterwards.
		ready   chan struct{}
		conn    *websocket.Conn
		dialErr error

		writeMu sync.Mutex

		pongMu      sync.Mutex
		pongWaiters []chan struct{}

		closeC    chan struct{}
		closeOnce sync.Once
		eventSent atomic.Bool
	}
)

// NewWebsocketTransport returns a transport dialing u with a copy of dialer. A nil dialer
// means websocket.DefaultDialer.
func NewWebsocketTransport(
	logger Logger,
	dialer *websocket.Dialer,
	header http.Header,
	errorAdapters ErrorAdapters,
	u *url.URL,
	setupTimeout time.Duration,
	events TransportEvents,
) *WsTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	d := *dialer
	d.HandshakeTimeout = setupTimeout

	return &WsTransport{
		url:          u,
		header:       header.Clone(),
		dialer:       d,
		setupTimeout: setupTimeout,
		errAdapters:  errorAdapters,
		events:       events,
		logger:       logger.WithField("net", "ws_transport"),
		ready:        make(chan struct{}),
		closeC:       make(chan struct{}),
	}
}

// NewWebsocketTransportFactory returns the TransportFactory used by default by Client.
func NewWebsocketTransportFactory(
	logger Logger,
	dialer *websocket.Dialer,
	header http.Header,
	errorAdapters ErrorAdapters,
) TransportFactory {
	return func(u *url.URL, setupTimeout time.Duration, events TransportEvents) Transport {
		return NewWebsocketTransport(logger, dialer, header, errorAdapters, u, setupTimeout, events)
	}
}

// Start dials the endpoint and blocks until the handshake is done.
func (w *WsTransport) Start(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, w.setupTimeout)
	defer cancel()

	// Close before the handshake completes aborts the dial.
	go func() {
		select {
		case <-w.closeC:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, resp, err := w.dialer.DialContext(dialCtx, w.url.String(), w.header)
	if err != nil && w.isClosing() {
		w.dialErr = ErrConnectionClosed
		close(w.ready)
		return
	}
	if err = w.handleDialError(conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", w.url.String(), err)
		if conn != nil {
			_ = conn.Close()
		}
		w.dialErr = err
		close(w.ready)
		w.emit(func() { w.events.Invalidated(err) })
		return
	}

	select {
	case <-w.closeC:
		// closed while dialing, nobody is interested in this connection any more.
		_ = conn.Close()
		w.dialErr = ErrConnectionClosed
		close(w.ready)
		return
	default:
	}

	w.logger.Debugf("success opening connection to %s", w.url.String())

	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(w.setupTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		if e, ok := err.(net.Error); ok && e.Timeout() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(string) error {
		w.logger.Debugln("<= [PONG]")
		w.releasePongWaiters()
		return nil
	})

	w.conn = conn
	// Opened goes out before any frame can be read.
	w.events.Opened()
	close(w.ready)

	if w.isClosing() {
		_ = conn.Close()
	}
}

func (w *WsTransport) Receive(ctx context.Context) (Message, error) {
	if err := w.awaitReady(ctx); err != nil {
		return nil, err
	}

	messageType, bts, err := w.conn.ReadMessage()
	if err != nil {
		if w.isClosing() {
			return nil, ErrConnectionClosed
		}

		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			w.logger.Debugf("<= [CLOSE] %d %s", ce.Code, ce.Text)
			w.emit(func() { w.events.Closed(ce.Code) })
		}

		return nil, errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error())
	}

	switch messageType {
	case websocket.TextMessage:
		w.logger.Debugf("<= [TEXT] %s", string(bts))
		return NewTextMessage(string(bts)), nil
	case websocket.BinaryMessage:
		w.logger.Debugln("<= [BIN]")
		return NewBinaryMessage(bts), nil
	default:
		return NewMessage(UnknownMessage, bts), nil
	}
}

func (w *WsTransport) Send(ctx context.Context, text string) error {
	if err := w.awaitReady(ctx); err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.isClosing() {
		return ErrConnectionClosed
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(w.setupTimeout))

	w.logger.Debugf("=> [TEXT] %s", text)
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			return ErrConnectionClosed
		}
		return errors.Wrap(ErrConnectionClosed, err.Error())
	}
	return nil
}

// Ping writes a ping control frame and waits until a pong is read. Pongs are only observed
// while someone is reading from the transport.
func (w *WsTransport) Ping(ctx context.Context) error {
	if err := w.awaitReady(ctx); err != nil {
		return err
	}

	waiter := make(chan struct{})
	w.pongMu.Lock()
	w.pongWaiters = append(w.pongWaiters, waiter)
	w.pongMu.Unlock()

	w.logger.Debugln("=> [PING]")
	if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.setupTimeout)); err != nil {
		w.dropPongWaiter(waiter)
		return errors.Wrap(ErrConnectionClosed, "cannot send ping: "+err.Error())
	}

	select {
	case <-waiter:
		return nil
	case <-w.closeC:
		w.dropPongWaiter(waiter)
		return ErrConnectionClosed
	case <-ctx.Done():
		w.dropPongWaiter(waiter)
		return ctx.Err()
	}
}

// Close sends a close frame with code and releases the connection. Safe to call at any
// point, including before Start.
func (w *WsTransport) Close(code int, reason string) {
	w.closeOnce.Do(func() {
		close(w.closeC)
		// after closeC no lifecycle event is reported
		w.eventSent.Store(true)

		select {
		case <-w.ready:
		default:
			return
		}
		if w.conn == nil {
			return
		}

		w.logger.Infof("closing connection from our side with code %d", code)
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		_ = w.conn.Close()
	})
}

func (w *WsTransport) awaitReady(ctx context.Context) error {
	select {
	case <-w.ready:
	case <-w.closeC:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	if w.dialErr != nil {
		return w.dialErr
	}
	return nil
}

func (w *WsTransport) isClosing() bool {
	select {
	case <-w.closeC:
		return true
	default:
		return false
	}
}

// emit reports at most one terminal lifecycle event per transport. fn may call Close.
func (w *WsTransport) emit(fn func()) {
	if w.eventSent.CompareAndSwap(false, true) {
		fn()
	}
}

func (w *WsTransport) releasePongWaiters() {
	w.pongMu.Lock()
	waiters := w.pongWaiters
	w.pongWaiters = nil
	w.pongMu.Unlock()

	for _, waiter := range waiters {
		close(waiter)
	}
}

func (w *WsTransport) dropPongWaiter(target chan struct{}) {
	w.pongMu.Lock()
	defer w.pongMu.Unlock()

	for i, waiter := range w.pongWaiters {
		if waiter == target {
			w.pongWaiters = append(w.pongWaiters[:i], w.pongWaiters[i+1:]...)
			return
		}
	}
}

func (w *WsTransport) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}

	// 1. Check HTTP errors first
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, err := io.ReadAll(resp.Body)
			if err == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
