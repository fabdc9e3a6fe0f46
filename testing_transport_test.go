package wsclient

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	eventually = 2 * time.Second
	pollEvery  = 5 * time.Millisecond
	quietFor   = 50 * time.Millisecond
)

type frameResult struct {
	msg Message
	err error
}

// fakeTransport is a scriptable Transport. Tests drive its lifecycle through events and
// feed frames through push/fail.
type fakeTransport struct {
	index  int
	url    *url.URL
	events TransportEvents
	log    *opLog
	frames chan frameResult

	mu         sync.Mutex
	started    bool
	receives   int
	sent       []string
	sendErr    error
	pings      int
	pingErr    error
	closes     int
	closeCodes []int
}

func (f *fakeTransport) Start(context.Context) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeTransport) Receive(ctx context.Context) (Message, error) {
	f.mu.Lock()
	f.receives++
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-f.frames:
		return r.msg, r.err
	}
}

func (f *fakeTransport) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pings++
	return f.pingErr
}

func (f *fakeTransport) Close(code int, _ string) {
	f.mu.Lock()
	f.closes++
	f.closeCodes = append(f.closeCodes, code)
	f.mu.Unlock()

	f.log.add(fmt.Sprintf("close:%d", f.index))
}

func (f *fakeTransport) push(m Message) {
	f.frames <- frameResult{msg: m}
}

func (f *fakeTransport) pushText(text string) {
	f.push(NewTextMessage(text))
}

func (f *fakeTransport) fail(err error) {
	f.frames <- frameResult{err: err}
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) setPingErr(err error) {
	f.mu.Lock()
	f.pingErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) receiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receives
}

func (f *fakeTransport) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTransport) isStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// opLog records transport creation and close order across generations.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

func (l *opLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type fakeTransportFactory struct {
	log opLog

	mu         sync.Mutex
	transports []*fakeTransport
	timeouts   []time.Duration
}

func (f *fakeTransportFactory) Factory(u *url.URL, setupTimeout time.Duration, events TransportEvents) Transport {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTransport{
		index:  len(f.transports),
		url:    u,
		events: events,
		log:    &f.log,
		frames: make(chan frameResult, 64),
	}
	f.transports = append(f.transports, t)
	f.timeouts = append(f.timeouts, setupTimeout)
	f.log.add(fmt.Sprintf("create:%d", t.index))
	return t
}

func (f *fakeTransportFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *fakeTransportFactory) get(t *testing.T, i int) *fakeTransport {
	t.Helper()
	require.Eventually(t, func() bool { return f.count() > i }, eventually, pollEvery)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[i]
}

// recorder is an Observer collecting notifications as "status:<s>" and "message:<text>".
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnStatusChange(s ConnectionStatus) {
	r.mu.Lock()
	r.events = append(r.events, "status:"+s.String())
	r.mu.Unlock()
}

func (r *recorder) OnMessage(text string) {
	r.mu.Lock()
	r.events = append(r.events, "message:"+text)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.all() {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, expected ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := r.all()
		if len(got) != len(expected) {
			return false
		}
		for i := range got {
			if got[i] != expected[i] {
				return false
			}
		}
		return true
	}, eventually, pollEvery, "expected events %v, got %v", expected, r.all())
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	client   *Client
	factory  *fakeTransportFactory
	recorder *recorder
	logs     *syncBuffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		factory:  &fakeTransportFactory{},
		recorder: &recorder{},
		logs:     &syncBuffer{},
	}

	base := []Option{
		WithTransportFactory(f.factory.Factory),
		WithLogger(NewWriterLogger(f.logs)),
		WithKeepAliveInterval(time.Hour),
	}
	f.client = New(append(base, opts...)...)
	f.client.Subscribe(f.recorder)
	t.Cleanup(f.client.Close)

	return f
}

// connected connects to rawURL and confirms the open.
func (f *fixture) connected(t *testing.T, rawURL string) *fakeTransport {
	t.Helper()

	before := f.factory.count()
	f.client.Connect(rawURL)
	tr := f.factory.get(t, before)
	tr.events.Opened()
	require.Eventually(t, func() bool { return f.client.Status().IsConnected() }, eventually, pollEvery)
	return tr
}
