package wsclient

import (
	"sync"
	"time"
)

// keepAliveScheduler pings the live transport on a fixed period. It reads the connection
// status but never writes it: probe failures are only logged.
type keepAliveScheduler struct {
	manager  *connManager
	interval time.Duration
	logger   Logger
	metrics  *Metrics

	closeOnce sync.Once
	closeC    chan struct{}
	done      chan struct{}
}

func newKeepAliveScheduler(
	m *connManager,
	logger Logger,
	metrics *Metrics,
	interval time.Duration,
) *keepAliveScheduler {
	return &keepAliveScheduler{
		manager:  m,
		interval: interval,
		logger:   logger.WithField("component", "keepalive"),
		metrics:  metrics,
		closeC:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (k *keepAliveScheduler) start() {
	go k.run()
}

func (k *keepAliveScheduler) run() {
	defer close(k.done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.tick()
		case <-k.closeC:
			return
		}
	}
}

// tick issues one probe if connected and reports whether it did.
func (k *keepAliveScheduler) tick() bool {
	s, ok := k.manager.probeTarget()
	if !ok {
		return false
	}

	logger := k.logger.WithField("generation", s.gen)
	logger.Debugln("sending ping")

	go func() {
		if err := s.transport.Ping(s.ctx); err != nil {
			k.metrics.probed("error")
			logger.Warnf("server responded with error instead of pong: %s", err)
			return
		}
		k.metrics.probed("ok")
		logger.Debugln("received pong")
	}()

	return true
}

func (k *keepAliveScheduler) close() {
	k.closeOnce.Do(func() {
		close(k.closeC)
	})
}
