package wsclient

// receiveLoop reads frames for one session at a time. A chain keeps receiving while it
// gets text or binary frames and ends on the first error or unexpected frame; after that
// only a new connect starts another chain.
type receiveLoop struct {
	manager *connManager
	logger  Logger
	metrics *Metrics
}

func newReceiveLoop(m *connManager, logger Logger, metrics *Metrics) *receiveLoop {
	return &receiveLoop{
		manager: m,
		logger:  logger.WithField("component", "receive_loop"),
		metrics: metrics,
	}
}

// run blocks until the chain for s terminates.
func (r *receiveLoop) run(s *session) {
	logger := r.logger.WithField("generation", s.gen)

	for {
		m, err := s.transport.Receive(s.ctx)
		if err != nil {
			r.manager.handleReceiveFailure(s.gen, err)
			return
		}

		switch {
		case m.Type().IsText():
			logger.Debugf("received string %s", m.Data())
			if !r.manager.deliver(s.gen, string(m.Data())) {
				return
			}
		case m.Type().IsBinary():
			if !r.manager.isCurrent(s.gen) {
				return
			}
			r.metrics.frameReceived(BinaryMessage)
			logger.Debugf("received data: %d bytes", len(m.Data()))
		default:
			if !r.manager.isCurrent(s.gen) {
				return
			}
			// Binary frames keep the chain alive but anything else stops it without a
			// status change.
			r.metrics.frameReceived(UnknownMessage)
			logger.Errorf("failed, received %s frame: %s, expected string", m.Type(), ErrUnexpectedFrame)
			return
		}
	}
}
