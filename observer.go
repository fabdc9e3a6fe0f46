package wsclient

import "sync"

type EventType uint8

const (
	EventStatusChange EventType = iota + 1
	EventMessage
)

type (
	// Observer is notified about status transitions and inbound text frames.
	Observer interface {
		OnStatusChange(status ConnectionStatus)
		OnMessage(text string)
	}

	StatusHandler func(ConnectionStatus)

	MessageHandler func(string)

	// ObserverFuncs adapts a pair of functions to Observer. Nil fields are ignored.
	ObserverFuncs struct {
		Status  StatusHandler
		Message MessageHandler
	}
)

func (o ObserverFuncs) OnStatusChange(status ConnectionStatus) {
	if o.Status != nil {
		o.Status(status)
	}
}

func (o ObserverFuncs) OnMessage(text string) {
	if o.Message != nil {
		o.Message(text)
	}
}

// notifier fans client events out to consumers. Every notification runs on the executor
// goroutine, so consumers are never called concurrently and see events in the order they
// were published.
type notifier struct {
	executor *serialExecutor
	statuses *EventEmitterCallback[EventType, ConnectionStatus]
	messages *EventEmitterCallback[EventType, string]

	mu             sync.RWMutex
	statusHandler  StatusHandler
	messageHandler MessageHandler
}

func newNotifier() *notifier {
	return &notifier{
		executor: newSerialExecutor(),
		statuses: NewEventEmitter[EventType, ConnectionStatus](),
		messages: NewEventEmitter[EventType, string](),
	}
}

func (n *notifier) subscribe(o Observer) (unsubscribe func()) {
	offStatus := n.statuses.On(EventStatusChange, o.OnStatusChange)
	offMessage := n.messages.On(EventMessage, o.OnMessage)

	return func() {
		offStatus()
		offMessage()
	}
}

func (n *notifier) setStatusHandler(h StatusHandler) {
	n.mu.Lock()
	n.statusHandler = h
	n.mu.Unlock()
}

func (n *notifier) setMessageHandler(h MessageHandler) {
	n.mu.Lock()
	n.messageHandler = h
	n.mu.Unlock()
}

func (n *notifier) publishStatus(status ConnectionStatus) {
	n.executor.Submit(func() {
		n.mu.RLock()
		h := n.statusHandler
		n.mu.RUnlock()

		if h != nil {
			h(status)
		}
		n.statuses.Emit(EventStatusChange, status)
	})
}

func (n *notifier) publishMessage(text string) {
	n.executor.Submit(func() {
		n.mu.RLock()
		h := n.messageHandler
		n.mu.RUnlock()

		if h != nil {
			h(text)
		}
		n.messages.Emit(EventMessage, text)
	})
}

// close stops accepting notifications. Pending ones are still delivered.
func (n *notifier) close() {
	n.executor.Close()
	go func() {
		<-n.executor.Done()
		n.statuses.Close()
		n.messages.Close()
	}()
}
