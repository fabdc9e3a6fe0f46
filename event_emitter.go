package wsclient

import (
	"sync"
)

type callback[T any] func(T)

type listener[V any] struct {
	id uint64
	fn callback[V]
}

// EventEmitterCallback maps events (of type K) to callbacks receiving V.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]listener[V]
	nextID    uint64
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any]() *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]listener[V]),
	}
}

// On registers a new listener for the given event and returns a function removing it.
func (e *EventEmitterCallback[K, V]) On(event K, fn func(V)) (off func()) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener[V]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(event, id) })
	}
}

func (e *EventEmitterCallback[K, V]) remove(event K, id uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()

	current := e.listeners[event]
	for i, l := range current {
		if l.id == id {
			next := make([]listener[V], 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			e.listeners[event] = next
			return
		}
	}
}

// Emit calls every listener registered for event synchronously, in registration order.
// Listeners are free to register or remove listeners while being called.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	listeners := e.listeners[event]
	e.lock.RUnlock()

	for _, l := range listeners {
		l.fn(data)
	}
}

// Len returns the number of listeners registered for event.
func (e *EventEmitterCallback[K, V]) Len(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.listeners[event])
}

// Close removes all listeners.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]listener[V])
}
