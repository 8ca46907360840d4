package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/mit-dci/hodl/logging"
)

const (

	// EHANDLE_OK lets the event carry on.
	EHANDLE_OK = 0

	// EHANDLE_CANCEL asks for the event to be cancelled, if it can be.
	EHANDLE_CANCEL = 1
)

// EventHandleResult is what a handler says about the event it saw.
type EventHandleResult uint8

// HandlerID identifies a registration so it can be removed again.
type HandlerID uint64

type eventhandler struct {
	id         HandlerID
	handleFunc func(Event) EventHandleResult
	mutex      sync.Mutex // one call at a time per handler
}

// topic is everything registered under one event name.  Sync publishes of
// the same name are serialized on its mutex.
type topic struct {
	handlers []*eventhandler
	mutex    sync.Mutex
}

// An EventBus takes events and forwards them to event handlers matched by name.
type EventBus struct {
	topics map[string]*topic
	nextID HandlerID
	mutex  sync.Mutex
}

// NewEventBus creates a new event bus without any event handlers.
func NewEventBus() *EventBus {
	return &EventBus{topics: map[string]*topic{}}
}

// RegisterHandler registers an event handler function by name
func (b *EventBus) RegisterHandler(eventName string, hFunc func(Event) EventHandleResult) HandlerID {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	t, ok := b.topics[eventName]
	if !ok {
		t = &topic{}
		b.topics[eventName] = t
	}

	b.nextID++
	h := &eventhandler{id: b.nextID, handleFunc: hFunc}

	// New slice each time, publishes in flight hold on to the old one.
	hs := make([]*eventhandler, 0, len(t.handlers)+1)
	t.handlers = append(append(hs, t.handlers...), h)

	logging.Debugf("eventbus: registered handler %d for %s\n", h.id, eventName)
	return h.id
}

// UnregisterHandler drops a handler.  Returns false if it wasn't there.
func (b *EventBus) UnregisterHandler(eventName string, id HandlerID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	t, ok := b.topics[eventName]
	if !ok {
		return false
	}
	for i, h := range t.handlers {
		if h.id != id {
			continue
		}
		hs := make([]*eventhandler, 0, len(t.handlers)-1)
		hs = append(hs, t.handlers[:i]...)
		t.handlers = append(hs, t.handlers[i+1:]...)
		return true
	}
	return false
}

// CountHandlers is a convenience function.
func (b *EventBus) CountHandlers(name string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if t, ok := b.topics[name]; ok {
		return len(t.handlers)
	}
	return 0
}

func (b *EventBus) snapshot(name string) (*topic, []*eventhandler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	t, ok := b.topics[name]
	if !ok {
		return nil, nil
	}
	return t, t.handlers
}

// Publish sends an event to the relevant event handlers.  It returns false
// if a handler cancelled it.  Async events return right away with true.
func (b *EventBus) Publish(event Event) (bool, error) {
	name := event.Name()
	f := event.Flags()
	logging.Debugf("eventbus: published %s\n", name)

	if isAsync(f) && isCancellable(f) {
		return true, fmt.Errorf("event %s is async but cancellable, use EFLAG_ASYNC not EFLAG_ASYNC_UNSAFE", name)
	}

	t, hs := b.snapshot(name)
	if t == nil {
		return true, nil
	}

	if isAsync(f) {
		for _, h := range hs {
			go callEventHandler(h, event)
		}
		return true, nil
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	ok := true
	for _, h := range hs {
		res, err := callEventHandler(h, event)
		if err != nil {
			logging.Warnf("eventbus: handler for %s: %s\n", name, err.Error())
		}
		if res == EHANDLE_CANCEL && isCancellable(f) {
			ok = false
		}
	}
	return ok, nil
}

// PublishNonblocking sends async events off to the relevant handlers witout blocking.
func (b *EventBus) PublishNonblocking(event Event) error {
	if !isAsync(event.Flags()) {
		return fmt.Errorf("event %s not async but called on function that needs async", event.Name())
	}
	go b.Publish(event)
	return nil
}

// Subscribe hands back a channel that gets every event published under the
// given names until ctx is done, when the channel is closed.  A slow reader
// holds up sync publishers, so keep up or pick a big enough buffer.
func (b *EventBus) Subscribe(ctx context.Context, buffer int, names ...string) <-chan Event {
	ch := make(chan Event, buffer)
	done := ctx.Done()

	// mtx guards the close against handlers that got the handler list
	// before we unregistered.
	var mtx sync.Mutex
	closed := false

	ids := make([]HandlerID, len(names))
	for i, name := range names {
		ids[i] = b.RegisterHandler(name, func(e Event) EventHandleResult {
			mtx.Lock()
			defer mtx.Unlock()
			if closed {
				return EHANDLE_OK
			}
			select {
			case ch <- e:
			case <-done:
			}
			return EHANDLE_OK
		})
	}

	go func() {
		<-done
		for i, name := range names {
			b.UnregisterHandler(name, ids[i])
		}
		mtx.Lock()
		closed = true
		close(ch)
		mtx.Unlock()
	}()
	return ch
}

func callEventHandler(handler *eventhandler, event Event) (res EventHandleResult, err error) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			res = EHANDLE_OK
			err = fmt.Errorf("handler %d panicked: %v", handler.id, r)
		}
	}()

	return handler.handleFunc(event), nil
}
