package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestBusSimple(t *testing.T) {
	bus := NewEventBus()
	m := "Hello, World!"
	x := ""

	// Register the handler.
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		e2 := e.(FooEvent)
		x = e2.msg
		return EHANDLE_OK
	})
	if bus.CountHandlers("foo") != 1 {
		t.Fail()
	}

	// Publish an event to the handler.
	ok, err := bus.Publish(FooEvent{
		msg:   m,
		async: false,
	})
	if !ok || err != nil {
		t.Fatalf("publish: %v %v", ok, err)
	}
	if x != m {
		t.Fail()
	}
}

func TestBusAsync(t *testing.T) {

	bus := NewEventBus()
	c := make(chan uint8, 2)

	// Register the handler.
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		c <- 42
		return EHANDLE_OK
	})

	// Publish an event to the handler.
	if err := bus.PublishNonblocking(FooEvent{msg: "asdf", async: true}); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-c:
		if r != 42 {
			t.Fatalf("got result: %d", r)
		}
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}

}

func TestBusCancel(t *testing.T) {
	bus := NewEventBus()
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		return EHANDLE_CANCEL
	})

	ok, _ := bus.Publish(FooEvent{msg: "x"})
	if ok {
		t.Fatal("expected cancelled event")
	}

	ok, _ = bus.Publish(FooEvent{msg: "x", uncancellable: true})
	if !ok {
		t.Fatal("uncancellable event got cancelled")
	}
}

func TestBusUnregister(t *testing.T) {
	bus := NewEventBus()
	n := 0
	id := bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		n++
		return EHANDLE_OK
	})

	bus.Publish(FooEvent{})
	if !bus.UnregisterHandler("foo", id) {
		t.Fatal("handler not found")
	}
	if bus.UnregisterHandler("foo", id) {
		t.Fatal("handler removed twice")
	}
	bus.Publish(FooEvent{})

	if n != 1 {
		t.Fatalf("handler ran %d times", n)
	}
}

func TestBusHandlerPanic(t *testing.T) {
	bus := NewEventBus()
	ran := false
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		panic("boom")
	})
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		ran = true
		return EHANDLE_OK
	})

	ok, err := bus.Publish(FooEvent{})
	if !ok || err != nil {
		t.Fatalf("publish: %v %v", ok, err)
	}
	if !ran {
		t.Fatal("second handler skipped after panic")
	}
}

func TestBadAsyncFlags(t *testing.T) {
	bus := NewEventBus()
	if _, err := bus.Publish(badEvent{}); err == nil {
		t.Fatal("expected sanity error")
	}
}

func TestBusSubscribe(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch := bus.Subscribe(ctx, 2, "foo", "bad")
	bus.Publish(FooEvent{msg: "one"})
	bus.Publish(FooEvent{msg: "two", uncancellable: true})

	for _, want := range []string{"one", "two"} {
		select {
		case e := <-ch:
			if e.(FooEvent).msg != want {
				t.Fatalf("got %q, want %q", e.(FooEvent).msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("never got %q", want)
		}
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	deadline := time.Now().Add(time.Second)
	for bus.CountHandlers("foo") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription handler left registered")
		}
		time.Sleep(time.Millisecond)
	}
	if ok, _ := bus.Publish(FooEvent{msg: "late"}); !ok {
		t.Fatal("publish after unsubscribe failed")
	}
}

type FooEvent struct {
	msg           string
	async         bool
	uncancellable bool
}

func (FooEvent) Name() string {
	return "foo"
}

func (e FooEvent) Flags() uint8 {
	if e.async {
		return EFLAG_ASYNC
	} else if e.uncancellable {
		return EFLAG_UNCANCELLABLE
	} else {
		return EFLAG_NORMAL
	}
}

type badEvent struct{}

func (badEvent) Name() string { return "bad" }
func (badEvent) Flags() uint8 { return EFLAG_ASYNC_UNSAFE }
