package eventbus

// An Event is something the node wants other parts of itself to hear about,
// like an invoice changing state or a peer going away.  Handlers are picked
// by Name.
type Event interface {
	Name() string
	Flags() uint8
}

const (

	// EFLAG_NORMAL events run their handlers in order on the publishing
	// goroutine, and any handler can cancel them.
	EFLAG_NORMAL = 0

	// EFLAG_UNCANCELLABLE events ignore EHANDLE_CANCEL.  Use it for things
	// that already happened, like a committed state change.
	EFLAG_UNCANCELLABLE = 1 << 0

	// EFLAG_ASYNC_UNSAFE is the bare async bit.  Use EFLAG_ASYNC.
	EFLAG_ASYNC_UNSAFE = 1 << 1

	// EFLAG_ASYNC events get one goroutine per handler and can't be
	// cancelled, since nobody waits for the answer.
	EFLAG_ASYNC = EFLAG_ASYNC_UNSAFE | EFLAG_UNCANCELLABLE
)

func isAsync(f uint8) bool {
	return f&EFLAG_ASYNC_UNSAFE != 0
}

func isCancellable(f uint8) bool {
	return f&EFLAG_UNCANCELLABLE == 0
}
