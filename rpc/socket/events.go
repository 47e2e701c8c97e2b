package socket

import (
	"github.com/ValentinKolb/dMQ/lib/telemetry"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/gammazero/deque"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Event Definitions
// --------------------------------------------------------------------------

// EventKind names a lifecycle signal emitted by a socket
type EventKind string

const (
	EventBind             EventKind = "bind"              // listener is bound and accepting
	EventConnect          EventKind = "connect"           // a connection was established (dialed or accepted)
	EventDisconnect       EventKind = "disconnect"        // an accepted peer went away
	EventMessage          EventKind = "message"           // a message was received and accepted
	EventClose            EventKind = "close"             // the socket finished closing
	EventSocketClose      EventKind = "socket close"      // the client connection closed
	EventReconnectAttempt EventKind = "reconnect attempt" // a reconnection is about to be dialed
	EventError            EventKind = "error"             // fatal transport error
	EventSocketError      EventKind = "socket error"      // any transport error
	EventIgnoredError     EventKind = "ignored error"     // transport error classified as ignorable
	EventDrop             EventKind = "drop"              // outbound message dropped at the high-water-mark
	EventFlush            EventKind = "flush"             // outbound queue flushed
)

// Event is a single signal. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Identity string // identity of the emitting socket

	ConnID uint64 // connection handle (0 if not connection related)
	Remote string // remote address of the connection
	Addr   string // bound or dialed address

	Message framing.Message   // EventMessage, EventDrop
	Batch   []framing.Message // EventFlush
	Err     error             // error events
	Delay   time.Duration     // EventReconnectAttempt: delay that preceded the attempt
}

// Handler receives events. Handlers run on the socket's dispatcher goroutine and
// may call back into the socket.
type Handler func(ev Event)

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// dispatcher delivers events to handlers in emission order from a single goroutine.
// Emitting never blocks: events are buffered in an unbounded mailbox.
type dispatcher struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  deque.Deque[Event]
	handlers map[EventKind][]Handler
	closed   bool
	done     chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		handlers: make(map[EventKind][]Handler),
		done:     make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) on(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

func (d *dispatcher) off(kind EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, kind)
}

// emit queues the event. It returns false if the dispatcher is closed.
func (d *dispatcher) emit(ev Event) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		Logger.Debugf("Dropping %q event of closed socket %s", ev.Kind, ev.Identity)
		return false
	}
	d.pending.PushBack(ev)
	d.mu.Unlock()
	d.cond.Signal()

	telemetry.CountEvent(string(ev.Kind))
	return true
}

// close stops accepting events. Already queued events are still delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

// run is the consumer loop
func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for d.pending.Len() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.pending.Len() == 0 {
			d.mu.Unlock()
			return
		}
		ev := d.pending.PopFront()
		handlers := append([]Handler(nil), d.handlers[ev.Kind]...)
		d.mu.Unlock()

		for _, h := range handlers {
			d.call(h, ev)
		}
	}
}

// call runs a handler, a panicking handler does not stop the dispatcher
func (d *dispatcher) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler for %q event panicked: %v", ev.Kind, r)
		}
	}()
	h(ev)
}
