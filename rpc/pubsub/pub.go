package pubsub

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/ValentinKolb/dMQ/rpc/queue"
	"github.com/ValentinKolb/dMQ/rpc/socket"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var Logger = logger.GetLogger("pubsub")

// ErrSubscriberSend is returned by SubSocket.Send
var ErrSubscriberSend = errors.New("subscribers cannot send messages")

// ISender is implemented by sockets that take outbound messages
type ISender interface {
	// Send publishes a message made of the given parts
	Send(parts ...[]byte) error

	// SendStrings publishes a message made of the given string parts
	SendStrings(parts ...string) error
}

// --------------------------------------------------------------------------
// Publisher
// --------------------------------------------------------------------------

// PubSocket broadcasts every message to all connected peers. Messages sent
// before the socket is ready are buffered in a queue bounded by the
// high-water-mark and flushed when the next connection is established.
type PubSocket struct {
	*socket.Socket

	queue       *queue.Queue
	maxPartSize uint32

	sendMu sync.Mutex // serializes Send and flushes so the message order is kept
	ready  bool
}

// NewPubSocket creates an unbound publisher. Unset values in config are replaced
// by the defaults, a zero high-water-mark queues without limit.
func NewPubSocket(config common.SocketConfig, options ...socket.Option) *PubSocket {
	config = config.WithDefaults()
	p := &PubSocket{maxPartSize: config.MaxPartSize}
	p.queue = queue.New(config.HighWaterMark,
		queue.WithDropCallback(p.onDrop),
		queue.WithFlushCallback(p.onFlush),
	)

	opts := make([]socket.Option, 0, len(options)+1)
	opts = append(opts, options...)
	opts = append(opts, socket.WithBehavior(&pubBehavior{pub: p}))
	p.Socket = socket.New(config, opts...)
	return p
}

// Send publishes a message. Before the socket is ready (and while older messages
// are still queued) the message is buffered. Afterwards it is encoded once and
// handed to every writable connection; connections that are not writable are
// skipped. The parts must not be modified after the call.
func (p *PubSocket) Send(parts ...[]byte) error {
	if err := p.validate(parts); err != nil {
		return err
	}
	msg := framing.Message(parts)

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.ready || p.queue.Len() > 0 {
		p.queue.Enqueue(msg)
		return nil
	}
	return p.broadcast(msg)
}

// SendStrings publishes a message made of string parts
func (p *PubSocket) SendStrings(parts ...string) error {
	return p.Send(framing.NewMessage(parts...)...)
}

// Queued returns the number of messages waiting for a connection
func (p *PubSocket) Queued() int {
	return p.queue.Len()
}

func (p *PubSocket) validate(parts [][]byte) error {
	if len(parts) == 0 {
		return framing.ErrNoParts
	}
	if len(parts) > framing.MaxParts {
		return fmt.Errorf("%w: got %d", framing.ErrTooManyParts, len(parts))
	}
	if p.maxPartSize > 0 {
		for i, part := range parts {
			if uint64(len(part)) > uint64(p.maxPartSize) {
				return fmt.Errorf("%w: part %d has %d bytes", framing.ErrPartTooLarge, i, len(part))
			}
		}
	}
	return nil
}

// broadcast encodes and sends msg, the caller must hold sendMu
func (p *PubSocket) broadcast(msg framing.Message) error {
	frame, err := framing.Encode(msg...)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	n := p.Broadcast(frame)
	Logger.Debugf("Published %q to %d peers", msg.Topic(), n)
	return nil
}

// flush sends all queued messages if the socket is ready. Unlike Send it waits
// for room in the send buffers, a backlog larger than the buffer is delivered
// as the writers drain it.
func (p *PubSocket) flush() {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.ready || p.queue.Len() == 0 {
		return
	}
	p.queue.Flush(func(msg framing.Message) {
		frame, err := framing.Encode(msg...)
		if err != nil {
			Logger.Warningf("Dropping queued message: %v", err)
			return
		}
		p.BroadcastWait(frame)
	})
}

func (p *PubSocket) onDrop(msg framing.Message) {
	p.Stats().MessagesDropped.Inc(1)
	p.Emit(socket.Event{Kind: socket.EventDrop, Message: msg})
}

func (p *PubSocket) onFlush(batch []framing.Message) {
	Logger.Infof("Flushed %d queued messages", len(batch))
	p.Stats().MessagesFlushed.Inc(int64(len(batch)))
	p.Emit(socket.Event{Kind: socket.EventFlush, Batch: batch})
}

// pubBehavior connects the publisher to the lifecycle of the core socket
type pubBehavior struct {
	pub *PubSocket
}

// HandleReady marks the publisher ready, it stays ready until closed
func (b *pubBehavior) HandleReady() {
	b.pub.sendMu.Lock()
	b.pub.ready = true
	b.pub.sendMu.Unlock()
}

func (b *pubBehavior) HandleConnect(*socket.Connection) {
	b.pub.flush()
}

func (b *pubBehavior) Accept(framing.Message) bool {
	return true
}
