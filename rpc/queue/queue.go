package queue

import (
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/gammazero/deque"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var Logger = logger.GetLogger("queue")

// Unbounded disables dropping when passed as high-water-mark
const Unbounded = -1

// DropCallback is called with every message rejected because the queue reached its high-water-mark
type DropCallback func(msg framing.Message)

// FlushCallback is called with the batch of messages sent by a flush, in send order
type FlushCallback func(batch []framing.Message)

// Option configures a queue using the functional options pattern
type Option func(*Queue)

// WithDropCallback sets the drop notification
func WithDropCallback(cb DropCallback) Option {
	return func(q *Queue) {
		q.onDrop = cb
	}
}

// WithFlushCallback sets the flush notification
func WithFlushCallback(cb FlushCallback) Option {
	return func(q *Queue) {
		q.onFlush = cb
	}
}

// Queue buffers outbound messages until the owning socket is ready to send them.
// All methods are safe for concurrent use.
type Queue struct {
	mu            sync.Mutex
	buf           *deque.Deque[framing.Message]
	highWaterMark int

	onDrop  DropCallback
	onFlush FlushCallback
}

// New creates a queue holding at most highWaterMark messages (negative = unbounded)
func New(highWaterMark int, options ...Option) *Queue {
	q := &Queue{
		buf:           new(deque.Deque[framing.Message]),
		highWaterMark: highWaterMark,
	}
	for _, opt := range options {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Enqueue appends msg, or drops it if the queue already holds highWaterMark messages.
// It reports whether the message was buffered.
func (q *Queue) Enqueue(msg framing.Message) bool {
	q.mu.Lock()
	if q.highWaterMark >= 0 && q.buf.Len() >= q.highWaterMark {
		q.mu.Unlock()
		Logger.Debugf("Dropping message, queue is at high-water-mark %d", q.highWaterMark)
		if q.onDrop != nil {
			q.onDrop(msg)
		}
		return false
	}
	q.buf.PushBack(msg)
	q.mu.Unlock()
	return true
}

// Flush swaps the buffer with an empty one and passes every buffered message to
// send in enqueue order. Messages enqueued while the batch is being sent are not
// part of it, they stay buffered for the next flush. It returns the flushed batch.
func (q *Queue) Flush(send func(msg framing.Message)) []framing.Message {
	q.mu.Lock()
	prev := q.buf
	q.buf = new(deque.Deque[framing.Message])
	q.mu.Unlock()

	batch := make([]framing.Message, 0, prev.Len())
	for prev.Len() > 0 {
		batch = append(batch, prev.PopFront())
	}

	Logger.Debugf("Flushing %d messages", len(batch))
	for _, msg := range batch {
		send(msg)
	}

	if q.onFlush != nil {
		q.onFlush(batch)
	}
	return batch
}

// Len returns the number of buffered messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// HighWaterMark returns the configured capacity (negative = unbounded)
func (q *Queue) HighWaterMark() int {
	return q.highWaterMark
}
