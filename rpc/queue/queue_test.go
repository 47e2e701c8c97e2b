package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(i int) framing.Message {
	return framing.NewMessage(fmt.Sprintf("m%d", i))
}

// TestHighWaterMark verifies that the buffer never exceeds the high-water-mark
// and that each excess enqueue produces exactly one drop notification
func TestHighWaterMark(t *testing.T) {
	for _, hwm := range []int{0, 1, 5, 32} {
		var dropped []framing.Message
		q := New(hwm, WithDropCallback(func(m framing.Message) {
			dropped = append(dropped, m)
		}))

		total := hwm + 10
		for i := 0; i < total; i++ {
			buffered := q.Enqueue(msg(i))
			assert.Equal(t, i < hwm, buffered, "hwm %d message %d", hwm, i)
			assert.LessOrEqual(t, q.Len(), hwm)
		}

		assert.Equal(t, hwm, q.Len())
		require.Len(t, dropped, total-hwm)
		assert.Equal(t, msg(hwm), dropped[0])
	}
}

func TestUnboundedNeverDrops(t *testing.T) {
	drops := 0
	q := New(Unbounded, WithDropCallback(func(framing.Message) { drops++ }))
	for i := 0; i < 10000; i++ {
		require.True(t, q.Enqueue(msg(i)))
	}
	assert.Equal(t, 10000, q.Len())
	assert.Zero(t, drops)
	assert.Equal(t, Unbounded, q.HighWaterMark())
}

func TestFlushPreservesOrder(t *testing.T) {
	var notified []framing.Message
	q := New(Unbounded, WithFlushCallback(func(batch []framing.Message) {
		notified = batch
	}))
	for i := 0; i < 100; i++ {
		q.Enqueue(msg(i))
	}

	var sent []framing.Message
	batch := q.Flush(func(m framing.Message) { sent = append(sent, m) })

	require.Len(t, sent, 100)
	for i, m := range sent {
		assert.Equal(t, msg(i), m)
	}
	assert.Equal(t, sent, batch)
	assert.Equal(t, sent, notified)
	assert.Zero(t, q.Len())
}

// TestEnqueueDuringFlush checks that messages enqueued while a batch is being
// sent are excluded from that batch and kept for the next flush
func TestEnqueueDuringFlush(t *testing.T) {
	q := New(Unbounded)
	for i := 0; i < 3; i++ {
		q.Enqueue(msg(i))
	}

	var first []framing.Message
	q.Flush(func(m framing.Message) {
		first = append(first, m)
		q.Enqueue(framing.NewMessage("late-" + m.Topic()))
	})

	assert.Equal(t, []framing.Message{msg(0), msg(1), msg(2)}, first)
	assert.Equal(t, 3, q.Len())

	var second []framing.Message
	q.Flush(func(m framing.Message) { second = append(second, m) })
	assert.Equal(t, []framing.Message{
		framing.NewMessage("late-m0"),
		framing.NewMessage("late-m1"),
		framing.NewMessage("late-m2"),
	}, second)
}

func TestFlushEmpty(t *testing.T) {
	flushes := 0
	q := New(Unbounded, WithFlushCallback(func(batch []framing.Message) {
		flushes++
		assert.Empty(t, batch)
	}))
	q.Flush(func(framing.Message) { t.Fatal("nothing to send") })
	assert.Equal(t, 1, flushes)
}

// TestConcurrentEnqueueAndFlush runs producers against repeated flushes and
// checks that no message is lost or duplicated and per-producer order holds
func TestConcurrentEnqueueAndFlush(t *testing.T) {
	q := New(Unbounded)

	const producers = 8
	const perProducer = 2000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(framing.Message{[]byte{byte(p)}, []byte(fmt.Sprint(i))})
			}
		}(p)
	}

	var received []framing.Message
	record := func(m framing.Message) { received = append(received, m) }

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			q.Flush(record)
		}
	}
	q.Flush(record)

	require.Len(t, received, producers*perProducer)
	next := make([]int, producers)
	for _, m := range received {
		p := int(m[0][0])
		assert.Equal(t, fmt.Sprint(next[p]), string(m[1]))
		next[p]++
	}
}
