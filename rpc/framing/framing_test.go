package framing

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains all complete messages from the decoder
func collect(t *testing.T, d *Decoder) []Message {
	t.Helper()
	var out []Message
	for msg, err := range d.Messages() {
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func TestEncodeLayout(t *testing.T) {
	frame, err := Encode([]byte("ab"), []byte{})
	require.NoError(t, err)

	expected := []byte{0x12, 0, 0, 0, 2, 'a', 'b', 0, 0, 0, 0}
	assert.Equal(t, expected, frame)
	assert.Equal(t, len(expected), Size([][]byte{[]byte("ab"), {}}))
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode()
	assert.ErrorIs(t, err, ErrNoParts)

	parts := make([][]byte, MaxParts+1)
	_, err = Encode(parts...)
	assert.ErrorIs(t, err, ErrTooManyParts)

	parts = parts[:MaxParts]
	_, err = Encode(parts...)
	assert.NoError(t, err)
}

func TestDecodeSingleFrame(t *testing.T) {
	frame, err := Encode([]byte("orders.created"), []byte(`{"id":42}`), []byte{0, 1, 2})
	require.NoError(t, err)

	msg, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "orders.created", msg.Topic())
	assert.Equal(t, []byte(`{"id":42}`), msg[1])
	assert.Equal(t, []byte{0, 1, 2}, msg[2])

	_, err = Decode(frame[:len(frame)-1])
	assert.Error(t, err)

	_, err = Decode(append(frame, 0x10))
	assert.Error(t, err)
}

// TestDecoderByteByByte feeds several frames one byte at a time and checks that
// every message is produced exactly once, at the moment its last byte arrives
func TestDecoderByteByByte(t *testing.T) {
	var stream bytes.Buffer
	want := []Message{
		NewMessage("a"),
		NewMessage("topic", "payload"),
		NewMessage("", "empty topic"),
	}
	for _, m := range want {
		frame, err := Encode(m...)
		require.NoError(t, err)
		stream.Write(frame)
	}

	d := NewDecoder(0)
	var got []Message
	for _, b := range stream.Bytes() {
		d.Feed([]byte{b})
		got = append(got, collect(t, d)...)
	}

	assert.Equal(t, want, got)
	assert.Zero(t, d.Buffered())
}

func TestDecoderArbitraryChunks(t *testing.T) {
	var stream []byte
	var want []Message
	for i := 0; i < 50; i++ {
		m := Message{bytes.Repeat([]byte{byte(i)}, i*7), []byte("x")}
		frame, err := Encode(m...)
		require.NoError(t, err)
		stream = append(stream, frame...)
		want = append(want, m)
	}

	for _, chunkSize := range []int{1, 3, 5, 64, 1000, len(stream)} {
		d := NewDecoder(0)
		var got []Message
		for pos := 0; pos < len(stream); pos += chunkSize {
			end := min(pos+chunkSize, len(stream))
			d.Feed(stream[pos:end])
			got = append(got, collect(t, d)...)
		}
		assert.Equal(t, want, got, "chunk size %d", chunkSize)
	}
}

func TestDecoderPartsDoNotAliasBuffer(t *testing.T) {
	frame, err := Encode([]byte("hello"))
	require.NoError(t, err)

	d := NewDecoder(0)
	d.Feed(frame)
	msgs := collect(t, d)
	require.Len(t, msgs, 1)

	d.Feed(frame)
	msgs[0][0][0] = 'j'
	again := collect(t, d)
	require.Len(t, again, 1)
	assert.Equal(t, "hello", again[0].Topic())
}

func TestDecoderMalformed(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		d := NewDecoder(0)
		d.Feed([]byte{0x21, 0, 0, 0, 0})
		var errs int
		for _, err := range d.Messages() {
			assert.ErrorIs(t, err, ErrUnsupportedVersion)
			errs++
		}
		assert.Equal(t, 1, errs)

		// the error is sticky
		d.Feed([]byte{0x11, 0, 0, 0, 0})
		for _, err := range d.Messages() {
			assert.ErrorIs(t, err, ErrUnsupportedVersion)
		}
		assert.Error(t, d.Err())
	})

	t.Run("part too large", func(t *testing.T) {
		d := NewDecoder(8)
		header := []byte{0x11, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(header[1:], 9)
		d.Feed(header)
		for _, err := range d.Messages() {
			assert.ErrorIs(t, err, ErrPartTooLarge)
		}
	})

	t.Run("valid frame before malformed one", func(t *testing.T) {
		frame, err := Encode([]byte("ok"))
		require.NoError(t, err)

		d := NewDecoder(0)
		d.Feed(append(frame, 0xff))
		var msgs []Message
		var errs []error
		for msg, err := range d.Messages() {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, msg)
		}
		assert.Equal(t, []Message{NewMessage("ok")}, msgs)
		assert.Len(t, errs, 1)
	})
}

func TestDecoderStopEarly(t *testing.T) {
	d := NewDecoder(0)
	for _, s := range []string{"one", "two", "three"} {
		frame, err := Encode([]byte(s))
		require.NoError(t, err)
		d.Feed(frame)
	}

	for msg, err := range d.Messages() {
		require.NoError(t, err)
		assert.Equal(t, "one", msg.Topic())
		break
	}

	rest := collect(t, d)
	require.Len(t, rest, 2)
	assert.Equal(t, "two", rest[0].Topic())
	assert.Equal(t, "three", rest[1].Topic())
}
