package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
)

// Frame layout:
// - 1 byte:  version (high nibble) | number of parts (low nibble)
// - per part:
//   - 4 bytes: part length (uint32, big endian)
//   - N bytes: part payload
const (
	Version    = 1
	MaxParts   = 15
	metaSize   = 1
	lenSize    = 4
	DefaultMax = 64 * 1024 * 1024
)

var (
	ErrNoParts            = errors.New("message has no parts")
	ErrTooManyParts       = fmt.Errorf("message has more than %d parts", MaxParts)
	ErrUnsupportedVersion = errors.New("unsupported frame version")
	ErrPartTooLarge       = errors.New("frame part exceeds maximum size")
)

// --------------------------------------------------------------------------
// Message
// --------------------------------------------------------------------------

// Message is an ordered sequence of binary parts
type Message [][]byte

// NewMessage creates a message from string parts
func NewMessage(parts ...string) Message {
	msg := make(Message, len(parts))
	for i, p := range parts {
		msg[i] = []byte(p)
	}
	return msg
}

// Topic returns the first part as a string, or an empty string if the message has no parts
func (m Message) Topic() string {
	if len(m) == 0 {
		return ""
	}
	return string(m[0])
}

// Strings returns all parts as strings
func (m Message) Strings() []string {
	out := make([]string, len(m))
	for i, p := range m {
		out[i] = string(p)
	}
	return out
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Size returns the number of bytes Encode will produce for the given parts
func Size(parts [][]byte) int {
	n := metaSize
	for _, p := range parts {
		n += lenSize + len(p)
	}
	return n
}

// Encode encodes the parts into a single self-delimiting frame
func Encode(parts ...[]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}
	if len(parts) > MaxParts {
		return nil, ErrTooManyParts
	}

	frame := make([]byte, Size(parts))
	frame[0] = byte(Version<<4 | len(parts))

	pos := metaSize
	for _, p := range parts {
		binary.BigEndian.PutUint32(frame[pos:pos+lenSize], uint32(len(p)))
		pos += lenSize
		copy(frame[pos:pos+len(p)], p)
		pos += len(p)
	}

	return frame, nil
}

// --------------------------------------------------------------------------
// Streaming decoding
// --------------------------------------------------------------------------

// Decoder reassembles messages from arbitrarily fragmented chunks of a byte stream.
// It is not safe for concurrent use; each connection owns one decoder.
type Decoder struct {
	buf         []byte
	maxPartSize uint32
	err         error
}

// NewDecoder creates a decoder that rejects parts larger than maxPartSize (0 = DefaultMax)
func NewDecoder(maxPartSize uint32) *Decoder {
	if maxPartSize == 0 {
		maxPartSize = DefaultMax
	}
	return &Decoder{maxPartSize: maxPartSize}
}

// Feed appends a chunk of the stream to the pending buffer. The chunk is copied.
func (d *Decoder) Feed(chunk []byte) {
	if d.err != nil {
		return
	}
	d.buf = append(d.buf, chunk...)
}

// Buffered returns the number of bytes of incomplete frames held by the decoder
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Err returns the sticky decode error, if any
func (d *Decoder) Err() error {
	return d.err
}

// Messages yields every complete message currently buffered. Incomplete trailing
// data stays buffered for the next Feed, so the sequence can be ranged again after
// more input arrives. After a malformed frame the sequence yields the error once and
// every later call yields it again immediately.
func (d *Decoder) Messages() iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			if d.err != nil {
				yield(nil, d.err)
				return
			}

			msg, n, err := d.next()
			if err != nil {
				d.err = err
				d.buf = nil
				continue
			}
			if n == 0 {
				return
			}

			d.buf = d.buf[n:]
			if len(d.buf) == 0 {
				d.buf = nil
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// next parses one frame from the head of the buffer. It returns n == 0 if the frame is incomplete.
func (d *Decoder) next() (Message, int, error) {
	if len(d.buf) < metaSize {
		return nil, 0, nil
	}

	meta := d.buf[0]
	if version := meta >> 4; version != Version {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	argc := int(meta & 0x0f)

	// first pass: make sure the whole frame is buffered without allocating
	pos := metaSize
	for i := 0; i < argc; i++ {
		if len(d.buf) < pos+lenSize {
			return nil, 0, nil
		}
		partLen := binary.BigEndian.Uint32(d.buf[pos : pos+lenSize])
		if partLen > d.maxPartSize {
			return nil, 0, fmt.Errorf("%w: %d > %d", ErrPartTooLarge, partLen, d.maxPartSize)
		}
		pos += lenSize
		if len(d.buf)-pos < int(partLen) {
			return nil, 0, nil
		}
		pos += int(partLen)
	}

	// second pass: copy the parts out so they do not alias the buffer
	msg := make(Message, argc)
	pos = metaSize
	for i := 0; i < argc; i++ {
		partLen := int(binary.BigEndian.Uint32(d.buf[pos : pos+lenSize]))
		pos += lenSize
		part := make([]byte, partLen)
		copy(part, d.buf[pos:pos+partLen])
		msg[i] = part
		pos += partLen
	}

	return msg, pos, nil
}

// Decode decodes exactly one complete frame
func Decode(frame []byte) (Message, error) {
	d := NewDecoder(0)
	d.Feed(frame)
	for msg, err := range d.Messages() {
		if err != nil {
			return nil, err
		}
		if d.Buffered() != 0 {
			return nil, fmt.Errorf("trailing %d bytes after frame", d.Buffered())
		}
		return msg, nil
	}
	return nil, fmt.Errorf("incomplete frame (%d bytes buffered)", d.Buffered())
}
