package shell

import "errors"

// ErrLineOverflow is returned when a byte arrives for a full line buffer.
var ErrLineOverflow = errors.New("line buffer full")

// DefaultLineCapacity is the longest line the session accepts.
const DefaultLineCapacity = 300

// LineBuffer holds the line currently being typed, up to a fixed capacity.
type LineBuffer struct {
	buf      []byte
	capacity int
}

// NewLineBuffer creates an empty buffer; a non-positive capacity selects the default.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity <= 0 {
		capacity = DefaultLineCapacity
	}
	return &LineBuffer{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Append adds c, or returns ErrLineOverflow and leaves the line unchanged.
func (b *LineBuffer) Append(c byte) error {
	if len(b.buf) >= b.capacity {
		return ErrLineOverflow
	}
	b.buf = append(b.buf, c)
	return nil
}

// Backspace removes the last byte. It returns false on an empty line.
func (b *LineBuffer) Backspace() bool {
	if len(b.buf) == 0 {
		return false
	}
	b.buf = b.buf[:len(b.buf)-1]
	return true
}

// Len returns the number of buffered bytes.
func (b *LineBuffer) Len() int { return len(b.buf) }

// Cap returns the line capacity.
func (b *LineBuffer) Cap() int { return b.capacity }

func (b *LineBuffer) String() string { return string(b.buf) }

// Reset empties the line without releasing its storage.
func (b *LineBuffer) Reset() {
	b.buf = b.buf[:0]
}
