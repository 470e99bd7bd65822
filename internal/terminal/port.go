package terminal

import (
	"errors"
	"io"
	"sync"

	"luashell/internal/logger"
)

// ErrInterrupted ends console input when the user types Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// inputBacklog bounds how many received bytes may wait for the next tick.
const inputBacklog = 4096

// Port adapts a blocking byte stream to the polled, non-blocking input the
// session consumes. A pump goroutine reads the stream into a bounded channel.
type Port struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer

	in   chan byte
	done chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

// NewPort starts pumping r. closer, if not nil, is closed by Close.
func NewPort(r io.Reader, w io.Writer, closer io.Closer) *Port {
	p := &Port{
		r:      r,
		w:      w,
		closer: closer,
		in:     make(chan byte, inputBacklog),
		done:   make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer close(p.done)

	buf := make([]byte, 256)
	for {
		n, err := p.r.Read(buf)
		for _, b := range buf[:n] {
			p.in <- b
		}
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			logger.Debug("Input stream ended", "error", err)
			return
		}
	}
}

// TryReadByte returns the next received byte, or false when none is pending.
// It never blocks.
func (p *Port) TryReadByte() (byte, bool) {
	select {
	case b := <-p.in:
		return b, true
	default:
		return 0, false
	}
}

// Write sends p to the stream.
func (p *Port) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Done is closed once the input stream has ended.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the input stream, or nil while it is open.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close releases the underlying stream.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		if p.closer != nil {
			err = p.closer.Close()
		}
	})
	return err
}
