package terminal

import (
	"io"
	"os"

	"github.com/chzyer/readline"
)

const (
	keyCtrlC  = 0x03
	keyDelete = 0x7f
)

// OpenConsole turns the process's stdin/stdout into a device-like byte stream.
// When stdin is a terminal it is switched to raw mode so keys arrive one at a
// time and Enter arrives as '\r', the way a serial terminal sends them.
func OpenConsole() (*Port, error) {
	var raw *readline.RawMode
	if readline.IsTerminal(int(os.Stdin.Fd())) {
		raw = &readline.RawMode{}
		if err := raw.Enter(); err != nil {
			return nil, err
		}
	}

	in := &consoleReader{r: os.Stdin}
	out := &crlfWriter{w: os.Stdout}
	return NewPort(in, out, &consoleCloser{raw: raw}), nil
}

// consoleReader maps the DEL key most terminals send to backspace and ends
// input on Ctrl-C, which raw mode no longer turns into a signal.
type consoleReader struct {
	r io.Reader
}

func (c *consoleReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	for i := 0; i < n; i++ {
		switch p[i] {
		case keyDelete:
			p[i] = BackspaceByte
		case keyCtrlC:
			return i, ErrInterrupted
		}
	}
	return n, err
}

// crlfWriter expands bare '\n' to "\r\n" for terminals in raw mode.
type crlfWriter struct {
	w    io.Writer
	last byte
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' && c.last != '\r' {
			out = append(out, '\r')
		}
		out = append(out, b)
		c.last = b
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

type consoleCloser struct {
	raw *readline.RawMode
}

func (c *consoleCloser) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Exit()
}
