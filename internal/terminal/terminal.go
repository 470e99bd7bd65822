// Package terminal drives the byte stream the shell talks over: prompts, echo
// and diagnostics on the way out, a non-blocking byte source on the way in.
package terminal

import (
	"fmt"
	"io"
	"sync"
)

// Control bytes written to the terminal.
const (
	Bell          = '\a'
	BackspaceByte = '\b'
	CarriageRet   = '\r'
)

const (
	promptInteractive = ">"
	promptMultiline   = ">>"
)

// Terminal is the output side of the shell. Writes are serialized so output
// from scripts and from the session never interleave mid-line.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a Terminal writing to w.
func New(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Write sends p verbatim. Write errors are dropped: the shell has nowhere to report them.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, _ = t.w.Write(p)
	return len(p), nil
}

// Printf formats and writes a diagnostic.
func (t *Terminal) Printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(t, format, args...)
}

// Prompt writes ">>" while a chunk is being accumulated and ">" otherwise.
func (t *Terminal) Prompt(multiline bool) {
	if multiline {
		_, _ = io.WriteString(t, promptMultiline)
		return
	}
	_, _ = io.WriteString(t, promptInteractive)
}

// Echo writes back a received byte.
func (t *Terminal) Echo(b byte) {
	_, _ = t.Write([]byte{b})
}

// Bell rings the terminal bell.
func (t *Terminal) Bell() {
	t.Echo(Bell)
}

// Backspace erases the last echoed character.
func (t *Terminal) Backspace() {
	_, _ = io.WriteString(t, "\b \b")
}

// Newline ends an input line.
func (t *Terminal) Newline() {
	_, _ = io.WriteString(t, "\r\n")
}
