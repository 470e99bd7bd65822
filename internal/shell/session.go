// Package shell implements the serial shell session: a polled state machine
// that frames the incoming byte stream into command lines, multi-line Lua
// chunks and raw file downloads, and dispatches each to the right handler.
package shell

import (
	"bytes"
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"luashell/internal/engine"
	"luashell/internal/logger"
)

// DefaultDownloadTimeout is the input silence that ends a download.
const DefaultDownloadTimeout = 1000 * time.Millisecond

// Input is a byte source that never blocks.
type Input interface {
	TryReadByte() (byte, bool)
}

// Output is the terminal the session writes prompts, echo and diagnostics to.
type Output interface {
	Prompt(multiline bool)
	Echo(b byte)
	Bell()
	Backspace()
	Newline()
	Printf(format string, args ...interface{})
}

// Engine is the script engine surface used for interactive evaluation.
type Engine interface {
	Compile(source string, name string) (*engine.Chunk, error)
	Execute(chunk *engine.Chunk) engine.Result
	PrintValues(values []lua.LValue) error
}

// ModuleLoader persists and runs named modules.
type ModuleLoader interface {
	Load(ctx context.Context, name string)
	Save(ctx context.Context, name string, data []byte) error
}

// Options configures a Session.
type Options struct {
	// ID identifies the session in logs; a random UUID when empty.
	ID string
	// LineCapacity bounds the line buffer (default 300).
	LineCapacity int
	// DownloadTimeout is the silence that completes a download (default 1s).
	DownloadTimeout time.Duration
	// ScriptExt is the module file extension recognised in pasted headers (default "lua").
	ScriptExt string
	// ExecEnabled and HousekeepingEnabled are the initial callback toggles.
	ExecEnabled         bool
	HousekeepingEnabled bool
	// AfterAnonymousChunk runs after a downloaded anonymous chunk executed successfully.
	AfterAnonymousChunk func()
}

// Session is the single owned state of the shell. It is driven from one
// goroutine through Tick and is not safe for concurrent use.
type Session struct {
	id string

	mode Mode
	line *LineBuffer

	// chunk is only meaningful in ModeMultiline.
	chunk string

	// download state, only meaningful while downloading.
	download       bytes.Buffer
	downloadModule string
	lastCharTime   time.Time

	needsPrompt bool

	execEnabled         bool
	housekeepingEnabled bool

	timeout             time.Duration
	scriptExt           string
	afterAnonymousChunk func()

	in     Input
	out    Output
	engine Engine
	loader ModuleLoader
	logger *log.Logger
}

// NewSession creates a session in ModeInteractive with a prompt pending.
func NewSession(in Input, out Output, eng Engine, loader ModuleLoader, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	timeout := opts.DownloadTimeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ext := opts.ScriptExt
	if ext == "" {
		ext = "lua"
	}

	return &Session{
		id:                  id,
		mode:                ModeInteractive,
		line:                NewLineBuffer(opts.LineCapacity),
		needsPrompt:         true,
		execEnabled:         opts.ExecEnabled,
		housekeepingEnabled: opts.HousekeepingEnabled,
		timeout:             timeout,
		scriptExt:           ext,
		afterAnonymousChunk: opts.AfterAnonymousChunk,
		in:                  in,
		out:                 out,
		engine:              eng,
		loader:              loader,
		logger:              logger.NewStyledLogger("Session"),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the active mode.
func (s *Session) Mode() Mode { return s.mode }

// ExecEnabled reports whether the exec_loop callback should run.
func (s *Session) ExecEnabled() bool { return s.execEnabled }

// SetExecEnabled switches the exec_loop callback.
func (s *Session) SetExecEnabled(enabled bool) { s.execEnabled = enabled }

// HousekeepingEnabled reports whether the housekeeping_loop callback should run.
func (s *Session) HousekeepingEnabled() bool { return s.housekeepingEnabled }

// SetHousekeepingEnabled switches the housekeeping_loop callback.
func (s *Session) SetHousekeepingEnabled(enabled bool) { s.housekeepingEnabled = enabled }

// Tick runs one polling step: emit a pending prompt, close a download that
// has gone quiet, then consume every byte already received.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	if s.needsPrompt {
		s.out.Prompt(s.mode == ModeMultiline)
		s.needsPrompt = false
	}

	if s.mode == ModeDownloadInProgress && now.Sub(s.lastCharTime) >= s.timeout {
		s.out.Printf("Download complete\n")
		s.finishDownload(ctx)
		s.setMode(ModeInteractive)
		s.needsPrompt = true
	}

	for {
		b, ok := s.in.TryReadByte()
		if !ok {
			return
		}
		s.receive(ctx, b, now)
	}
}

func (s *Session) receive(ctx context.Context, b byte, now time.Time) {
	if s.mode == ModeAwaitingDownload {
		s.download.Reset()
		s.setMode(ModeDownloadInProgress)
	}

	if s.mode == ModeDownloadInProgress {
		s.lastCharTime = now
		s.download.WriteByte(b)
		return
	}

	s.accumulate(ctx, b, now)
}

// accumulate handles one byte of line input in the interactive modes.
func (s *Session) accumulate(ctx context.Context, b byte, now time.Time) {
	switch b {
	case '\r':
		s.out.Newline()
		line := s.line.String()
		s.line.Reset()
		s.logger.Debug("Line received", "mode", s.mode, "line", ansi.Strip(line))

		if s.mode == ModeMultiline {
			s.continueChunk(line)
			s.needsPrompt = true
			return
		}
		s.route(ctx, line, now)

	case '\b':
		if s.line.Backspace() {
			s.out.Backspace()
		} else {
			s.out.Bell()
		}

	default:
		if err := s.line.Append(b); err != nil {
			s.logger.Warn("Input byte dropped", "error", err, "bytes", s.line.Len())
			s.out.Bell()
			return
		}
		s.out.Echo(b)
	}
}

func (s *Session) setMode(m Mode) {
	if s.mode == m {
		return
	}
	logger.ModeTransition(s.mode.String(), m.String())
	s.mode = m
}
