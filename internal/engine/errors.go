package engine

import (
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// CompileError is a failed Compile. Incomplete is set when the source is a
// valid prefix of a larger program, i.e. the parser ran out of input.
type CompileError struct {
	Message    string
	Incomplete bool
	cause      error
}

func (e *CompileError) Error() string {
	return e.Message
}

func (e *CompileError) Unwrap() error {
	return e.cause
}

// PrintError reports a failure of the script-level print function.
type PrintError struct {
	Message string
}

func (e *PrintError) Error() string {
	return "Error calling 'print' (" + e.Message + ")"
}

func newCompileError(err error) *CompileError {
	return &CompileError{
		Message:    Message(err),
		Incomplete: endOfInput(err),
		cause:      err,
	}
}

// IsIncomplete reports whether err is a compile error caused by unexpected end of input.
func IsIncomplete(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Incomplete
	}
	return false
}

// endOfInput inspects the parser position first and only falls back to the
// diagnostic text when no structured parse error is attached.
func endOfInput(err error) bool {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Cause != nil {
		var perr *parse.Error
		if errors.As(apiErr.Cause, &perr) {
			return perr.Pos.Line == parse.EOF
		}
	}
	return HasEOFMarker(Message(err))
}

// HasEOFMarker is the textual incomplete-input check. It accepts both the
// reference Lua phrasing ("... near <eof>") and gopher-lua's ("<chunk> at EOF: ...").
func HasEOFMarker(msg string) bool {
	msg = strings.TrimSpace(msg)
	return strings.HasSuffix(msg, "<eof>") || strings.Contains(msg, " at EOF:")
}

// Message extracts the human-readable text of a Lua error without the Go
// stack trace gopher-lua attaches to runtime errors.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Message
	}

	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return strings.TrimRight(apiErr.Object.String(), "\r\n")
	}

	return strings.TrimRight(err.Error(), "\r\n")
}
