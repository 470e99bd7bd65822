package testutils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"luashell/internal/storage"
	"luashell/internal/terminal"
)

// ScriptedInput is a byte source fed by the test. It implements the
// session's non-blocking input.
type ScriptedInput struct {
	mu    sync.Mutex
	queue []byte
}

// NewScriptedInput creates an empty input.
func NewScriptedInput() *ScriptedInput {
	return &ScriptedInput{}
}

// Feed queues bytes as if they had just been received.
func (s *ScriptedInput) Feed(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, data...)
}

// Typed queues a line followed by the carriage return a terminal sends for Enter.
func (s *ScriptedInput) Typed(line string) {
	s.Feed(line + "\r")
}

// TryReadByte returns the next queued byte.
func (s *ScriptedInput) TryReadByte() (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return 0, false
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, true
}

// Pending returns the number of queued bytes.
func (s *ScriptedInput) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// RecordingTerminal is a terminal whose output is kept for assertions.
type RecordingTerminal struct {
	*terminal.Terminal
	buf *bytes.Buffer
}

// NewRecordingTerminal creates a terminal writing into memory.
func NewRecordingTerminal() *RecordingTerminal {
	buf := &bytes.Buffer{}
	return &RecordingTerminal{Terminal: terminal.New(buf), buf: buf}
}

// Output returns everything written so far.
func (r *RecordingTerminal) Output() string {
	return r.buf.String()
}

// TakeOutput returns everything written so far and clears it.
func (r *RecordingTerminal) TakeOutput() string {
	s := r.buf.String()
	r.buf.Reset()
	return s
}

// ManualClock is a clock the test advances explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts at a fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Sleep advances the clock instead of blocking, for use as clock.SleepFunc.
func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// NewTempStore creates a storage service rooted in a fresh temporary directory,
// pre-populated with modules (name -> source).
func NewTempStore(t *testing.T, modules map[string]string) (*storage.Service, string) {
	t.Helper()

	dir := CreateTempDir(t, modules)
	store, err := storage.New(context.Background(), dir)
	require.NoError(t, err, "Should create storage service")
	return store, dir
}

// CreateTempDir creates a temporary directory holding one "<name>.lua" file per module.
func CreateTempDir(t *testing.T, modules map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()

	for name, source := range modules {
		filePath := filepath.Join(tmpDir, name+".lua")
		err := os.WriteFile(filePath, []byte(source), 0644)
		require.NoError(t, err, "Should create module %s", name)
	}

	return tmpDir
}

// ModuleTestData returns sample modules used across packages.
func ModuleTestData() map[string]string {
	return map[string]string{
		"main": `-- main.lua
setup_calls = 0
function setup()
  setup_calls = setup_calls + 1
  print("setup done")
end
`,
		"blink": `-- blink.lua
blinks = (blinks or 0) + 1
print("blink " .. blinks)
`,
		"broken": `-- broken.lua
x = = 1
`,
		"crash": `-- crash.lua
error("crashed on load")
`,
	}
}
