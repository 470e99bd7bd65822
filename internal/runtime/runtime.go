// Package runtime assembles the shell: one Lua engine, the module loader, the
// preloaded platform libraries and the serial session, driven by a single
// cooperative tick loop.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"luashell/internal/clock"
	"luashell/internal/config"
	"luashell/internal/engine"
	"luashell/internal/loader"
	"luashell/internal/logger"
	"luashell/internal/platform"
	"luashell/internal/shell"
	"luashell/internal/storage"
	"luashell/internal/testutils"
)

// Script-level entry points.
const (
	setupFunc        = "setup"
	setup1Func       = "setup1"
	execLoopFunc     = "exec_loop"
	housekeepingFunc = "housekeeping_loop"
	eventHandlerFunc = "event_handler"
)

// maxStackDepth is the deepest the Lua stack should be between ticks.
const maxStackDepth = 5

// Terminal is the output side handed to the session and the loader.
type Terminal interface {
	shell.Output
	io.Writer
}

// Runtime owns every component of a running shell.
type Runtime struct {
	cfg     config.Config
	engine  *engine.Engine
	loader  *loader.Loader
	session *shell.Session
	term    Terminal

	setupCalled bool
	logger      *log.Logger
}

// New builds a runtime over store, reading from input and writing to term.
func New(cfg config.Config, store storage.Store, input shell.Input, term Terminal) (*Runtime, error) {
	eng, err := engine.New(term)
	if err != nil {
		return nil, fmt.Errorf("failed to create script engine: %w", err)
	}

	r := &Runtime{
		cfg:    cfg,
		engine: eng,
		term:   term,
		logger: logger.NewStyledLogger("Runtime"),
	}
	r.loader = loader.New(eng, store, term, cfg.ScriptExt)

	r.session = shell.NewSession(input, term, eng, r.loader, shell.Options{
		ID:                  testutils.GenerateUUID(cfg.TestMode),
		LineCapacity:        cfg.LineCapacity,
		DownloadTimeout:     cfg.DownloadTimeout,
		ScriptExt:           cfg.ScriptExt,
		ExecEnabled:         cfg.ExecEnabled,
		HousekeepingEnabled: cfg.HousekeepingEnabled,
		AfterAnonymousChunk: r.checkSetup,
	})

	if err := eng.SetSearcher(r.loader.Searcher); err != nil {
		eng.Close()
		return nil, err
	}
	eng.Preload(platform.PlatformLibName, platform.PlatformLoader(r.session))
	eng.Preload(platform.ArduinoLibName, platform.ArduinoLoader(clock.Now()))

	r.logger.Debug("Runtime created", "session", r.session.ID(), "storage", cfg.Storage)
	return r, nil
}

// Session returns the shell session.
func (r *Runtime) Session() *shell.Session { return r.session }

// Engine returns the script engine.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// Loader returns the module loader.
func (r *Runtime) Loader() *loader.Loader { return r.loader }

// Setup loads the main module and calls its setup function once.
func (r *Runtime) Setup(ctx context.Context) {
	r.loader.SetContext(ctx)

	r.logger.Debug("Loading main module", "module", r.cfg.MainModule)
	r.loader.Load(ctx, r.cfg.MainModule)

	if r.engine.FindFunction(setupFunc) {
		r.logger.Debug("Calling setup")
		_ = r.call(setupFunc)
		r.setupCalled = true
	}
	r.logger.Debug("Setup 0 complete")
}

// Setup1 calls the optional second-stage setup1 function.
func (r *Runtime) Setup1() {
	if r.engine.FindFunction(setup1Func) {
		r.logger.Debug("Calling setup1")
		_ = r.call(setup1Func)
	}
	r.logger.Debug("Setup 1 complete")
}

// checkSetup runs setup for a program that arrived by anonymous download
// when no main module provided one at boot.
func (r *Runtime) checkSetup() {
	if r.setupCalled || !r.engine.FindFunction(setupFunc) {
		return
	}
	r.logger.Debug("Calling setup after download")
	_ = r.call(setupFunc)
	r.setupCalled = true
}

// Tick runs the session once and then the enabled periodic callbacks. A
// callback that fails is switched off so it is not retried every tick.
func (r *Runtime) Tick(ctx context.Context, now time.Time) {
	r.session.Tick(ctx, now)

	if depth := r.engine.StackDepth(); depth > maxStackDepth {
		r.logger.Warn(fmt.Sprintf("Stack %d, should never be this high", depth))
	}

	if r.session.ExecEnabled() && r.engine.FindFunction(execLoopFunc) {
		if err := r.call(execLoopFunc); err != nil {
			r.logger.Warn("Exec loop disabled after failure", "error", err)
			r.session.SetExecEnabled(false)
		}
	}

	if r.session.HousekeepingEnabled() && r.engine.FindFunction(housekeepingFunc) {
		if err := r.call(housekeepingFunc); err != nil {
			r.logger.Warn("Housekeeping loop disabled after failure", "error", err)
			r.session.SetHousekeepingEnabled(false)
		}
	}
}

// Event delivers a named event to the script's event_handler, if it has one.
func (r *Runtime) Event(name string, data []byte) {
	if !r.engine.FindFunction(eventHandlerFunc) {
		return
	}
	if data == nil {
		_ = r.call(eventHandlerFunc, name)
		return
	}
	_ = r.call(eventHandlerFunc, name, string(data))
}

// Run ticks until ctx is cancelled. Once done is closed the input has ended:
// Run returns as soon as no download is left waiting for its timeout.
func (r *Runtime) Run(ctx context.Context, done <-chan struct{}) error {
	r.engine.SetContext(ctx)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	draining := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			done = nil
			draining = true
		case <-ticker.C:
			r.Tick(ctx, clock.Now())
			if draining && r.session.Mode() != shell.ModeDownloadInProgress {
				return nil
			}
		}
	}
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.engine.Close()
}

// call invokes a global function and reports a failure on the terminal.
func (r *Runtime) call(name string, args ...string) error {
	values := make([]lua.LValue, len(args))
	for i, a := range args {
		values[i] = lua.LString(a)
	}

	err := r.engine.CallFunction(name, values...)
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrNoFunction) {
		return err
	}
	r.term.Printf("Error: %s\n", engine.Message(err))
	return err
}
