// Package loader resolves module names to source in storage, compiles them and
// runs them once. Every failure is reported on the terminal and swallowed: a
// load never fails from the caller's point of view.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"luashell/internal/engine"
	"luashell/internal/logger"
	"luashell/internal/storage"
)

// ErrModuleNotFound is the cause logged when a module file is missing.
var ErrModuleNotFound = errors.New("module not found")

// ErrInvalidName is returned for module names that are not plain identifiers.
var ErrInvalidName = errors.New("invalid module name")

// ValidName reports whether name can be used as a module name: non-empty and
// free of path separators and parent references, so it always resolves to a
// file directly under the storage root.
func ValidName(name string) bool {
	return name != "" &&
		!strings.ContainsAny(name, "/\\\x00") &&
		!strings.Contains(name, "..")
}

// Runner is the part of the script engine the loader drives.
type Runner interface {
	Compile(source string, name string) (*engine.Chunk, error)
	Execute(chunk *engine.Chunk) engine.Result
}

// Printer receives the terminal diagnostics.
type Printer interface {
	Printf(format string, args ...interface{})
}

// Loader loads modules from a Store into a Runner.
type Loader struct {
	runner Runner
	store  storage.Store
	out    Printer
	ext    string
	ctx    context.Context
	logger *log.Logger
}

// New creates a loader resolving "/<name>.<ext>" in store.
func New(runner Runner, store storage.Store, out Printer, ext string) *Loader {
	return &Loader{
		runner: runner,
		store:  store,
		out:    out,
		ext:    ext,
		ctx:    context.Background(),
		logger: logger.NewStyledLogger("Loader"),
	}
}

// SetContext sets the context used by require lookups, which have no context of their own.
func (l *Loader) SetContext(ctx context.Context) {
	l.ctx = ctx
}

// Path returns the storage path for a module name.
func (l *Loader) Path(name string) string {
	return "/" + name + "." + l.ext
}

// Load reads, compiles and runs module name. It reloads unconditionally.
func (l *Loader) Load(ctx context.Context, name string) {
	l.logger.Debug("Loading module", "module", name)

	if !ValidName(name) {
		l.out.Printf("Invalid module name '%s'\n", name)
		return
	}

	chunk, err := l.compileModule(ctx, name)
	if err != nil {
		l.out.Printf("%s\n", err)
		return
	}
	l.run(chunk)
}

// Save replaces the stored file for module name with data.
func (l *Loader) Save(ctx context.Context, name string, data []byte) error {
	if !ValidName(name) {
		l.out.Printf("Invalid module name '%s'\n", name)
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	path := l.Path(name)
	l.out.Printf("Writing file '%s'\n", path)

	if err := l.store.Remove(ctx, path); err != nil {
		l.out.Printf("Unable to open file '%s'\n", path)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if err := l.store.Write(ctx, path, data); err != nil {
		l.out.Printf("Unable to open file '%s'\n", path)
		return err
	}

	logger.ModuleOperation("save", name, "bytes", len(data))
	return nil
}

// Searcher is a require searcher. It pushes the compiled module as the loader
// function, or a message explaining why the module could not be used.
func (l *Loader) Searcher(L *lua.LState) int {
	name := L.CheckString(1)
	l.logger.Debug("Searching for module", "module", name)

	if !ValidName(name) {
		L.Push(lua.LString(fmt.Sprintf("invalid module name '%s'", name)))
		return 1
	}

	chunk, err := l.compileModule(l.ctx, name)
	if err != nil {
		L.Push(lua.LString(err.Error()))
		return 1
	}
	L.Push(chunk.Function())
	return 1
}

// compileModule returns an error whose text is the terminal diagnostic.
func (l *Loader) compileModule(ctx context.Context, name string) (*engine.Chunk, error) {
	path := l.Path(name)

	data, err := l.store.Read(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: %w", ErrModuleNotFound, err)
		}
		l.logger.Debug("Module read failed", "module", name, "error", err)
		return nil, fmt.Errorf("no file '%s'", path)
	}

	chunk, err := l.runner.Compile(string(data), name)
	if err != nil {
		return nil, fmt.Errorf("Compile error: %s", engine.Message(err))
	}
	return chunk, nil
}

func (l *Loader) run(chunk *engine.Chunk) {
	res := l.runner.Execute(chunk)
	if !res.OK() {
		l.logger.Debug("Module failed", "module", chunk.Name, "error", res.Err)
		l.out.Printf("Run script failed: %s\n", engine.Message(res.Err))
	}
}
