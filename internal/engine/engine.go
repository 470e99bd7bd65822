// Package engine binds the shell to the embedded Lua runtime (gopher-lua).
// It exposes exactly the capabilities the shell needs: compile a string, run a
// compiled unit under a protected call, print results, and classify compile
// errors as "incomplete input" versus genuine syntax errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ErrNoFunction is returned by CallFunction when the global is not a function.
var ErrNoFunction = errors.New("no such function")

// Standard libraries opened in every state. io and os are left out on purpose:
// scripts reach storage only through the module loader.
var standardLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
	{lua.DebugLibName, lua.OpenDebug},
	{lua.ChannelLibName, lua.OpenChannel},
	{lua.CoroutineLibName, lua.OpenCoroutine},
}

// Chunk is a compiled, not yet executed, unit of Lua source.
type Chunk struct {
	Name string
	fn   *lua.LFunction
}

// Function returns the compiled function, for handing to require as a loader.
func (c *Chunk) Function() *lua.LFunction {
	return c.fn
}

// Result is the tagged outcome of Execute: either Values (success) or Err.
type Result struct {
	Values []lua.LValue
	Err    error
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Engine owns one Lua state. It is not safe for concurrent use; the shell
// drives it from a single tick loop.
type Engine struct {
	L   *lua.LState
	out io.Writer
}

// New creates a Lua state with the standard libraries (minus io/os) and a
// print function that writes to out.
func New(out io.Writer) (*Engine, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range standardLibs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open %s library: %w", lib.name, err)
		}
	}

	e := &Engine{L: L, out: out}
	L.SetGlobal("print", L.NewFunction(e.print))
	return e, nil
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.L.Close()
}

// SetOutput redirects script print output.
func (e *Engine) SetOutput(w io.Writer) {
	e.out = w
}

// SetContext makes running scripts abort when ctx is cancelled.
func (e *Engine) SetContext(ctx context.Context) {
	e.L.SetContext(ctx)
}

// StackDepth returns the number of values currently on the Lua stack.
// Between ticks it should stay at zero.
func (e *Engine) StackDepth() int {
	return e.L.GetTop()
}

// Compile parses source into a chunk named name.
// Failures are always returned as *CompileError.
func (e *Engine) Compile(source string, name string) (*Chunk, error) {
	fn, err := e.L.Load(strings.NewReader(source), name)
	if err != nil {
		return nil, newCompileError(err)
	}
	return &Chunk{Name: name, fn: fn}, nil
}

// Execute runs chunk under a protected call and collects every returned value.
// The Lua stack is restored to its previous depth on every path.
func (e *Engine) Execute(chunk *Chunk) Result {
	L := e.L
	top := L.GetTop()
	defer L.SetTop(top)

	L.Push(chunk.fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return Result{Err: err}
	}

	n := L.GetTop() - top
	values := make([]lua.LValue, 0, n)
	for i := 1; i <= n; i++ {
		values = append(values, L.Get(top+i))
	}
	return Result{Values: values}
}

// PrintValues passes values to the script-level print function, so a user
// override of print is honoured.
func (e *Engine) PrintValues(values []lua.LValue) error {
	L := e.L
	top := L.GetTop()
	defer L.SetTop(top)

	L.Push(L.GetGlobal("print"))
	for _, v := range values {
		L.Push(v)
	}
	if err := L.PCall(len(values), 0, nil); err != nil {
		return &PrintError{Message: Message(err)}
	}
	return nil
}

// FindFunction reports whether the global name holds a function.
func (e *Engine) FindFunction(name string) bool {
	_, ok := e.L.GetGlobal(name).(*lua.LFunction)
	return ok
}

// CallFunction calls the global function name with args under a protected call.
func (e *Engine) CallFunction(name string, args ...lua.LValue) error {
	fn, ok := e.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoFunction, name)
	}

	top := e.L.GetTop()
	defer e.L.SetTop(top)

	return e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

// Preload registers a module that require(name) builds by calling loader.
func (e *Engine) Preload(name string, loader lua.LGFunction) {
	e.L.PreloadModule(name, loader)
}

// SetSearcher replaces every require searcher except package.preload with fn.
// fn receives the module name and must push either a loader function or an
// error string, as Lua searchers do.
func (e *Engine) SetSearcher(fn lua.LGFunction) error {
	pkg, ok := e.L.GetGlobal(lua.LoadLibName).(*lua.LTable)
	if !ok {
		return errors.New("package library is not open")
	}
	loaders, ok := e.L.GetField(pkg, "loaders").(*lua.LTable)
	if !ok {
		return errors.New("package.loaders is not a table")
	}

	for i := loaders.Len(); i > 1; i-- {
		loaders.RawSetInt(i, lua.LNil)
	}
	loaders.RawSetInt(2, e.L.NewFunction(fn))
	return nil
}

// DoString compiles and runs source, returning the first error.
func (e *Engine) DoString(source string) error {
	chunk, err := e.Compile(source, "dostring")
	if err != nil {
		return err
	}
	return e.Execute(chunk).Err
}

func (e *Engine) print(L *lua.LState) int {
	top := L.GetTop()

	var sb strings.Builder
	for i := 1; i <= top; i++ {
		if i > 1 {
			sb.WriteByte('\t')
		}
		sb.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	sb.WriteByte('\n')

	if e.out != nil {
		_, _ = io.WriteString(e.out, sb.String())
	}
	return 0
}
