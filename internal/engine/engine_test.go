package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestEngine(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e, err := New(&out)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, &out
}

func TestNew_LibrariesOpened(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, name := range []string{"string", "table", "math", "coroutine", "package", "debug"} {
		assert.NotEqual(t, lua.LNil, e.L.GetGlobal(name), "library %s should be open", name)
	}
	for _, name := range []string{"io", "os"} {
		assert.Equal(t, lua.LNil, e.L.GetGlobal(name), "library %s must not be open", name)
	}
}

func TestCompileAndExecute_ReturnsValues(t *testing.T) {
	e, _ := newTestEngine(t)

	chunk, err := e.Compile("return 1+1, 'two'", "stdin")
	require.NoError(t, err)
	assert.Equal(t, "stdin", chunk.Name)

	res := e.Execute(chunk)
	require.True(t, res.OK())
	require.Len(t, res.Values, 2)
	assert.Equal(t, lua.LNumber(2), res.Values[0])
	assert.Equal(t, lua.LString("two"), res.Values[1])
	assert.Equal(t, 0, e.StackDepth())
}

func TestCompile_IncompleteInput(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name       string
		source     string
		incomplete bool
	}{
		{name: "open if block", source: "if true then", incomplete: true},
		{name: "open function", source: "function f(a)", incomplete: true},
		{name: "dangling assignment", source: "x =", incomplete: true},
		{name: "open table constructor", source: "t = {1, 2,", incomplete: true},
		{name: "multi-line prefix", source: "if true then\nprint(5)", incomplete: true},
		{name: "return before statement", source: "return if true then", incomplete: false},
		{name: "stray closer", source: "end", incomplete: false},
		{name: "bad operator", source: "x = 1 +* 2", incomplete: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Compile(tt.source, "stdin")
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.incomplete, ce.Incomplete, "message: %s", ce.Message)
			assert.Equal(t, tt.incomplete, IsIncomplete(err))
		})
	}
}

func TestHasEOFMarker(t *testing.T) {
	assert.True(t, HasEOFMarker(`[string "if true then"]:1: 'end' expected near <eof>`))
	assert.True(t, HasEOFMarker("stdin at EOF:   syntax error\n"))
	assert.False(t, HasEOFMarker("stdin line:1(column:6) near 'if':   syntax error"))
	assert.False(t, HasEOFMarker("<eof> appears early but not at the end"))
	assert.False(t, HasEOFMarker(""))
}

func TestIsIncomplete_NonCompileErrors(t *testing.T) {
	assert.False(t, IsIncomplete(nil))
	assert.False(t, IsIncomplete(errors.New("at EOF: but not a compile error")))
}

func TestExecute_RuntimeErrorRestoresStack(t *testing.T) {
	e, _ := newTestEngine(t)

	chunk, err := e.Compile("local a = 1\nerror('boom')", "stdin")
	require.NoError(t, err)

	res := e.Execute(chunk)
	require.False(t, res.OK())
	assert.Contains(t, Message(res.Err), "boom")
	assert.Contains(t, Message(res.Err), "stdin:2:")
	assert.NotContains(t, Message(res.Err), "stack traceback")
	assert.Equal(t, 0, e.StackDepth())

	// The state is still usable afterwards
	chunk, err = e.Compile("return 3", "stdin")
	require.NoError(t, err)
	res = e.Execute(chunk)
	require.True(t, res.OK())
	assert.Equal(t, []lua.LValue{lua.LNumber(3)}, res.Values)
}

func TestPrint_WritesToOutput(t *testing.T) {
	e, out := newTestEngine(t)

	require.NoError(t, e.DoString("print(5)\nprint('a', nil, true)"))
	assert.Equal(t, "5\na\tnil\ttrue\n", out.String())
}

func TestSetOutput(t *testing.T) {
	e, out := newTestEngine(t)

	var other bytes.Buffer
	e.SetOutput(&other)
	require.NoError(t, e.DoString("print('moved')"))

	assert.Empty(t, out.String())
	assert.Equal(t, "moved\n", other.String())
}

func TestPrintValues(t *testing.T) {
	e, out := newTestEngine(t)

	require.NoError(t, e.PrintValues([]lua.LValue{lua.LNumber(2), lua.LString("x")}))
	assert.Equal(t, "2\tx\n", out.String())
	assert.Equal(t, 0, e.StackDepth())
}

func TestPrintValues_BrokenPrint(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.DoString("print = function() error('no printer') end"))

	err := e.PrintValues([]lua.LValue{lua.LNumber(1)})
	require.Error(t, err)

	var pe *PrintError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "Error calling 'print' (")
	assert.Contains(t, err.Error(), "no printer")
	assert.Equal(t, 0, e.StackDepth())
}

func TestFindAndCallFunction(t *testing.T) {
	e, out := newTestEngine(t)
	require.NoError(t, e.DoString("function greet(n) print('hello ' .. n) end\nnotfn = 3"))

	assert.True(t, e.FindFunction("greet"))
	assert.False(t, e.FindFunction("notfn"))
	assert.False(t, e.FindFunction("missing"))

	require.NoError(t, e.CallFunction("greet", lua.LString("bot")))
	assert.Equal(t, "hello bot\n", out.String())

	err := e.CallFunction("missing")
	assert.True(t, errors.Is(err, ErrNoFunction))
}

func TestCallFunction_Error(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.DoString("function bad()\n  error('tick failed')\nend"))

	err := e.CallFunction("bad")
	require.Error(t, err)
	assert.Contains(t, Message(err), "tick failed")
	assert.Equal(t, 0, e.StackDepth())
}

func TestPreloadAndSearcher(t *testing.T) {
	e, out := newTestEngine(t)

	e.Preload("builtin", func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "answer", lua.LNumber(42))
		L.Push(mod)
		return 1
	})

	var searched []string
	require.NoError(t, e.SetSearcher(func(L *lua.LState) int {
		name := L.CheckString(1)
		searched = append(searched, name)
		if name != "greeter" {
			L.Push(lua.LString("no file '/" + name + ".lua'"))
			return 1
		}
		L.Push(L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LString("hi from greeter"))
			return 1
		}))
		return 1
	}))

	require.NoError(t, e.DoString("print(require('builtin').answer)"))
	require.NoError(t, e.DoString("print(require('greeter'))"))
	assert.Equal(t, "42\nhi from greeter\n", out.String())
	assert.Equal(t, []string{"greeter"}, searched, "preloaded modules never reach the searcher")

	err := e.DoString("require('absent')")
	require.Error(t, err)
	assert.Contains(t, Message(err), "no file '/absent.lua'")
}

func TestSetContext_CancelsRunawayScript(t *testing.T) {
	e, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.SetContext(ctx)

	err := e.DoString("while true do end")
	assert.Error(t, err)
}
