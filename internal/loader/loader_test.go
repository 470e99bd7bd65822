package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luashell/internal/engine"
	"luashell/internal/storage"
)

type bufferPrinter struct {
	bytes.Buffer
}

func (p *bufferPrinter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(&p.Buffer, format, args...)
}

// setupLoaderTestEnvironment wires a real engine and a temp-dir store.
func setupLoaderTestEnvironment(t *testing.T) (*Loader, *engine.Engine, *storage.Service, *bufferPrinter) {
	t.Helper()

	out := &bufferPrinter{}
	eng, err := engine.New(out)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	store, err := storage.New(context.Background(), t.TempDir())
	require.NoError(t, err)

	return New(eng, store, out, "lua"), eng, store, out
}

func TestLoader_Path(t *testing.T) {
	l, _, _, _ := setupLoaderTestEnvironment(t)
	assert.Equal(t, "/blink.lua", l.Path("blink"))
}

func TestLoader_LoadRunsModule(t *testing.T) {
	l, eng, store, out := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "/hello.lua", []byte("print('hello')\ngreeting = 'hi'")))

	l.Load(ctx, "hello")

	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "hi", eng.L.GetGlobal("greeting").String())
	assert.Equal(t, 0, eng.StackDepth())
}

func TestLoader_LoadAlwaysRereads(t *testing.T) {
	l, eng, store, _ := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "/counter.lua", []byte("runs = (runs or 0) + 1\nversion = 1")))
	l.Load(ctx, "counter")
	require.NoError(t, store.Write(ctx, "/counter.lua", []byte("runs = (runs or 0) + 1\nversion = 2")))
	l.Load(ctx, "counter")
	l.Load(ctx, "counter")

	assert.Equal(t, "3", eng.L.GetGlobal("runs").String())
	assert.Equal(t, "2", eng.L.GetGlobal("version").String())
}

func TestLoader_LoadMissing(t *testing.T) {
	l, eng, _, out := setupLoaderTestEnvironment(t)

	l.Load(context.Background(), "missing")

	assert.Equal(t, "no file '/missing.lua'\n", out.String())
	assert.Equal(t, 0, eng.StackDepth())
}

func TestLoader_LoadCompileError(t *testing.T) {
	l, eng, store, out := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "/broken.lua", []byte("x = = 1")))
	l.Load(ctx, "broken")

	assert.Contains(t, out.String(), "Compile error: ")
	assert.Contains(t, out.String(), "broken")
	assert.Equal(t, 0, eng.StackDepth())
}

func TestLoader_LoadRuntimeError(t *testing.T) {
	l, eng, store, out := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "/crash.lua", []byte("error('kaboom')")))
	l.Load(ctx, "crash")

	assert.Contains(t, out.String(), "Run script failed: ")
	assert.Contains(t, out.String(), "kaboom")
	assert.Equal(t, 0, eng.StackDepth())
}

func TestLoader_SaveThenLoad(t *testing.T) {
	l, eng, store, out := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "/mod.lua", []byte("-- a much longer previous version of the module\nold = true")))

	data := []byte("-- mod.lua\nvalue = 42\n")
	require.NoError(t, l.Save(ctx, "mod", data))
	assert.Equal(t, "Writing file '/mod.lua'\n", out.String())

	got, err := store.Read(ctx, "/mod.lua")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	l.Load(ctx, "mod")
	assert.Equal(t, "42", eng.L.GetGlobal("value").String())
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{name: "main", valid: true},
		{name: "servo_2", valid: true},
		{name: "lib.util", valid: true},
		{name: "", valid: false},
		{name: "lib/util", valid: false},
		{name: "/etc/passwd", valid: false},
		{name: `lib\util`, valid: false},
		{name: "..", valid: false},
		{name: "../escaped", valid: false},
		{name: "a..b", valid: false},
		{name: "nul\x00", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidName(tt.name))
		})
	}
}

func TestLoader_RejectsInvalidNames(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "sd")
	ctx := context.Background()

	out := &bufferPrinter{}
	eng, err := engine.New(out)
	require.NoError(t, err)
	defer eng.Close()
	store, err := storage.New(ctx, root)
	require.NoError(t, err)
	l := New(eng, store, out, "lua")

	err = l.Save(ctx, "../escaped", []byte("x = 1"))
	require.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, "Invalid module name '../escaped'\n", out.String())
	_, statErr := os.Stat(filepath.Join(parent, "escaped.lua"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written outside the store")

	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.lua"), []byte("print('outside ran')"), 0644))
	out.Reset()
	l.Load(ctx, "../outside")
	assert.Equal(t, "Invalid module name '../outside'\n", out.String())

	require.NoError(t, eng.SetSearcher(l.Searcher))
	err = eng.DoString("require('../outside')")
	require.Error(t, err)
	assert.Contains(t, engine.Message(err), "invalid module name '../outside'")
	assert.NotContains(t, out.String(), "outside ran")
}

func TestLoader_SearcherServesRequire(t *testing.T) {
	l, eng, store, out := setupLoaderTestEnvironment(t)
	ctx := context.Background()

	require.NoError(t, eng.SetSearcher(l.Searcher))
	require.NoError(t, store.Write(ctx, "/util.lua", []byte("local M = {}\nfunction M.double(x) return x * 2 end\nreturn M")))
	require.NoError(t, store.Write(ctx, "/app.lua", []byte("local util = require('util')\nprint(util.double(21))")))

	l.Load(ctx, "app")
	assert.Equal(t, "42\n", out.String())

	out.Reset()
	require.NoError(t, store.Write(ctx, "/needy.lua", []byte("require('nowhere')")))
	l.Load(ctx, "needy")
	assert.Contains(t, out.String(), "Run script failed: ")
	assert.Contains(t, out.String(), "no file '/nowhere.lua'")
}
