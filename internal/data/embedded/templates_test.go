package embedded

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luashell/internal/engine"
)

func TestListTemplates(t *testing.T) {
	names, err := ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"blink", "events", "main"}, names)
}

func TestTemplate(t *testing.T) {
	src, err := Template("main")
	require.NoError(t, err)
	assert.Contains(t, string(src), "function setup()")

	withExt, err := Template("main.lua")
	require.NoError(t, err)
	assert.Equal(t, src, withExt)

	_, err = Template("missing")
	assert.EqualError(t, err, "template not found: missing")
}

func TestTemplatesCompile(t *testing.T) {
	eng, err := engine.New(io.Discard)
	require.NoError(t, err)
	defer eng.Close()

	names, err := ListTemplates()
	require.NoError(t, err)
	for _, name := range names {
		src, err := Template(name)
		require.NoError(t, err)
		_, err = eng.Compile(string(src), name)
		assert.NoError(t, err, name)
	}
}
