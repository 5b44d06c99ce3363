package kv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db/engines/birch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell(t *testing.T) {
	opts := birch.DefaultOptions()
	opts.StorageDirection = t.TempDir()
	database, err := birch.NewBirchDB[string, string](opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Stop() })

	input := strings.Join([]string{
		`set greeting "hello world"`,
		`get greeting`,
		`get missing fallback`,
		`set 'a key' ''`,
		`get "a key" nope`,
		`set onlykey`,
		`set "unterminated`,
		`frobnicate`,
		``,
		`exit`,
		`set after exit`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runShell(strings.NewReader(input), &out, database, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "OK", lines[0])
	assert.Equal(t, `'hello world'`, lines[1])
	assert.Equal(t, "fallback", lines[2])
	assert.Equal(t, "OK", lines[3])
	assert.Equal(t, "''", lines[4])
	assert.Contains(t, lines[5], "usage: set")
	assert.Contains(t, lines[6], "parse error")
	assert.Contains(t, lines[7], "unknown command")

	v, err := database.Get("after", "")
	require.NoError(t, err)
	assert.Empty(t, v, "nothing runs after exit")
}

func TestShellWithoutTrailingNewline(t *testing.T) {
	opts := birch.DefaultOptions()
	opts.StorageDirection = t.TempDir()
	database, err := birch.NewBirchDB[string, string](opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Stop() })

	var out bytes.Buffer
	require.NoError(t, runShell(strings.NewReader("set k v\nget k"), &out, database, false))
	assert.Equal(t, "OK\nv\n", out.String())
}
