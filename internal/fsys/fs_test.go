package fsys

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMem_ReadAndScan(t *testing.T) {
	ctx := context.Background()
	m := NewMem(map[string]string{
		"proj/Max.hack":   "0000000000000000\n",
		"proj/Max.tst":    "ticktock;",
		"proj/sub/x.txt":  "x",
		"other/Other.tst": "",
	})

	data, err := m.ReadFile(ctx, "proj/Max.tst")
	require.NoError(t, err)
	assert.Equal(t, "ticktock;", string(data))

	entries, err := m.Scandir(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "Max.hack"},
		{Name: "Max.tst"},
		{Name: "sub", IsDir: true},
	}, entries)
}

func TestMem_Missing(t *testing.T) {
	ctx := context.Background()
	m := NewMem(nil)

	_, err := m.ReadFile(ctx, "nope.hack")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = m.Scandir(ctx, "nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMem_WriteRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMem(nil)
	m.WriteFile("./a/b.tst", []byte("x"))

	data, err := m.ReadFile(ctx, "a/b.tst")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	m.Remove("a/b.tst")
	_, err = m.ReadFile(ctx, "a/b.tst")
	assert.Error(t, err)
}

func TestMem_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMem(nil).ReadFile(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOS_ReadAndScan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tst"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tst"), []byte("a"), 0644))

	o := NewOS(dir)
	entries, err := o.Scandir(ctx, ".")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.tst", entries[0].Name)

	data, err := o.ReadFile(ctx, "b.tst")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	_, err = o.ReadFile(ctx, "missing.tst")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDirJoin(t *testing.T) {
	assert.Equal(t, "proj/max", Dir("proj/max/Max.hack"))
	assert.Equal(t, "", Dir("Max.hack"))
	assert.Equal(t, "/", Dir("/Max.hack"))
	assert.Equal(t, "proj/Max.tst", Join("proj", "Max.tst"))
	assert.Equal(t, "Max.tst", Join("", "Max.tst"))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", DecodeText([]byte("plain")))
	// 0xE9 is "é" in Windows-1252 and invalid as UTF-8 on its own
	assert.Equal(t, "café", DecodeText([]byte{'c', 'a', 'f', 0xE9}))
}
