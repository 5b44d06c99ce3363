package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func openStore(t *testing.T, dir string, maxBytes int64) *SegmentStore {
	t.Helper()
	store, err := OpenSegmentStore(dir, "storage", "db", maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenEmptyDirectory(t *testing.T) {
	store := openStore(t, t.TempDir(), 1024)

	assert.Equal(t, 0, store.Len())
	assert.Nil(t, store.Active())
	assert.True(t, store.NeedsRotation())

	_, _, err := store.Append([]byte("x\n"))
	assert.Error(t, err, "append needs an active segment")
}

func TestAppendReturnsStartOffsets(t *testing.T) {
	store := openStore(t, t.TempDir(), 1024)
	require.NoError(t, store.Rotate())

	seg, first, err := store.Append([]byte("a\n"))
	require.NoError(t, err)
	_, second, err := store.Append([]byte("bcd\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(6), seg.Size())

	line, err := store.ReadAt(seg, second)
	require.NoError(t, err)
	assert.Equal(t, "bcd\n", string(line))

	line, err = store.ReadAt(seg, first)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(line))
}

func TestRotationAfterThreshold(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir, 10)
	require.NoError(t, store.Rotate())

	first, _, err := store.Append([]byte("1234567\n"))
	require.NoError(t, err)
	assert.False(t, store.NeedsRotation(), "8 bytes do not exceed the limit")

	_, _, err = store.Append([]byte("1234567\n"))
	require.NoError(t, err)
	assert.True(t, store.NeedsRotation(), "16 bytes exceed the limit")
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Rotate())
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 1, store.Active().Ordinal())
	assert.FileExists(t, filepath.Join(dir, "storage.1.db"))

	second, offset, err := store.Append([]byte("next\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Ordinal())
	assert.Equal(t, int64(0), offset)

	// the rotated segment stays readable
	line, err := store.ReadAt(first, 8)
	require.NoError(t, err)
	assert.Equal(t, "1234567\n", string(line))
}

func TestRepairClosesGaps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.0.db", "zero\n")
	writeFile(t, dir, "storage.2.db", "two\n")
	writeFile(t, dir, "storage.7.db", "seven\n")
	writeFile(t, dir, "unrelated.txt", "ignored")
	writeFile(t, dir, "storage.x.db", "ignored")

	store := openStore(t, dir, 1024)
	require.Equal(t, 3, store.Len())

	for ordinal, content := range []string{"zero\n", "two\n", "seven\n"} {
		data, err := os.ReadFile(filepath.Join(dir, store.name(ordinal)))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
		assert.Equal(t, ordinal, store.Segments()[ordinal].Ordinal())
	}
	assert.NoFileExists(t, filepath.Join(dir, "storage.7.db"))
	assert.FileExists(t, filepath.Join(dir, "unrelated.txt"))

	// the next rotation continues after the repaired range
	require.NoError(t, store.Rotate())
	assert.Equal(t, 3, store.Active().Ordinal())
}

func TestRepairCollision(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.0.db", "zero\n")
	writeFile(t, dir, "storage.01.db", "one (padded)\n")
	writeFile(t, dir, "storage.1.db", "one\n")

	before := util.InvariantCount("segment", "ordinal_collision")

	_, err := OpenSegmentStore(dir, "storage", "db", 1024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrOrdinalCollision))
	assert.Equal(t, before+1, util.InvariantCount("segment", "ordinal_collision"))

	// nothing was overwritten
	data, err := os.ReadFile(filepath.Join(dir, "storage.1.db"))
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))
}

func TestRotationCollision(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir, 1024)

	writeFile(t, dir, "storage.0.db", "created out of band\n")

	err := store.Rotate()
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrSegmentExists)
	assert.Equal(t, 0, store.Len())
}

func TestSegmentMustBeRegularFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "storage.0.db"), 0o755))

	_, err := OpenSegmentStore(dir, "storage", "db", 1024)
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "storage.0.db", "a\nbb\nbad\nccc\n")
	writeFile(t, dir, "storage.1.db", "dddd\npartial")

	store := openStore(t, dir, 1024)

	type seen struct {
		ordinal int
		offset  int64
		line    string
	}
	var got []seen
	err := store.Scan(func(seg *Segment, offset int64, line []byte) error {
		if string(line) == "bad\n" {
			return errors.New("undecodable")
		}
		got = append(got, seen{seg.Ordinal(), offset, string(line)})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []seen{
		{0, 0, "a\n"},
		{0, 2, "bb\n"},
		{1, 0, "dddd\n"},
	}, got)
}
