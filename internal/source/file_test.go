package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestFileSource_Age(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")
	mtime := time.Now().Add(-10 * time.Hour).Truncate(time.Second)
	writeFile(t, path, []byte("x"), mtime)

	stamp, err := FileSource{}.Age(context.Background(), Target{Locator: path})

	require.NoError(t, err)
	assert.True(t, stamp.Exists)
	assert.True(t, stamp.AsOf.Equal(mtime))
}

func TestFileSource_Missing(t *testing.T) {
	stamp, err := FileSource{}.Age(context.Background(), Target{Locator: filepath.Join(t.TempDir(), "nope")})

	require.NoError(t, err)
	assert.False(t, stamp.Exists)
}

func TestLogSource_Lines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.log")
	writeFile(t, path, []byte("first\r\nsecond\nthird"), time.Time{})

	lines, err := LogSource{}.Lines(context.Background(), Target{Locator: path})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestLogSource_CompressedLines(t *testing.T) {
	dir := t.TempDir()
	content := "alpha\nwarning beta\n"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := filepath.Join(dir, "job.log.gz")
	writeFile(t, gzPath, gz.Bytes(), time.Time{})

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstPath := filepath.Join(dir, "job.log.zst")
	writeFile(t, zstPath, enc.EncodeAll([]byte(content), nil), time.Time{})
	require.NoError(t, enc.Close())

	for _, path := range []string{gzPath, zstPath} {
		lines, err := LogSource{}.Lines(context.Background(), Target{Locator: path})
		require.NoError(t, err, path)
		assert.Equal(t, []string{"alpha", "warning beta"}, lines, path)
	}
}

func TestLogSource_AgeFromContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.log")
	writeFile(t, path, []byte(
		"2024-03-01 10:00:00 start\n"+
			"2024-03-01 11:30:00 processing\n"+
			"  continuation without stamp\n"), time.Time{})

	stamp, err := LogSource{}.Age(context.Background(), Target{
		Locator: path,
		Fields:  map[string]string{"time_layout": "2006-01-02 15:04:05"},
	})

	require.NoError(t, err)
	assert.True(t, stamp.Exists)
	assert.True(t, stamp.AsOf.Equal(time.Date(2024, 3, 1, 11, 30, 0, 0, time.Local)))
}

func TestLogSource_AgeFromContentUnparseable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.log")
	writeFile(t, path, []byte("no stamps here\n"), time.Time{})

	_, err := LogSource{}.Age(context.Background(), Target{
		Locator: path,
		Fields:  map[string]string{"time_layout": "2006-01-02 15:04:05"},
	})

	assert.Error(t, err)
}

func TestLogSource_AgeDefaultsToModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.log")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFile(t, path, []byte("2001-01-01 00:00:00 old stamp\n"), mtime)

	stamp, err := LogSource{}.Age(context.Background(), Target{Locator: path})

	require.NoError(t, err)
	assert.True(t, stamp.AsOf.Equal(mtime))
}

func TestProvider_Sources(t *testing.T) {
	p := NewProvider(nil, nil)

	for _, kind := range Kinds() {
		age, content, err := p.Sources(kind)
		require.NoError(t, err, kind)
		assert.NotNil(t, age)
		assert.NotNil(t, content)
	}

	_, content, _ := p.Sources(KindFile)
	assert.Equal(t, NoContent, content)

	_, _, err := p.Sources(Kind("Ftp"))
	assert.Error(t, err)
}

func TestKind_FileBacked(t *testing.T) {
	assert.True(t, KindFile.FileBacked())
	assert.True(t, KindLog.FileBacked())
	assert.True(t, KindSeries.FileBacked())
	assert.False(t, KindURL.FileBacked())
	assert.False(t, KindDB.FileBacked())
	assert.False(t, Kind("nope").Valid())
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind("db")
	assert.True(t, ok)
	assert.Equal(t, KindDB, kind)

	kind, ok = ParseKind("Series")
	assert.True(t, ok)
	assert.Equal(t, KindSeries, kind)

	_, ok = ParseKind("h5")
	assert.False(t, ok)
}
