package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobwatch/internal/pattern"
	"jobwatch/internal/source"
	"jobwatch/internal/watch"
)

func writeFile(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func checked(t *testing.T, now time.Time, cfgs ...watch.Config) []*watch.Watch {
	t.Helper()
	provider := source.NewProvider(nil, nil)
	out := make([]*watch.Watch, 0, len(cfgs))
	for _, cfg := range cfgs {
		w, err := watch.New(cfg, provider)
		require.NoError(t, err)
		w.Check(context.Background(), zap.NewNop(), now)
		out = append(out, w)
	}
	return out
}

func TestBuild_SectionBreaks(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	path := writeFile(t, dir, "a.log", "fine\n", now)

	cfg := func(task string, kind source.Kind) watch.Config {
		return watch.Config{Task: task, Type: kind, Locator: path, MaxAge: 1}
	}
	watches := checked(t, now,
		cfg("a", source.KindFile),
		cfg("b", source.KindFile),
		cfg("c", source.KindLog),
		cfg("d", source.KindLog),
		cfg("e", source.KindFile),
	)

	rep := Build(watches, now, Options{})
	require.Len(t, rep.Rows, 5)

	var breaks []bool
	var tasks []string
	for _, row := range rep.Rows {
		breaks = append(breaks, row.SectionBreak)
		tasks = append(tasks, row.Task)
	}
	assert.Equal(t, []bool{false, false, true, false, true}, breaks)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, tasks)
	assert.Equal(t, 2, rep.Sections())
	assert.True(t, rep.AllOK)
}

func TestBuild_Rows(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	fresh := writeFile(t, dir, "fresh.log", "start\nERROR: disk 'full'\nend\n", now.Add(-12*time.Hour))
	stale := writeFile(t, dir, "stale.dat", "", now.Add(-3*24*time.Hour))

	watches := checked(t, now,
		watch.Config{Task: "fresh", Type: source.KindLog, Locator: fresh, MaxAge: 1},
		watch.Config{Task: "stale", Type: source.KindFile, Locator: stale, MaxAge: 1},
		watch.Config{Task: "gone", Type: source.KindFile, Locator: filepath.Join(dir, "missing"), MaxAge: 1},
	)

	rep := Build(watches, now, Options{})
	assert.False(t, rep.AllOK)

	row := rep.Rows[0]
	assert.False(t, row.OK)
	assert.Equal(t, "0.50", row.AgeDisplay)
	assert.False(t, row.Highlight)
	assert.Equal(t, 1, row.ErrorCount)
	assert.Equal(t, "ERROR: disk full", row.ErrorSummary)
	assert.Equal(t, "log0.html", row.DetailName)
	require.Len(t, row.Lines, 3)
	assert.True(t, row.Lines[1].Error)
	assert.False(t, row.Lines[0].Error)

	row = rep.Rows[1]
	assert.False(t, row.OK)
	assert.True(t, row.Highlight)
	assert.Equal(t, "3.00", row.AgeDisplay)
	assert.Empty(t, row.ErrorSummary)

	row = rep.Rows[2]
	assert.False(t, row.OK)
	assert.False(t, row.Exists)
	assert.Equal(t, "None", row.AgeDisplay)
	assert.Nil(t, row.AgeDays)
	assert.Nil(t, row.AsOf)
}

func TestBuild_HoursUnit(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	path := writeFile(t, dir, "hourly.dat", "", now.Add(-90*time.Minute))

	rep := Build(checked(t, now,
		watch.Config{Task: "hourly", Type: source.KindFile, Locator: path, MaxAge: 1},
	), now, Options{Unit: UnitHours})
	assert.Equal(t, "1.50", rep.Rows[0].AgeDisplay)
}

func TestBuild_UncheckedWatchIsMissing(t *testing.T) {
	w, err := watch.New(watch.Config{Task: "x", Type: source.KindFile, Locator: "/nowhere"}, source.NewProvider(nil, nil))
	require.NoError(t, err)

	rep := Build([]*watch.Watch{w}, time.Now(), Options{})
	assert.False(t, rep.AllOK)
	assert.Equal(t, "None", rep.Rows[0].AgeDisplay)
}

func TestBuild_Empty(t *testing.T) {
	rep := Build(nil, time.Now(), Options{})
	assert.True(t, rep.AllOK)
	assert.Empty(t, rep.Rows)
}

func TestSummarize(t *testing.T) {
	found := make([]pattern.Finding, 0, 13)
	for i := 0; i < 13; i++ {
		found = append(found, pattern.Finding{Line: i, Text: fmt.Sprintf("  error \"%d\"  ", i), Pattern: "error"})
	}

	got := Summarize(found, 10)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "error 0", lines[0])
	assert.Equal(t, "error 9", lines[9])
	assert.Equal(t, "AND 3 MORE", lines[10])

	assert.Equal(t, "error 0\nerror 1", Summarize(found[:2], 10))
}

func TestReport_Entry(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	path := writeFile(t, dir, "ok.dat", "", now)

	rep := Build(checked(t, now,
		watch.Config{Task: "ok", Type: source.KindFile, Locator: path, MaxAge: 1},
		watch.Config{Task: "bad", Type: source.KindFile, Locator: filepath.Join(dir, "nope"), MaxAge: 1},
	), now, Options{})

	entry := rep.Entry()
	assert.False(t, entry.AllOK)
	require.Len(t, entry.Checks, 2)
	assert.Equal(t, "ok", entry.Checks[0].Task)
	assert.Equal(t, []string{"bad"}, entry.Failing())
	assert.Equal(t, time.UTC, entry.Timestamp.Location())
}
