package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobwatch/internal/pattern"
	"jobwatch/internal/source"
)

const sample = `
root_dir: /tmp/reports
age_unit: hours
concurrency: 4
public_url: https://example.org/status
mail:
  from: jobwatch@example.org
  to: [ops@example.org]
databases:
  stats:
    driver: sqlite3
    dsn: /data/stats.db3
error_sets:
  quiet:
    base: default
    remove: [warn]
  strict:
    base: quiet
    add: ["(?<!5OHW)FAIL(?!MODE)"]
watches:
  - task: arc
    type: log
    locator: /data/{task}/{logdir}/daily.0/{logtask}.log
    max_age_hours: 12
    error_set: quiet
  - task: acis
    type: file
    locator: /data/acis/{basename}index.html
    max_age: 2
  - task: starcheck
    type: db
    database: stats
    fields:
      timekey: mp_starcat_time
  - task: plan
    type: series
    locator: /data/plan.avro
    max_age: 3
    expect_future: true
  - task: silent
    type: log
    locator: /data/silent.log
    errors: []
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reports", cfg.RootDir)
	assert.Equal(t, "hours", cfg.AgeUnit)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30, cfg.CheckTimeoutSeconds)
	assert.Equal(t, 30, cfg.MaxReportAgeDays)
	assert.Equal(t, 25, cfg.Mail.Port)
	assert.Len(t, cfg.Watches, 5)

	assert.Equal(t, 0.5, cfg.Watches[0].MaxAgeDays())
	assert.Equal(t, 2.0, cfg.Watches[1].MaxAgeDays())
	assert.Equal(t, 1.0, cfg.Watches[2].MaxAgeDays())
	assert.NotNil(t, cfg.Watches[4].Errors)
	assert.Empty(t, cfg.Watches[4].Errors)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveErrorSet(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	quiet, err := cfg.ResolveErrorSet("quiet")
	require.NoError(t, err)
	assert.Equal(t, []string{"error", "fail", "fatal", "exception", "traceback"}, quiet)

	strict, err := cfg.ResolveErrorSet("strict")
	require.NoError(t, err)
	assert.Equal(t, "(?<!5OHW)FAIL(?!MODE)", strict[len(strict)-1])

	def, err := cfg.ResolveErrorSet(DefaultErrorSet)
	require.NoError(t, err)
	assert.Equal(t, pattern.DefaultErrors, def)

	_, err = cfg.ResolveErrorSet("nope")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]string{
		"no watches":     "root_dir: /tmp\n",
		"unknown type":   "watches:\n  - {task: a, type: h5, locator: x}\n",
		"no task":        "watches:\n  - {type: file, locator: x}\n",
		"both max ages":  "watches:\n  - {task: a, type: file, locator: x, max_age: 1, max_age_hours: 2}\n",
		"unknown set":    "watches:\n  - {task: a, type: log, locator: x, error_set: loud}\n",
		"set and errors": "watches:\n  - {task: a, type: log, locator: x, error_set: default, errors: [x]}\n",
		"unknown db":     "watches:\n  - {task: a, type: db, database: stats}\n",
		"db no dsn":      "watches:\n  - {task: a, type: db}\n",
		"bad driver":     "databases:\n  s: {driver: oracle, dsn: x}\nwatches:\n  - {task: a, type: file, locator: x}\n",
		"bad unit":       "age_unit: weeks\nwatches:\n  - {task: a, type: file, locator: x}\n",
		"set cycle":      "error_sets:\n  a: {base: b}\n  b: {base: a}\nwatches:\n  - {task: a, type: file, locator: x}\n",
		"bad yaml":       "watches: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBuildWatches(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	watches, err := cfg.BuildWatches(source.NewProvider(nil, nil))
	require.NoError(t, err)
	require.Len(t, watches, 5)

	arc := watches[0]
	assert.Equal(t, "/data/arc/logs/daily.0/arc.log", arc.Locator())
	assert.Equal(t, 0.5, arc.MaxAge())
	assert.NotContains(t, arc.Errors(), "warn")

	assert.Equal(t, "/data/acis/index.html", watches[1].Locator())

	db := watches[2]
	assert.Equal(t, source.KindDB, db.Type())
	assert.Equal(t, "sqlite3", db.Field("driver"))
	assert.Equal(t, "/data/stats.db3", db.Field("dsn"))
	assert.Equal(t, "SELECT MAX(mp_starcat_time) AS maxtime FROM starcheck", db.Field("query"))

	assert.Empty(t, watches[4].Errors())
}

func TestBuildWatches_BadPattern(t *testing.T) {
	cfg, err := Parse([]byte("watches:\n  - {task: a, type: log, locator: x, errors: ['(unclosed']}\n"))
	require.NoError(t, err)

	_, err = cfg.BuildWatches(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, pattern.ErrInvalidPattern)
}

func TestBuildWatches_BadPlaceholder(t *testing.T) {
	cfg, err := Parse([]byte("watches:\n  - {task: a, type: file, locator: '/data/{nope}'}\n"))
	require.NoError(t, err)

	_, err = cfg.BuildWatches(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWatchFile_Reload(t *testing.T) {
	path := writeConfig(t, sample)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, zaptest.NewLogger(t), func(cfg Config) { reloaded <- cfg })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("watches: [oops\n"), 0o644))
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("watches:\n  - {task: only, type: file, locator: /x}\n"), 0o644))

	select {
	case cfg := <-reloaded:
		require.Len(t, cfg.Watches, 1)
		assert.Equal(t, "only", cfg.Watches[0].Task)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}
