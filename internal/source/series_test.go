package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aceSchema = `{
  "type": "record",
  "name": "ace",
  "fields": [
    {"name": "time", "type": "double"},
    {"name": "p3", "type": ["null", "double"]}
  ]
}`

func writeAvroSeries(t *testing.T, path string, times ...float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Schema: aceSchema})
	require.NoError(t, err)
	records := make([]any, 0, len(times))
	for _, ts := range times {
		records = append(records, map[string]any{
			"time": ts,
			"p3":   goavro.Union("double", 1.5),
		})
	}
	require.NoError(t, w.Append(records))
}

func TestSeriesSource_Avro(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ACE.avro")
	writeAvroSeries(t, path, 1700000000, 1700000300, 1700000600)

	stamp, err := SeriesSource{}.Age(context.Background(), Target{Locator: path})

	require.NoError(t, err)
	assert.True(t, stamp.Exists)
	assert.Equal(t, time.Unix(1700000600, 0), stamp.AsOf)
}

func TestSeriesSource_AvroMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ACE.avro")
	writeAvroSeries(t, path, 1700000000)

	_, err := SeriesSource{}.Age(context.Background(), Target{
		Locator: path,
		Fields:  map[string]string{"time_column": "tstop"},
	})

	assert.Error(t, err)
}

func TestSeriesSource_AvroUnionColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ACE.avro")
	writeAvroSeries(t, path, 1700000000)

	stamp, err := SeriesSource{}.Age(context.Background(), Target{
		Locator: path,
		Fields:  map[string]string{"time_column": "p3"},
	})

	require.NoError(t, err)
	assert.Equal(t, time.Unix(1, 500000000), stamp.AsOf)
}

func TestSeriesSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	writeFile(t, path, []byte("id,Time,value\n1,2024-01-01T00:00:00Z,3\n2,2024-01-02T12:00:00Z,4\n"), time.Time{})

	stamp, err := SeriesSource{}.Age(context.Background(), Target{Locator: path})

	require.NoError(t, err)
	assert.True(t, stamp.AsOf.Equal(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))
}

func TestSeriesSource_CSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	writeFile(t, path, []byte("time,value\n"), time.Time{})

	_, err := SeriesSource{}.Age(context.Background(), Target{Locator: path})

	assert.Error(t, err)
}

func TestSeriesSource_Missing(t *testing.T) {
	stamp, err := SeriesSource{}.Age(context.Background(), Target{Locator: filepath.Join(t.TempDir(), "none.avro")})

	require.NoError(t, err)
	assert.False(t, stamp.Exists)
}

func TestSeriesSource_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ACE.avro")
	writeFile(t, path, []byte("not an avro file"), time.Time{})

	_, err := SeriesSource{}.Age(context.Background(), Target{Locator: path})

	assert.Error(t, err)
}

func TestParseTimeValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		format string
		layout string
		want   time.Time
	}{
		{"unix int", int64(10), "", "", time.Unix(10, 0)},
		{"unix float", 10.25, "unix", "", time.Unix(10, 250000000)},
		{"cxcsec", int64(0), "cxcsec", "", cxcEpoch},
		{"numeric string", []byte("20"), "", "", time.Unix(20, 0)},
		{"rfc3339", "2024-02-03T04:05:06Z", "", "", time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)},
		{"layout", "2024:034:04:05:06.000", "", "2006:002:15:04:05.000", time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)},
		{"time", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "", "", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeValue(tt.value, tt.format, tt.layout)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseTimeValue_Errors(t *testing.T) {
	for _, v := range []any{nil, "yesterday", struct{}{}} {
		_, err := ParseTimeValue(v, "", "")
		assert.Error(t, err, "%v", v)
	}
	_, err := ParseTimeValue(int64(1), "julian", "")
	assert.Error(t, err)
}
