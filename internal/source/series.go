package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/linkedin/goavro/v2"
)

const defaultTimeColumn = "time"

// SeriesSource ages a structured time series by the time column of its last
// record. Avro object container files (.avro) and CSV files with a header
// row are supported.
type SeriesSource struct{}

// Age implements AgeSource.
func (SeriesSource) Age(ctx context.Context, t Target) (Stamp, error) {
	if !Exists(t.Locator) {
		return Stamp{}, nil
	}
	column := t.Field("time_column")
	if column == "" {
		column = defaultTimeColumn
	}

	f, err := os.Open(t.Locator)
	if err != nil {
		return Stamp{}, fmt.Errorf("open %s: %w", t.Locator, err)
	}
	defer f.Close()

	var value any
	switch strings.ToLower(filepath.Ext(t.Locator)) {
	case ".avro":
		value, err = lastAvroValue(ctx, f, column)
	default:
		value, err = lastCSVValue(ctx, f, column)
	}
	if err != nil {
		return Stamp{}, fmt.Errorf("%s: %w", t.Locator, err)
	}

	asOf, err := ParseTimeValue(value, t.Field("time_format"), t.Field("time_layout"))
	if err != nil {
		return Stamp{}, fmt.Errorf("%s: %w", t.Locator, err)
	}
	return Stamp{Exists: true, AsOf: asOf}, nil
}

func lastAvroValue(ctx context.Context, r io.Reader, column string) (any, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("read avro container: %w", err)
	}
	var last any
	var n int
	for ocf.Scan() {
		if n%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n++
		datum, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("read avro record: %w", err)
		}
		last = datum
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("read avro container: %w", err)
	}
	if last == nil {
		return nil, errors.New("series has no records")
	}
	record, ok := last.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("avro record is %T, not a record", last)
	}
	value, ok := record[column]
	if !ok {
		return nil, fmt.Errorf("no column %q", column)
	}
	// Unions decode as a single-entry map keyed by the branch type.
	if union, ok := value.(map[string]any); ok && len(union) == 1 {
		for _, v := range union {
			value = v
		}
	}
	return value, nil
}

func lastCSVValue(ctx context.Context, r io.Reader, column string) (any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", column)
	}

	var last string
	var found bool
	for n := 0; ; n++ {
		if n%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if idx < len(rec) {
			last = rec[idx]
			found = true
		}
	}
	if !found {
		return nil, errors.New("series has no records")
	}
	return last, nil
}
