package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const maxLineBytes = 16 << 20

var _ LineStamper = LogSource{}

// LogSource reads a text log. Its age is the file's modification time,
// unless the target sets the "time_layout" field, in which case the age is
// taken from the timestamp that prefixes the last stamped line.
type LogSource struct{}

// Age implements AgeSource.
func (s LogSource) Age(ctx context.Context, t Target) (Stamp, error) {
	layout := t.Field("time_layout")
	if layout == "" {
		return statStamp(t.Locator)
	}
	if !Exists(t.Locator) {
		return Stamp{}, nil
	}
	lines, err := s.Lines(ctx, t)
	if err != nil {
		return Stamp{}, err
	}
	return s.StampFromLines(t, lines)
}

// UsesContent implements LineStamper.
func (LogSource) UsesContent(t Target) bool {
	return t.Field("time_layout") != ""
}

// StampFromLines implements LineStamper.
func (LogSource) StampFromLines(t Target, lines []string) (Stamp, error) {
	asOf, err := LastStamp(lines, t.Field("time_layout"), time.Local)
	if err != nil {
		return Stamp{}, fmt.Errorf("%s: %w", t.Locator, err)
	}
	return Stamp{Exists: true, AsOf: asOf}, nil
}

// Lines implements ContentSource. Files ending in .gz or .zst are
// decompressed on the fly.
func (LogSource) Lines(ctx context.Context, t Target) ([]string, error) {
	rc, err := openLog(t.Locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var lines []string
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(lines)%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Locator, err)
	}
	return lines, nil
}

// LastStamp returns the time parsed from the newest line that starts with a
// timestamp in layout.
func LastStamp(lines []string, layout string, loc *time.Location) (time.Time, error) {
	width := len(layout)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if len(line) < width {
			continue
		}
		ts, err := time.ParseInLocation(layout, line[:width], loc)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("no timestamped line found")
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return multiCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		return multiCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, f}}, nil
	default:
		return f, nil
	}
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
