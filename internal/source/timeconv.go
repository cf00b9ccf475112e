package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// cxcEpoch is 1998-01-01T00:00:00 TT expressed in UTC.
var cxcEpoch = time.Date(1997, 12, 31, 23, 58, 55, 816000000, time.UTC)

var stringLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006:002:15:04:05.999",
	"2006-01-02",
}

// ParseTimeValue turns a database or series cell into a time. Numbers are
// seconds since the epoch named by format: "unix" (default) or "cxcsec".
// Strings are tried against layout first, then a few common layouts.
func ParseTimeValue(v any, format, layout string) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("null time value")
	case time.Time:
		return x, nil
	case int64:
		return fromSeconds(float64(x), format)
	case int32:
		return fromSeconds(float64(x), format)
	case int:
		return fromSeconds(float64(x), format)
	case float64:
		return fromSeconds(x, format)
	case float32:
		return fromSeconds(float64(x), format)
	case []byte:
		return parseTimeString(string(x), format, layout)
	case string:
		return parseTimeString(x, format, layout)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value of type %T", v)
	}
}

func fromSeconds(secs float64, format string) (time.Time, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("invalid time value %v", secs)
	}
	whole, frac := math.Modf(secs)
	switch strings.ToLower(format) {
	case "", "unix":
		return time.Unix(int64(whole), int64(frac*1e9)), nil
	case "cxcsec":
		return cxcEpoch.Add(time.Duration(whole)*time.Second + time.Duration(frac*1e9)), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time format %q", format)
	}
}

func parseTimeString(s, format, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if layout != "" {
		return time.ParseInLocation(layout, s, time.Local)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSeconds(f, format)
	}
	for _, l := range stringLayouts {
		if ts, err := time.ParseInLocation(l, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
