package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Prune removes day bucket directories under root whose day lies more than
// maxAgeDays before now. Directories not named like a bucket are kept. It
// returns the removed bucket names in ascending order.
func Prune(root string, now time.Time, maxAgeDays int) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report root: %w", err)
	}

	cutoff := startOfDay(now).AddDate(0, 0, -maxAgeDays)
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != len(BucketLayout) {
			continue
		}
		day, err := time.ParseInLocation(BucketLayout, e.Name(), now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	sort.Strings(removed)
	return removed, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
