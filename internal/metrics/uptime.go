package metrics

import (
	"math"
	"sort"
	"time"

	"jobwatch/internal/models"
)

// WatchUptime summarises how often a watch was OK over the history.
type WatchUptime struct {
	Task          string  `json:"task"`
	Type          string  `json:"type"`
	Locator       string  `json:"locator"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int     `json:"total_checks"`
	Passing       int     `json:"passing"`
	Failing       int     `json:"failing"`
	LastOK        bool    `json:"last_ok"`
	LastAge       string  `json:"last_age,omitempty"`
	LastUpdated   string  `json:"last_updated,omitempty"`
}

type watchKey struct {
	task    string
	kind    string
	locator string
}

// ComputeWatchUptime aggregates OK rates per watch from history entries,
// ordered by task, then type.
func ComputeWatchUptime(entries []models.StatusEntry) []WatchUptime {
	type acc struct {
		passing  int
		failing  int
		lastOK   bool
		lastAge  string
		lastTime time.Time
	}
	state := make(map[watchKey]*acc)
	for _, entry := range entries {
		for _, check := range entry.Checks {
			key := watchKey{task: check.Task, kind: check.Type, locator: check.Locator}
			target := state[key]
			if target == nil {
				target = &acc{}
				state[key] = target
			}
			if check.OK {
				target.passing++
			} else {
				target.failing++
			}
			if !entry.Timestamp.Before(target.lastTime) {
				target.lastOK = check.OK
				target.lastAge = check.AgeDisplay
				target.lastTime = entry.Timestamp
			}
		}
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]watchKey, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].task != keys[j].task {
			return keys[i].task < keys[j].task
		}
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].locator < keys[j].locator
	})

	results := make([]WatchUptime, 0, len(keys))
	for _, key := range keys {
		data := state[key]
		total := data.passing + data.failing
		uptime := 0.0
		if total > 0 {
			uptime = float64(data.passing) / float64(total) * 100
		}

		result := WatchUptime{
			Task:          key.task,
			Type:          key.kind,
			Locator:       key.locator,
			UptimePercent: round2(uptime),
			TotalChecks:   total,
			Passing:       data.passing,
			Failing:       data.failing,
			LastOK:        data.lastOK,
			LastAge:       data.lastAge,
		}
		if !data.lastTime.IsZero() {
			result.LastUpdated = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
