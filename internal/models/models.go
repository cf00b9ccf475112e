package models

import (
	"time"
)

// WatchStatus is the summary record of one checked watch.
type WatchStatus struct {
	Task            string     `json:"task"`
	Type            string     `json:"type"`
	Locator         string     `json:"locator"`
	OK              bool       `json:"ok"`
	Exists          bool       `json:"exists"`
	Stale           bool       `json:"stale"`
	Acknowledged    bool       `json:"acknowledged,omitempty"`
	AgeDays         *float64   `json:"age_days,omitempty"`
	AgeDisplay      string     `json:"age_display"`
	MaxAgeDays      float64    `json:"max_age_days"`
	AsOf            *time.Time `json:"as_of,omitempty"`
	ErrorCount      int        `json:"error_count"`
	ErrorSummary    string     `json:"error_summary,omitempty"`
	MissingRequires []string   `json:"missing_requires,omitempty"`
	Error           *string    `json:"error,omitempty"`
}

// StatusEntry stores the summaries of one pass.
type StatusEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	AllOK     bool          `json:"all_ok"`
	Checks    []WatchStatus `json:"checks"`
}

// Failing returns the tasks that were not OK, in pass order.
func (e StatusEntry) Failing() []string {
	var out []string
	for _, c := range e.Checks {
		if !c.OK {
			out = append(out, c.Task)
		}
	}
	return out
}
