package watch

import (
	"time"

	"jobwatch/internal/pattern"
)

// Result is the outcome of one Check. It is never modified after Check
// returns it.
type Result struct {
	Locator   string
	CheckedAt time.Time

	Exists bool
	AsOf   time.Time
	// Age is in days and only meaningful when Exists.
	Age   float64
	Stale bool
	// Acknowledged is set when an operator dropped a <locator>.OK file next
	// to the target; scanning and staleness are skipped.
	Acknowledged bool

	Found   []pattern.Finding
	Missing []string
	Lines   []string

	// Err describes why the target was unavailable, if it was.
	Err string
}

// OK is the go/no-go verdict.
func (r Result) OK() bool {
	return r.Exists && !r.Stale && len(r.Missing) == 0 && len(r.Found) == 0
}
