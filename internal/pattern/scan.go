package pattern

import "sort"

// Finding is one error line: its 0-based index, its text and the error
// expression that matched it.
type Finding struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Pattern string `json:"pattern"`
}

// Scan walks lines once. A line produces one Finding per error pattern it
// matches, unless any exclude pattern also matches that same line. Required
// patterns that never match any line are returned sorted as missing.
func Scan(lines []string, errs, exclude, requires Set) ([]Finding, []string) {
	var found []Finding
	seen := make([]bool, len(requires))

	for i, line := range lines {
		if len(errs) > 0 {
			var excluded, checked bool
			for _, p := range errs {
				if !p.Match(line) {
					continue
				}
				if !checked {
					excluded = exclude.Any(line)
					checked = true
				}
				if excluded {
					break
				}
				found = append(found, Finding{Line: i, Text: line, Pattern: p.source})
			}
		}
		for j, p := range requires {
			if !seen[j] && p.Match(line) {
				seen[j] = true
			}
		}
	}

	var missing []string
	dedup := make(map[string]struct{})
	for j, p := range requires {
		if seen[j] {
			continue
		}
		if _, ok := dedup[p.source]; ok {
			continue
		}
		dedup[p.source] = struct{}{}
		missing = append(missing, p.source)
	}
	sort.Strings(missing)
	return found, missing
}
