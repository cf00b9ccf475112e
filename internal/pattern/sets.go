package pattern

// DefaultErrors is the error set applied to log watches that configure none.
var DefaultErrors = []string{"error", "warn", "fail", "fatal", "exception", "traceback"}

// Derive returns base without the expressions in remove, followed by the
// expressions in add. Order is kept and duplicates are dropped.
func Derive(base, remove, add []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}

	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]struct{}, len(base)+len(add))
	push := func(expr string) {
		if _, ok := seen[expr]; ok {
			return
		}
		seen[expr] = struct{}{}
		out = append(out, expr)
	}
	for _, b := range base {
		if _, ok := drop[b]; ok {
			continue
		}
		push(b)
	}
	for _, a := range add {
		push(a)
	}
	return out
}
