// Package pattern compiles the case-insensitive expressions a watch scans
// its content with and implements the line scan itself.
package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single expression evaluation against one line.
const matchTimeout = 2 * time.Second

// ErrInvalidPattern is returned when a configured expression does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern is one compiled, case-insensitive search expression.
type Pattern struct {
	source string
	re     *regexp2.Regexp
}

// Compile builds a Pattern. The syntax accepts lookahead and lookbehind so
// configurations such as `(?<!5OHW)FAIL(?!MODE)` keep working.
func Compile(expr string) (Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w %q: %v", ErrInvalidPattern, expr, err)
	}
	re.MatchTimeout = matchTimeout
	return Pattern{source: expr, re: re}, nil
}

// String returns the expression as configured.
func (p Pattern) String() string {
	return p.source
}

// Match reports whether the expression is found anywhere in line. An
// evaluation that exceeds the match timeout counts as no match.
func (p Pattern) Match(line string) bool {
	if p.re == nil {
		return false
	}
	ok, err := p.re.MatchString(line)
	return err == nil && ok
}

// Set is an ordered collection of patterns. Order is declaration order and
// decides the order of findings that share a line.
type Set []Pattern

// CompileSet compiles every expression, failing on the first bad one.
func CompileSet(exprs []string) (Set, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	set := make(Set, 0, len(exprs))
	for _, expr := range exprs {
		p, err := Compile(expr)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MustCompileSet is CompileSet for expressions known at build time.
func MustCompileSet(exprs ...string) Set {
	set, err := CompileSet(exprs)
	if err != nil {
		panic(err)
	}
	return set
}

// Any reports whether at least one pattern in the set matches line.
func (s Set) Any(line string) bool {
	for _, p := range s {
		if p.Match(line) {
			return true
		}
	}
	return false
}

// Strings returns the configured expressions in order.
func (s Set) Strings() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.source
	}
	return out
}
