// Package watch models one monitored target: its configuration, how its
// locator is resolved and the check that turns it into a Result.
package watch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"jobwatch/internal/pattern"
	"jobwatch/internal/source"
)

// DefaultQuery is used by DB watches that configure no query.
const DefaultQuery = "SELECT MAX({timekey}) AS maxtime FROM {table}"

// Config is the caller-supplied description of a watch.
type Config struct {
	Task    string
	Type    source.Kind
	Locator string
	// MaxAge is the staleness threshold in days. A negative value requires
	// the as-of time to lie at least that many days in the future.
	MaxAge float64
	// ExpectFuture treats MaxAge as a required lead time regardless of sign.
	ExpectFuture bool

	Errors   []string
	Exclude  []string
	Requires []string

	// Fields extend the template context (logdir, basename, table, ...) and
	// carry per-kind parameters such as driver, dsn, query or time_layout.
	Fields map[string]string
}

// Watch is one monitored target. Its configuration never changes after New.
type Watch struct {
	task         string
	kind         source.Kind
	maxAge       float64
	expectFuture bool
	target       source.Target

	errors   pattern.Set
	exclude  pattern.Set
	requires pattern.Set

	age     source.AgeSource
	content source.ContentSource

	result  Result
	checked bool
}

// New validates cfg, compiles its patterns and resolves its locator. Any
// error here is a configuration mistake.
func New(cfg Config, provider *source.Provider) (*Watch, error) {
	if cfg.Task == "" {
		return nil, fmt.Errorf("watch is missing a task name")
	}
	if provider == nil {
		provider = source.NewProvider(nil, nil)
	}
	age, content, err := provider.Sources(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.Task, err)
	}

	errs := cfg.Errors
	if errs == nil && cfg.Type == source.KindLog {
		errs = pattern.DefaultErrors
	}
	w := &Watch{
		task:         cfg.Task,
		kind:         cfg.Type,
		maxAge:       cfg.MaxAge,
		expectFuture: cfg.ExpectFuture,
		age:          age,
		content:      content,
	}
	if w.errors, err = pattern.CompileSet(errs); err != nil {
		return nil, fmt.Errorf("watch %s errors: %w", cfg.Task, err)
	}
	if w.exclude, err = pattern.CompileSet(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("watch %s exclude: %w", cfg.Task, err)
	}
	if w.requires, err = pattern.CompileSet(cfg.Requires); err != nil {
		return nil, fmt.Errorf("watch %s requires: %w", cfg.Task, err)
	}
	if len(w.requires) > 0 && content == source.NoContent {
		return nil, fmt.Errorf("watch %s: type %s has no content to require patterns in", cfg.Task, cfg.Type)
	}

	if w.target, err = resolveTarget(cfg); err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.Task, err)
	}
	return w, nil
}

// fieldContext builds the fixed record templates are resolved against.
func fieldContext(cfg Config) map[string]string {
	ctx := map[string]string{
		"task":     cfg.Task,
		"type":     string(cfg.Type),
		"basename": "",
		"logdir":   "logs",
		"logtask":  cfg.Task,
		"table":    cfg.Task,
		"timekey":  "tstart",
	}
	for k, v := range cfg.Fields {
		ctx[k] = v
	}
	return ctx
}

func resolveTarget(cfg Config) (source.Target, error) {
	fields := fieldContext(cfg)

	tmpl := cfg.Locator
	if cfg.Type == source.KindDB {
		query := fields["query"]
		if query == "" {
			query = DefaultQuery
		}
		resolved, err := Resolve(query, fields)
		if err != nil {
			return source.Target{}, err
		}
		fields["query"] = resolved
		if tmpl == "" {
			tmpl = "{table}"
		}
	}
	if tmpl == "" {
		return source.Target{}, fmt.Errorf("%w: locator is required for type %s", ErrTemplate, cfg.Type)
	}
	locator, err := Resolve(tmpl, fields)
	if err != nil {
		return source.Target{}, err
	}
	return source.Target{Locator: locator, Fields: fields}, nil
}

// Task returns the display name.
func (w *Watch) Task() string { return w.task }

// Type returns the kind, which is also the report grouping key.
func (w *Watch) Type() source.Kind { return w.kind }

// Locator returns the resolved locator.
func (w *Watch) Locator() string { return w.target.Locator }

// MaxAge returns the staleness threshold in days.
func (w *Watch) MaxAge() float64 { return w.maxAge }

// Field returns a value from the resolved template context.
func (w *Watch) Field(name string) string { return w.target.Field(name) }

// Errors returns the configured error expressions.
func (w *Watch) Errors() []string { return w.errors.Strings() }

// Result returns the last check's result and whether a check has run.
func (w *Watch) Result() (Result, bool) { return w.result, w.checked }

func (w *Watch) String() string {
	return fmt.Sprintf("<Watch type=%s task=%s>", w.kind, w.task)
}

func (w *Watch) threshold() float64 {
	if w.expectFuture {
		return -math.Abs(w.maxAge)
	}
	return w.maxAge
}

// Check resolves the target's age and content and scans the content. I/O
// failures never escape: they leave the result with Exists=false and the
// reason in Err. The result is stored on the watch and returned.
func (w *Watch) Check(ctx context.Context, log *zap.Logger, now time.Time) Result {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("task", w.task), zap.String("type", string(w.kind)), zap.String("locator", w.target.Locator))
	log.Debug("checking watch")

	res := w.check(ctx, log, now)
	w.result = res
	w.checked = true

	log.Debug("checked watch",
		zap.Bool("ok", res.OK()),
		zap.Bool("exists", res.Exists),
		zap.Bool("stale", res.Stale),
		zap.Int("errors", len(res.Found)),
		zap.Strings("missing", res.Missing),
	)
	return res
}

func (w *Watch) check(ctx context.Context, log *zap.Logger, now time.Time) Result {
	res := Result{Locator: w.target.Locator, CheckedAt: now}

	var (
		lines     []string
		linesRead bool
		stamp     source.Stamp
		err       error
	)
	if ls, ok := w.age.(source.LineStamper); ok && ls.UsesContent(w.target) {
		stamp, lines, err = w.stampFromContent(ctx, ls)
		linesRead = stamp.Exists
	} else {
		stamp, err = w.age.Age(ctx, w.target)
	}
	if err != nil {
		log.Warn("target unavailable", zap.Error(err))
		res.Err = err.Error()
		return res
	}
	if !stamp.Exists {
		res.Err = "not found"
		return res
	}
	res.Exists = true
	res.AsOf = stamp.AsOf
	res.Age = now.Sub(stamp.AsOf).Hours() / 24

	if w.kind.FileBacked() && source.Exists(w.target.Locator+".OK") {
		log.Info("target acknowledged by .OK marker")
		res.Acknowledged = true
		return res
	}

	res.Stale = res.Age > w.threshold()

	if !linesRead {
		if lines, err = w.content.Lines(ctx, w.target); err != nil {
			log.Warn("content unreadable", zap.Error(err))
			return Result{Locator: w.target.Locator, CheckedAt: now, Err: err.Error()}
		}
	}
	res.Lines = lines
	res.Found, res.Missing = pattern.Scan(lines, w.errors, w.exclude, w.requires)

	if log.Core().Enabled(zap.DebugLevel) {
		for _, f := range res.Found {
			log.Debug("matched error line", zap.Int("line", f.Line), zap.String("pattern", f.Pattern), zap.String("text", f.Text))
		}
	}
	return res
}

// stampFromContent reads the content once and dates the target from it.
func (w *Watch) stampFromContent(ctx context.Context, ls source.LineStamper) (source.Stamp, []string, error) {
	if !source.Exists(w.target.Locator) {
		return source.Stamp{}, nil, nil
	}
	lines, err := w.content.Lines(ctx, w.target)
	if err != nil {
		return source.Stamp{}, nil, err
	}
	stamp, err := ls.StampFromLines(w.target, lines)
	if err != nil {
		return source.Stamp{}, nil, err
	}
	return stamp, lines, nil
}
