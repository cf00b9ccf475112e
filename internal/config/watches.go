package config

import (
	"fmt"
	"os"

	"jobwatch/internal/source"
	"jobwatch/internal/watch"
)

// WatchConfig turns the configuration of w into a watch.Config.
func (c *Config) WatchConfig(w Watch) (watch.Config, error) {
	errs := w.Errors
	if w.ErrorSet != "" {
		var err error
		if errs, err = c.ResolveErrorSet(w.ErrorSet); err != nil {
			return watch.Config{}, err
		}
	}

	kind, ok := source.ParseKind(w.Type)
	if !ok {
		return watch.Config{}, invalid("unknown type %q", w.Type)
	}

	fields := make(map[string]string, len(w.Fields)+3)
	for k, v := range w.Fields {
		fields[k] = v
	}
	if kind == source.KindDB {
		driver, dsn := w.Driver, w.DSN
		if db, ok := c.Databases[w.Database]; ok {
			if driver == "" {
				driver = db.Driver
			}
			if dsn == "" {
				dsn = db.DSN
			}
		}
		fields["driver"] = driver
		fields["dsn"] = os.ExpandEnv(dsn)
		if w.Query != "" {
			fields["query"] = w.Query
		}
	}

	return watch.Config{
		Task:         w.Task,
		Type:         kind,
		Locator:      w.Locator,
		MaxAge:       w.MaxAgeDays(),
		ExpectFuture: w.ExpectFuture,
		Errors:       errs,
		Exclude:      w.Exclude,
		Requires:     w.Requires,
		Fields:       fields,
	}, nil
}

// BuildWatches constructs every configured watch in declaration order.
// Nothing is checked; any error is a configuration mistake.
func (c *Config) BuildWatches(provider *source.Provider) ([]*watch.Watch, error) {
	watches := make([]*watch.Watch, 0, len(c.Watches))
	for i, w := range c.Watches {
		wc, err := c.WatchConfig(w)
		if err != nil {
			return nil, fmt.Errorf("watch %d (%s): %w", i, w.Task, err)
		}
		built, err := watch.New(wc, provider)
		if err != nil {
			return nil, fmt.Errorf("%w: watch %d: %w", ErrInvalidConfig, i, err)
		}
		watches = append(watches, built)
	}
	return watches, nil
}
