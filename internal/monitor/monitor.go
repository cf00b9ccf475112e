// Package monitor runs passes over a set of watches, either once or on an
// interval.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobwatch/internal/report"
	"jobwatch/internal/watch"
)

const (
	DefaultConcurrency = 8
	DefaultTimeout     = 30 * time.Second
)

// Options bound a pass.
type Options struct {
	Concurrency int
	// Timeout applies to each watch's check separately.
	Timeout time.Duration
	Report  report.Options
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// RunPass checks every watch once and returns the results in input order.
// A failing target only marks its own result. If ctx ends before the pass
// completes, RunPass returns ctx.Err() and no results.
func RunPass(ctx context.Context, watches []*watch.Watch, log *zap.Logger, opts Options, now time.Time) ([]watch.Result, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	results := make([]watch.Result, len(watches))
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, w := range watches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
			results[i] = w.Check(checkCtx, log, now)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// PassFunc receives the report of every completed pass.
type PassFunc func(ctx context.Context, rep report.Report, took time.Duration) error

// Monitor periodically checks its watches and hands each report on.
type Monitor struct {
	interval time.Duration
	opts     Options
	log      *zap.Logger
	onPass   PassFunc
	now      func() time.Time

	mu      sync.Mutex
	watches []*watch.Watch

	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a monitor for the given watches and interval.
func New(interval time.Duration, watches []*watch.Watch, opts Options, log *zap.Logger, onPass PassFunc) *Monitor {
	if interval < time.Minute {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Monitor{
		interval: interval,
		opts:     opts.withDefaults(),
		log:      log,
		onPass:   onPass,
		now:      time.Now,
		watches:  watches,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetWatches replaces the watch list used from the next pass on.
func (m *Monitor) SetWatches(watches []*watch.Watch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches = watches
}

// Watches returns the current watch list.
func (m *Monitor) Watches() []*watch.Watch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watches
}

// Start launches the monitoring loop in a goroutine.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

// Stop cancels a running pass, ends the loop and waits until it is done.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	if m.cancel != nil {
		m.cancel()
	}
	<-m.doneCh
}

// RunOnce executes a single pass and returns its report.
func (m *Monitor) RunOnce(ctx context.Context) (report.Report, error) {
	watches := m.Watches()
	start := m.now()

	if _, err := RunPass(ctx, watches, m.log, m.opts, start); err != nil {
		return report.Report{}, err
	}
	rep := report.Build(watches, start, m.opts.Report)
	took := time.Since(start)

	m.log.Info("pass complete",
		zap.Int("watches", len(rep.Rows)),
		zap.Bool("all_ok", rep.AllOK),
		zap.Duration("took", took),
	)
	if m.onPass != nil {
		if err := m.onPass(ctx, rep, took); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	if _, err := m.RunOnce(ctx); err != nil {
		m.log.Error("initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.log.Error("monitor tick failed", zap.Error(err))
			}
		case <-m.stopCh:
			return
		}
	}
}
