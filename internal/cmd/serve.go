package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobwatch/internal/config"
	"jobwatch/internal/metrics"
	"jobwatch/internal/monitor"
	"jobwatch/internal/report"
	"jobwatch/internal/server"
	"jobwatch/internal/source"
	"jobwatch/internal/storage"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Check watches on an interval and serve status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return e.serve(ctx)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", ":8080", "address for the web server")
	flags.Int("interval", 0, "minutes between passes (overrides interval_minutes)")
	flags.Bool("no-reload", false, "do not reload the configuration file when it changes")
	return cmd
}

func (e *env) serve(ctx context.Context) error {
	cfg := e.cfg
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if m := e.v.GetInt("interval"); m > 0 {
		interval = time.Duration(m) * time.Minute
	}
	timeout := time.Duration(cfg.CheckTimeoutSeconds) * time.Second

	pool := source.NewDBPool()
	defer pool.Close()
	provider := source.NewProvider(source.DefaultHTTPClient(timeout), pool)

	watches, err := cfg.BuildWatches(provider)
	if err != nil {
		return err
	}

	historyPath := filepath.Join(cfg.DataDirectory, "status_history.json")
	store, err := storage.NewStatusStorage(historyPath, 0)
	if err != nil {
		return err
	}
	renderer, err := report.NewRenderer(cfg.Title)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector()
	srv := server.New(e.v.GetString("addr"), store, collector.Registry(), cfg.RootDir)

	onPass := func(_ context.Context, rep report.Report, took time.Duration) error {
		collector.Observe(rep, took)
		if _, err := renderer.Write(cfg.RootDir, rep, true); err != nil {
			e.log.Warn("writing status page failed", zap.Error(err))
		}
		if err := store.Append(rep.Entry()); err != nil {
			return err
		}
		srv.Publish()
		return nil
	}

	opts := monitor.Options{
		Concurrency: cfg.Concurrency,
		Timeout:     timeout,
		Report:      report.Options{Unit: report.Unit(cfg.AgeUnit)},
	}
	mon := monitor.New(interval, watches, opts, e.log, onPass)
	mon.Start()
	defer mon.Stop()

	if !e.v.GetBool("no-reload") {
		go func() {
			err := config.WatchFile(ctx, e.v.GetString("config"), e.log, func(next config.Config) {
				built, err := next.BuildWatches(provider)
				if err != nil {
					e.log.Warn("reloaded config has invalid watches, keeping previous", zap.Error(err))
					return
				}
				mon.SetWatches(built)
			})
			if err != nil {
				e.log.Warn("config reload disabled", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.log.Warn("server shutdown", zap.Error(err))
		}
	}()

	e.log.Info("jobwatch listening",
		zap.String("addr", e.v.GetString("addr")),
		zap.Duration("interval", interval),
		zap.Int("watches", len(watches)),
	)
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
