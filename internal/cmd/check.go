package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobwatch/internal/monitor"
	"jobwatch/internal/notify"
	"jobwatch/internal/report"
	"jobwatch/internal/source"
)

func newCheckCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every watch once and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := e.runCheck(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rep)
			if !rep.AllOK && v.GetBool("fail-on-error") {
				return ErrNotOK
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("root-dir", "", "report output directory (overrides root_dir)")
	flags.String("date-now", "", "check as if it were this time (e.g. 2024:123 or 2024-05-02T06:00:00)")
	flags.String("age-unit", "", "display ages in days or hours (overrides age_unit)")
	flags.Bool("status-only", false, "write the report to <root>/status instead of a day directory")
	flags.Bool("no-report", false, "do not write HTML reports")
	flags.Int("max-age", 0, "remove day directories older than this many days (overrides max_report_age_days)")
	flags.Bool("email", false, "mail the status page")
	flags.Bool("email-always", false, "mail even when every watch is OK")
	flags.Bool("fail-on-error", false, "exit non-zero when any watch is not OK")
	return cmd
}

func (e *env) runCheck(ctx context.Context) (report.Report, error) {
	now, err := parseDateNow(e.v.GetString("date-now"))
	if err != nil {
		return report.Report{}, err
	}
	unit := e.cfg.AgeUnit
	if u := e.v.GetString("age-unit"); u != "" {
		unit = u
	}
	if unit != string(report.UnitDays) && unit != string(report.UnitHours) {
		return report.Report{}, fmt.Errorf("age unit %q: want days or hours", unit)
	}

	timeout := time.Duration(e.cfg.CheckTimeoutSeconds) * time.Second
	pool := source.NewDBPool()
	defer pool.Close()
	provider := source.NewProvider(source.DefaultHTTPClient(timeout), pool)

	watches, err := e.cfg.BuildWatches(provider)
	if err != nil {
		return report.Report{}, err
	}

	opts := monitor.Options{
		Concurrency: e.cfg.Concurrency,
		Timeout:     timeout,
		Report:      report.Options{Unit: report.Unit(unit)},
	}
	if _, err := monitor.RunPass(ctx, watches, e.log, opts, now); err != nil {
		return report.Report{}, fmt.Errorf("pass aborted: %w", err)
	}
	rep := report.Build(watches, now, opts.Report)

	statusOnly := e.v.GetBool("status-only")
	if !e.v.GetBool("no-report") {
		if err := e.writeReport(rep, statusOnly); err != nil {
			return rep, err
		}
	}

	if e.v.GetBool("email") && (!rep.AllOK || e.v.GetBool("email-always")) {
		if err := e.mail(ctx, rep, statusOnly); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (e *env) writeReport(rep report.Report, statusOnly bool) error {
	root := e.cfg.RootDir
	if r := e.v.GetString("root-dir"); r != "" {
		root = r
	}
	renderer, err := report.NewRenderer(e.cfg.Title)
	if err != nil {
		return err
	}
	dir, err := renderer.Write(root, rep, statusOnly)
	if err != nil {
		return err
	}
	e.log.Info("report written", zap.String("dir", dir))

	if statusOnly {
		return nil
	}
	maxAge := e.cfg.MaxReportAgeDays
	if m := e.v.GetInt("max-age"); m > 0 {
		maxAge = m
	}
	removed, err := report.Prune(root, rep.GeneratedAt, maxAge)
	if err != nil {
		e.log.Warn("pruning old reports failed", zap.Error(err))
		return nil
	}
	if len(removed) > 0 {
		e.log.Info("pruned old reports", zap.Strings("days", removed))
	}
	return nil
}

func (e *env) mail(ctx context.Context, rep report.Report, statusOnly bool) error {
	renderer, err := report.NewRenderer(e.cfg.Title)
	if err != nil {
		return err
	}
	body, err := renderer.MailBody(rep, e.cfg.PublicURL, statusOnly)
	if err != nil {
		return err
	}
	m := e.cfg.Mail
	mailer := notify.NewMailer(m.Host, m.Port, m.From, m.To)
	subject := notify.Subject(m.Subject, rep)
	if err := mailer.Send(ctx, subject, body, time.Now()); err != nil {
		return err
	}
	e.log.Info("status mailed", zap.String("subject", subject), zap.Strings("to", m.To))
	return nil
}
