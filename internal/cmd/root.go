// Package cmd holds the jobwatch command line.
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobwatch/internal/config"
	"jobwatch/internal/logging"
)

// ErrNotOK is returned by check --fail-on-error when any watch failed.
var ErrNotOK = errors.New("not all watches are OK")

// NewRootCommand builds the jobwatch command tree. Every flag can also be
// set through a JOBWATCH_<FLAG> environment variable.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("jobwatch")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "jobwatch",
		Short:         "Watch job outputs for staleness and errors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if v.GetBool("no-color") {
				color.NoColor = true
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "jobwatch.yaml", "path to configuration file (YAML)")
	flags.String("log-level", "info", "log level (debug logs every check and matched line)")
	flags.String("log-format", "console", "log format: console or json")
	flags.Bool("no-color", false, "disable color output")

	root.AddCommand(newCheckCommand(v), newServeCommand(v), newValidateCommand(v))
	return root
}

// env bundles what every subcommand needs.
type env struct {
	v   *viper.Viper
	cfg config.Config
	log *zap.Logger
}

func setup(v *viper.Viper) (*env, error) {
	log, err := logging.New(v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		return nil, err
	}
	path := v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Debug("config loaded", zap.String("path", path), zap.Int("watches", len(cfg.Watches)))
	return &env{v: v, cfg: cfg, log: log}, nil
}

var dateNowLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006:002:15:04:05",
	"2006:002",
}

// parseDateNow reads the --date-now override, in local time unless the
// value carries a zone.
func parseDateNow(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	for _, layout := range dateNowLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date-now %q: unrecognised time format", raw)
}

