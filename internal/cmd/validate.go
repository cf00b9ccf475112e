package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobwatch/internal/source"
)

func newValidateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and build every watch without checking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(v)
			if err != nil {
				return err
			}
			watches, err := e.cfg.BuildWatches(source.NewProvider(nil, nil))
			if err != nil {
				return err
			}

			counts := make(map[source.Kind]int)
			for _, w := range watches {
				counts[w.Type()]++
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d watches OK\n", len(watches))
			for _, kind := range source.Kinds() {
				if counts[kind] > 0 {
					fmt.Fprintf(out, "  %-7s %d\n", kind, counts[kind])
				}
			}
			return nil
		},
	}
}
