package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
)

func runCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and check its expectations",
		Long: `Run loads a scenario, executes its steps against a fresh store and
prints every write, read and notification.

The command fails when any read does not match its expect: entry or when a
step returns an error.

Examples:
  atomctl run counter.yaml
  atomctl run --json counter.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, args[0])
			if err != nil {
				return err
			}

			store := atom.NewStore(env.storeOptions()...)
			report := env.program.Run(store, cmd.OutOrStdout())
			defer report.Close()

			if !report.Failed() {
				success(cmd, "%s: %d steps passed", report.Scenario, len(env.program.Scenario.Steps))
				return nil
			}
			for _, d := range report.Failures {
				if jsonOutput {
					fmt.Fprintln(cmd.ErrOrStderr(), d.FormatJSON())
				} else {
					errors.Print(cmd.ErrOrStderr(), d)
				}
			}
			return errors.Newf(errors.CategoryRuntime, "%s: %d of %d steps failed",
				report.Scenario, len(report.Failures), len(env.program.Scenario.Steps))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print failures as JSON lines")
	return cmd
}
