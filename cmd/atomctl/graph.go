package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/pkg/atom"
)

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <scenario.yaml>",
		Short: "Print the dependency graph of a scenario",
		Long: `Graph runs the scenario steps quietly, then prints every atom with its
value, mount state and the atoms its last evaluation read.

Examples:
  atomctl graph counter.yaml
  atomctl graph --format dot counter.yaml | dot -Tsvg > graph.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, args[0])
			if err != nil {
				return err
			}

			store := atom.NewStore(env.storeOptions()...)
			report := env.program.Run(store, io.Discard)
			defer report.Close()
			for _, d := range report.Failures {
				env.logger.Warn("step failed", "error", d.FormatCompact())
			}

			// Unmounted atoms are read so that the graph shows their edges.
			for _, name := range env.program.Names() {
				e, _ := env.program.Entry(name)
				store.ReadAny(e.Atom)
			}
			return env.program.WriteGraph(store, cmd.OutOrStdout(), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or dot")
	return cmd
}
