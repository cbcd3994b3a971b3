package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mmtconf/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Check that corpora and vocabularies are readable and outputs writable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg)
			fmt.Fprintf(out, "Preflight for %s\n", cfg.Source)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d preflight checks failed", failed, len(results))
			}
			fmt.Fprintf(out, "All %d checks passed\n", len(results))
			return nil
		},
	}
}
