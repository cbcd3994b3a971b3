package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "mmtconf",
		Short:         "Experiment configuration tool for multimodal translation training",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&ctx.overrides, "set", "s", nil, "Override a value before resolution (section.key:value, repeatable)")
	flags.StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&ctx.logFormat, "log-format", "console", "Log format (console, json)")
	flags.BoolVar(&ctx.logSource, "log-source", false, "Include the source location in log lines")
	flags.StringVar(&ctx.registryFlag, "registry", "", "Path to the run registry database")

	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newPrepareCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}
