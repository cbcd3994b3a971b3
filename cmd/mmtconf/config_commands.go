package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mmtconf/internal/config"
	"mmtconf/internal/fileutil"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Load and validate experiment files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				if _, err := ctx.loadConfig(cmd, path); err != nil {
					failed++
					fmt.Fprintln(out, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d experiment files are invalid", failed, len(args))
			}
			return nil
		},
	}
}

type entryJSON struct {
	Section string `json:"section"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Origin  string `json:"origin"`
}

func entryOrigin(e config.Entry) string {
	if e.Explicit {
		return "file"
	}
	return "default"
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var explicitOnly bool
	var sections []string

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show every resolved value, defaults included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd, args[0])
			if err != nil {
				return err
			}

			var entries []config.Entry
			for _, e := range cfg.Entries() {
				if explicitOnly && !e.Explicit {
					continue
				}
				if len(sections) > 0 && !slices.Contains(sections, e.Section) {
					continue
				}
				entries = append(entries, e)
			}

			if jsonOutput {
				payload := make([]entryJSON, 0, len(entries))
				for _, e := range entries {
					payload = append(payload, entryJSON{Section: e.Section, Key: e.Key, Value: e.Value, Origin: entryOrigin(e)})
				}
				return writeJSON(cmd, payload)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Section, e.Key, e.Value, entryOrigin(e)})
			}
			columns := []column{
				{Header: "Section"},
				{Header: "Key"},
				{Header: "Value", MaxWidth: 72},
				{Header: "Origin"},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&explicitOnly, "explicit", false, "Only show values set in the file or by --set")
	cmd.Flags().StringSliceVar(&sections, "section", nil, "Restrict output to these sections")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the resolved experiment in canonical or structured form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if !slices.Contains(config.Formats(), format) {
				return fmt.Errorf("unsupported format %q (expected one of %s)", format, strings.Join(config.Formats(), ", "))
			}
			cfg, err := ctx.loadConfig(cmd, args[0])
			if err != nil {
				return err
			}

			if strings.TrimSpace(outputPath) == "" {
				return cfg.Export(cmd.OutOrStdout(), format)
			}
			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			return fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
				return cfg.Export(w, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatINI, "Output format ("+strings.Join(config.Formats(), ", ")+")")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample experiment file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultSamplePath()
			}
			target, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve experiment path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("experiment file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check experiment path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample experiment: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample experiment to %s\n", target)
			fmt.Fprintln(out, "Point [data] and [vocabulary] at your corpora, then run `mmtconf check` on it.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the experiment file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	return cmd
}
