package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mmtconf/internal/logging"
	"mmtconf/internal/rundir"
	"mmtconf/internal/runstore"
)

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var force bool

	cmd := &cobra.Command{
		Use:   "prepare FILE",
		Short: "Create the run directory, snapshot the resolved experiment and record the run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd, args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cmd)
			if err != nil {
				return err
			}

			run, err := rundir.Prepare(cfg, rundir.Options{Logger: logger, Force: force})
			if err != nil {
				return err
			}
			record := runstore.Run{
				ID:              run.ID,
				SourcePath:      cfg.Source,
				SourceSHA256:    run.SourceSHA256,
				SnapshotPath:    run.SnapshotPath,
				ModelType:       cfg.Train.ModelType,
				SavePath:        cfg.Train.SavePath,
				EarlyStopMetric: string(cfg.EarlyStopMetric()),
				DeviceSpec:      cfg.Train.DeviceID.String(),
				CreatedAt:       time.Now().UTC(),
			}
			recordErr := ctx.withRegistry(func(store *runstore.Store) error {
				return store.Record(cmd.Context(), record)
			})
			if err := errors.Join(recordErr, run.Release()); err != nil {
				return err
			}
			logger.Debug("run recorded",
				logging.String(logging.FieldRunID, run.ID),
				logging.Bool("source_archived", run.SourceCopyPath != ""),
			)

			if jsonOutput {
				return writeJSON(cmd, runJSONFrom(record))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", record.ID)
			fmt.Fprintf(out, "Snapshot: %s\n", record.SnapshotPath)
			fmt.Fprintf(out, "Devices:  %s\n", record.DeviceSpec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&force, "force", false, "Prepare even if save_path already holds earlier runs")
	return cmd
}

type runJSON struct {
	ID              string `json:"id"`
	SourcePath      string `json:"source_path,omitempty"`
	SourceSHA256    string `json:"source_sha256,omitempty"`
	SnapshotPath    string `json:"snapshot_path"`
	ModelType       string `json:"model_type"`
	SavePath        string `json:"save_path"`
	EarlyStopMetric string `json:"early_stop_metric"`
	DeviceSpec      string `json:"device_spec"`
	CreatedAt       string `json:"created_at"`
}

func runJSONFrom(r runstore.Run) runJSON {
	return runJSON{
		ID:              r.ID,
		SourcePath:      r.SourcePath,
		SourceSHA256:    r.SourceSHA256,
		SnapshotPath:    r.SnapshotPath,
		ModelType:       r.ModelType,
		SavePath:        r.SavePath,
		EarlyStopMetric: r.EarlyStopMetric,
		DeviceSpec:      r.DeviceSpec,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List prepared runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runs []runstore.Run
			err := ctx.withRegistry(func(store *runstore.Store) error {
				var err error
				runs, err = store.List(cmd.Context(), limit)
				return err
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				payload := make([]runJSON, 0, len(runs))
				for _, r := range runs {
					payload = append(payload, runJSONFrom(r))
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for i, r := range runs {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					r.ID,
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.ModelType,
					r.EarlyStopMetric,
					r.DeviceSpec,
					r.SnapshotPath,
				})
			}
			columns := []column{
				{Header: "#", AlignEnd: true},
				{Header: "ID"},
				{Header: "Created"},
				{Header: "Model"},
				{Header: "Metric"},
				{Header: "Devices"},
				{Header: "Snapshot", MaxWidth: 60},
			}
			fmt.Fprintln(out, renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}
