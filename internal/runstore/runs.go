package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run is one prepared training run.
type Run struct {
	ID              string
	SourcePath      string
	SourceSHA256    string
	SnapshotPath    string
	ModelType       string
	SavePath        string
	EarlyStopMetric string
	DeviceSpec      string
	CreatedAt       time.Time
}

// Fixed-width timestamps keep ORDER BY created_at chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `id, source_path, source_sha256, snapshot_path, model_type, save_path, early_stop_metric, device_spec, created_at`

// Record inserts run. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is empty")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			nullableString(run.SourcePath),
			nullableString(run.SourceSHA256),
			run.SnapshotPath,
			run.ModelType,
			run.SavePath,
			run.EarlyStopMetric,
			run.DeviceSpec,
			run.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// Get fetches a run by ID. It returns nil when no run matches.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		source  sql.NullString
		digest  sql.NullString
		created string
	)
	if err := row.Scan(&run.ID, &source, &digest, &run.SnapshotPath, &run.ModelType, &run.SavePath,
		&run.EarlyStopMetric, &run.DeviceSpec, &created); err != nil {
		return nil, err
	}
	run.SourcePath = source.String
	run.SourceSHA256 = digest.String
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	run.CreatedAt = ts
	return &run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
