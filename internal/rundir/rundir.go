// Package rundir prepares the output directory of a training run.
//
// Prepare creates save_path and tensorboard_dir, refuses a save_path that
// already holds a prepared run unless forced, takes an exclusive lock on
// the run directory for the trainer to hold while it writes there, and
// stores the fully resolved experiment next to the checkpoints as
// <save_path>/<run id>.conf. When the experiment came from a file, that file
// is archived unchanged as <save_path>/<run id>.source.conf.
package rundir

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mmtconf/internal/config"
	"mmtconf/internal/fileutil"
	"mmtconf/internal/logging"
)

// LockFileName is created inside save_path while a run holds it.
const LockFileName = ".mmtconf.lock"

// ErrLocked reports that another run holds the directory.
var ErrLocked = errors.New("run directory is locked by another run")

// ErrExistingRun reports that save_path already holds a run snapshot.
var ErrExistingRun = errors.New("save_path already holds a prepared run")

// Options adjusts Prepare.
type Options struct {
	Logger *slog.Logger
	// Force prepares into a save_path that already holds earlier runs.
	Force bool
}

// Run is a prepared run directory. The lock is held until Release, which
// the trainer calls when training ends.
type Run struct {
	ID           string
	Dir          string
	SnapshotPath string
	// SourceCopyPath and SourceSHA256 are empty when the config was not
	// loaded from a file.
	SourceCopyPath string
	SourceSHA256   string

	lock   *flock.Flock
	logger *slog.Logger
}

// Prepare creates and locks the run directory for cfg and writes the
// resolved snapshot.
func Prepare(cfg *config.Config, opts Options) (*Run, error) {
	if cfg == nil {
		return nil, errors.New("rundir: config is nil")
	}
	logger := logging.NewComponentLogger(opts.Logger, "rundir")

	dir := cfg.Train.SavePath
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save_path %q: %w", dir, err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	previous, err := ExistingRuns(dir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if len(previous) > 0 {
		if !opts.Force {
			_ = lock.Unlock()
			return nil, fmt.Errorf("%w: %s contains run %s (use a new save_path or force)", ErrExistingRun, dir, previous[0])
		}
		logger.Warn("preparing into a save_path with earlier runs",
			logging.String(logging.FieldPath, dir),
			logging.Int("runs", len(previous)),
		)
	}

	run := &Run{
		ID:     uuid.NewString(),
		Dir:    dir,
		lock:   lock,
		logger: logger,
	}
	run.SnapshotPath = filepath.Join(dir, run.ID+".conf")

	if err := run.setup(cfg); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	logger.Info("run prepared",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldPath, run.SnapshotPath),
	)
	return run, nil
}

func (r *Run) setup(cfg *config.Config) error {
	if tb := cfg.Train.TensorboardDir; tb != "" {
		if err := os.MkdirAll(tb, 0o755); err != nil {
			return fmt.Errorf("create tensorboard_dir %q: %w", tb, err)
		}
	}

	err := fileutil.WriteAtomic(r.SnapshotPath, 0o644, func(w io.Writer) error {
		fmt.Fprintf(w, "# run %s\n", r.ID)
		if cfg.Source != "" {
			fmt.Fprintf(w, "# source %s\n", cfg.Source)
		}
		fmt.Fprintln(w)
		return cfg.WriteINI(w)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if cfg.Source == "" {
		return nil
	}
	copyPath := filepath.Join(r.Dir, r.ID+".source.conf")
	digest, err := fileutil.CopyFileVerified(cfg.Source, copyPath)
	if err != nil {
		return fmt.Errorf("archive source %q: %w", cfg.Source, err)
	}
	r.SourceCopyPath = copyPath
	r.SourceSHA256 = digest
	return nil
}

// ExistingRuns lists the IDs of runs whose snapshots are in dir.
func ExistingRuns(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read save_path: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".conf")
		if !ok || entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// LockPath is the lock file guarding the run directory.
func (r *Run) LockPath() string {
	return r.lock.Path()
}

// Release drops the directory lock. The snapshot stays in place.
func (r *Run) Release() error {
	if r == nil || r.lock == nil {
		return nil
	}
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	r.logger.Debug("run released", logging.String(logging.FieldRunID, r.ID))
	return nil
}
