package runstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mmtconf/internal/runstore"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "registry", "runs.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := runstore.Run{
		ID:              "0b5c3f9e-1d2a-4c8e-9f10-1234567890ab",
		SourcePath:      "/exp/en-de.conf",
		SourceSHA256:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		SnapshotPath:    "/runs/en-de/0b5c3f9e-1d2a-4c8e-9f10-1234567890ab.conf",
		ModelType:       "NMT",
		SavePath:        "/runs/en-de",
		EarlyStopMetric: "bleu",
		DeviceSpec:      "auto_1",
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if diff := cmp.Diff(run, *got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %v, %v", missing, err)
	}
}

func TestRecordRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := runstore.Run{ID: "a", SnapshotPath: "/r/a.conf", ModelType: "NMT", SavePath: "/r", EarlyStopMetric: "loss", DeviceSpec: "0"}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := store.Record(ctx, run); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	if err := store.Record(ctx, runstore.Run{}); err == nil {
		t.Fatal("expected empty id to fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		run := runstore.Run{
			ID:              id,
			SnapshotPath:    "/r/" + id + ".conf",
			ModelType:       "NMT",
			SavePath:        "/r",
			EarlyStopMetric: "loss",
			DeviceSpec:      "auto_1",
			CreatedAt:       base.Add(time.Duration(i) * 500 * time.Millisecond),
		}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record(%s) returned error: %v", id, err)
		}
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "third" {
		t.Fatalf("unexpected limited list: %+v", limited)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	run := runstore.Run{ID: "kept", SnapshotPath: "/r/kept.conf", ModelType: "NMT", SavePath: "/r", EarlyStopMetric: "loss", DeviceSpec: "auto_1"}
	if err := store.Record(context.Background(), run); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Fatalf("Path() = %q", reopened.Path())
	}
	got, err := reopened.Get(context.Background(), "kept")
	if err != nil || got == nil {
		t.Fatalf("expected kept run, got %v, %v", got, err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := runstore.Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
