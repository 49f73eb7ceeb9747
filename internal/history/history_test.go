package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, started time.Time) Run {
	return Run{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Namespace:  "acme",
		Projects:   12,
		Applied:    8,
		Skipped:    14,
		Errors:     2,
		ExitCode:   1,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := s.Record(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestRecentRoundTripsFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testRun("run-x", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	want.DryRun = true
	if err := s.Record(ctx, want); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != want.ID || got.Namespace != want.Namespace || !got.DryRun {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Projects != 12 || got.Applied != 8 || got.Skipped != 14 || got.Errors != 2 || got.ExitCode != 1 {
		t.Errorf("count fields lost: %+v", got)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("timestamps lost: started %v finished %v", got.StartedAt, got.FinishedAt)
	}
}

func TestRecentOnEmptyStore(t *testing.T) {
	s := newTestStore(t)

	runs, err := s.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}

func TestRecordRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)

	err := s.Record(context.Background(), Run{Namespace: "acme"})
	if err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Record(context.Background(), testRun("run-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Reopening must not clobber existing rows.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	runs, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 surviving run, got %d", len(runs))
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
