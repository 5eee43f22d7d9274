package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"feedsync/internal/model"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func rec(id, outcome string, finished time.Time) *model.MutationRecord {
	return &model.MutationRecord{
		ID:         id,
		Kind:       "toggle_like",
		EntityID:   "p1",
		Outcome:    outcome,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestSQLiteJournal_RecordRecent(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	failed := rec("m-2", "rolled_back", base.Add(time.Minute))
	failed.Error = "toggle like: status 500: boom"

	for _, r := range []*model.MutationRecord{rec("m-1", "committed", base), failed, rec("m-3", "committed", base.Add(2*time.Minute))} {
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.ID, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := j.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		var ids []string
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		want := []string{"m-3", "m-2", "m-1"}
		if len(ids) != len(want) {
			t.Fatalf("Recent() ids = %v, want %v", ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("Recent()[%d] = %s, want %s", i, ids[i], want[i])
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := j.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(Recent(2)) = %d, want 2", len(got))
		}
	})

	t.Run("fields round trip", func(t *testing.T) {
		got, err := j.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		r := got[1]
		if r.Outcome != "rolled_back" || r.Error != failed.Error || r.Kind != "toggle_like" || r.EntityID != "p1" {
			t.Errorf("Recent()[1] = %+v, want %+v", r, failed)
		}
		if !r.FinishedAt.Equal(failed.FinishedAt) || !r.StartedAt.Equal(failed.StartedAt) {
			t.Errorf("times = %v/%v, want %v/%v", r.StartedAt, r.FinishedAt, failed.StartedAt, failed.FinishedAt)
		}
	})
}

func TestSQLiteJournal_DuplicateID(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	now := time.Now()

	if err := j.Record(ctx, rec("m-1", "committed", now)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record(ctx, rec("m-1", "committed", now)); err == nil {
		t.Error("Record() with duplicate id expected error")
	}
}

func TestSQLiteJournal_ReopenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	if err := j.Record(ctx, rec("m-1", "failed", time.Now())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	j.Close()

	j, err = NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("reopening journal error = %v", err)
	}
	defer j.Close()

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "m-1" {
		t.Errorf("Recent() = %v, want one record m-1", got)
	}
}
