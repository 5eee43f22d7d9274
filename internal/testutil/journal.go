package testutil

import (
	"context"
	"sync"

	"feedsync/internal/feed"
	"feedsync/internal/model"
)

// RecordingJournal keeps mutation records in memory for assertions.
type RecordingJournal struct {
	mu      sync.Mutex
	records []*model.MutationRecord
}

var _ feed.Journal = (*RecordingJournal)(nil)

func NewRecordingJournal() *RecordingJournal {
	return &RecordingJournal{}
}

func (j *RecordingJournal) Record(_ context.Context, rec *model.MutationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *rec
	j.records = append(j.records, &cp)
	return nil
}

func (j *RecordingJournal) Recent(_ context.Context, limit int) ([]*model.MutationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*model.MutationRecord
	for i := len(j.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, j.records[i])
	}
	return out, nil
}

func (j *RecordingJournal) Close() error { return nil }

// Outcomes returns the outcome of every record in write order.
func (j *RecordingJournal) Outcomes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.records))
	for i, r := range j.records {
		out[i] = r.Outcome
	}
	return out
}
