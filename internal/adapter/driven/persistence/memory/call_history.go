package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// CallHistoryRepository keeps the call history for the lifetime of the process.
type CallHistoryRepository struct {
	mu      sync.Mutex
	records []domain.CallRecord
}

func NewCallHistoryRepository() *CallHistoryRepository {
	return &CallHistoryRepository{
		records: make([]domain.CallRecord, 0),
	}
}

func (r *CallHistoryRepository) Append(ctx context.Context, rec domain.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Complete only touches records that are not terminal yet; a failed attempt
// keyed the same way as the active call stays failed.
func (r *CallHistoryRepository) Complete(ctx context.Context, counterpartyID string, start, end time.Time) (domain.CallRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		rec := &r.records[i]
		if !rec.Matches(counterpartyID, start) || rec.Status.Terminal() {
			continue
		}
		rec.Complete(end)
		return *rec, true, nil
	}
	return domain.CallRecord{}, false, nil
}

func (r *CallHistoryRepository) List(ctx context.Context) ([]domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CallRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}
