package port

import (
	"context"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
)

type CallHistoryRepository interface {
	Append(ctx context.Context, rec domain.CallRecord) error
	// Complete finds the record keyed by (counterpartyID, start) and stamps it
	// completed at end. ok is false when no such record exists.
	Complete(ctx context.Context, counterpartyID string, start, end time.Time) (rec domain.CallRecord, ok bool, err error)
	List(ctx context.Context) ([]domain.CallRecord, error)
}
