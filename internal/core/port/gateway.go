package port

import (
	"context"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// CallNotifier is told about every change of the tracker state.
type CallNotifier interface {
	NotifyCallState(ctx context.Context, snapshot domain.CallSnapshot) error
}
