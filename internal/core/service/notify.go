package service

import (
	"context"
	"errors"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

// MultiNotifier fans a state change out to several notifiers.
type MultiNotifier []port.CallNotifier

func (m MultiNotifier) NotifyCallState(ctx context.Context, snapshot domain.CallSnapshot) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyCallState(ctx, snapshot.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogNotifier struct{}

func (LogNotifier) NotifyCallState(ctx context.Context, snapshot domain.CallSnapshot) error {
	e := log.Info().Int("history", len(snapshot.History))
	if a := snapshot.Active; a != nil {
		e = e.Str("call_id", a.ID.String()).
			Str("counterparty_id", a.CounterpartyID).
			Str("status", string(a.Status))
	} else {
		e = e.Str("status", "idle")
	}
	e.Msg("Call status updated")
	return nil
}
