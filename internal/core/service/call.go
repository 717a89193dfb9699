package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

type TrackerConfig struct {
	ServerURL      string
	AgentIdentity  domain.ParticipantIdentity
	IdentityPrefix string
	Now            func() time.Time
}

type activeCall struct {
	call    domain.ActiveCall
	session port.RoomSession
}

// CallTracker owns at most one active call and the call history. Every
// mutation runs on the Run goroutine; blocking room operations run on the
// caller's goroutine and report back tagged with the call ID, so results
// from an attempt that is no longer current are dropped.
type CallTracker struct {
	connector port.RoomConnector
	history   port.CallHistoryRepository
	notifier  port.CallNotifier
	cfg       TrackerConfig

	commands chan func()
	quit     chan struct{}
	done     chan struct{}

	// owned by Run
	active *activeCall
}

func NewCallTracker(connector port.RoomConnector, history port.CallHistoryRepository, notifier port.CallNotifier, cfg TrackerConfig) *CallTracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if cfg.AgentIdentity == "" {
		cfg.AgentIdentity = "ai-agent"
	}
	return &CallTracker{
		connector: connector,
		history:   history,
		notifier:  notifier,
		cfg:       cfg,
		commands:  make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (t *CallTracker) Run() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			if t.active != nil && t.active.session != nil {
				log.Info().Str("call_id", t.active.call.ID.String()).Msg("Stopping tracker, disconnecting active call")
				t.active.session.Disconnect()
			}
			return
		case fn := <-t.commands:
			fn()
		}
	}
}

func (t *CallTracker) Stop() {
	select {
	case <-t.quit:
	default:
		close(t.quit)
	}
	<-t.done
}

// do runs fn on the Run goroutine and waits for it to finish.
func (t *CallTracker) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case t.commands <- cmd:
	case <-t.done:
		return domain.ErrTrackerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-t.done:
		select {
		case <-finished:
			return nil
		default:
			return domain.ErrTrackerStopped
		}
	}
}

// StartOutboundCall dials the room on behalf of counterpartyID and publishes
// the local microphone. It returns a *domain.CallError when the room
// connection or the microphone fails; the active call is then left in the
// failed state until it is ended or replaced by the next attempt.
func (t *CallTracker) StartOutboundCall(ctx context.Context, counterpartyID string) error {
	counterpartyID = domain.NormalizeCounterparty(counterpartyID)
	if counterpartyID == "" {
		return domain.ErrEmptyCounterparty
	}

	var (
		call       domain.ActiveCall
		reserveErr error
	)
	err := t.do(ctx, func() {
		if t.active != nil && !t.active.call.Status.Terminal() {
			reserveErr = domain.ErrCallInProgress
			return
		}
		call = domain.ActiveCall{
			ID:             domain.NewCallID(),
			CounterpartyID: counterpartyID,
			LocalIdentity:  domain.LocalIdentity(t.cfg.IdentityPrefix, counterpartyID),
			StartTime:      t.cfg.Now(),
			Status:         domain.StatusConnecting,
		}
		t.active = &activeCall{call: call}
	})
	if err != nil {
		return err
	}
	if reserveErr != nil {
		return reserveErr
	}

	l := log.With().Str("call_id", call.ID.String()).Str("counterparty_id", counterpartyID).Logger()
	l.Info().Str("identity", call.LocalIdentity.String()).Msg("Starting outbound call")

	session, err := t.connector.Connect(ctx, t.cfg.ServerURL, call.LocalIdentity)
	if err != nil {
		return t.fail(call, domain.KindConnection, err, nil)
	}

	attached := false
	err = t.do(context.Background(), func() {
		if t.active == nil || t.active.call.ID != call.ID {
			return
		}
		t.active.session = session
		attached = true
	})
	if err != nil || !attached {
		session.Disconnect()
		if err != nil {
			return err
		}
		l.Info().Msg("Call ended while connecting")
		return domain.ErrCallEnded
	}
	go t.forwardEvents(call.ID, session)

	if err := session.EnableMicrophone(ctx); err != nil {
		return t.fail(call, domain.KindMedia, err, session)
	}

	recorded := false
	var appendErr error
	err = t.do(context.Background(), func() {
		if t.active == nil || t.active.call.ID != call.ID {
			return
		}
		rec := domain.NewCallRecord(call.ID, call.CounterpartyID, call.StartTime, domain.StatusInitiated)
		if appendErr = t.history.Append(context.Background(), rec); appendErr != nil {
			return
		}
		recorded = true
		t.notify()
	})
	if err != nil {
		return err
	}
	if appendErr != nil {
		return fmt.Errorf("record call: %w", appendErr)
	}
	if !recorded {
		l.Info().Msg("Call ended before it was recorded")
		return domain.ErrCallEnded
	}
	l.Info().Msg("Outbound call initiated")
	return nil
}

// fail records a failed attempt and moves the active call to failed if it is
// still the current one. The notifier runs exactly once. session, when set,
// is detached before it is disconnected so its own disconnect event is dropped.
func (t *CallTracker) fail(call domain.ActiveCall, kind domain.ErrorKind, cause error, session port.RoomSession) error {
	callErr := &domain.CallError{Kind: kind, CallID: call.ID, Err: cause}
	log.Error().Err(cause).
		Str("call_id", call.ID.String()).
		Str("counterparty_id", call.CounterpartyID).
		Str("kind", string(kind)).
		Msg("Call failed")

	err := t.do(context.Background(), func() {
		rec := domain.NewCallRecord(call.ID, call.CounterpartyID, call.StartTime, domain.StatusFailed)
		rec.FailureKind = kind
		rec.FailureReason = cause.Error()
		if err := t.history.Append(context.Background(), rec); err != nil {
			log.Error().Err(err).Str("call_id", call.ID.String()).Msg("Failed to record failed call")
		}
		if t.active != nil && t.active.call.ID == call.ID {
			t.active.call.Status = domain.StatusFailed
			t.active.call.FailureKind = kind
			t.active.session = nil
		}
		t.notify()
	})
	if err != nil {
		log.Warn().Err(err).Str("call_id", call.ID.String()).Msg("Could not record call failure")
	}
	if session != nil {
		session.Disconnect()
	}
	return callErr
}

// forwardEvents drains session events until the channel closes, even after
// the tracker stopped, so the session never blocks on its final send.
func (t *CallTracker) forwardEvents(callID domain.CallID, session port.RoomSession) {
	stopped := false
	for ev := range session.Events() {
		if stopped {
			continue
		}
		ev := ev
		if err := t.do(context.Background(), func() { t.handleEvent(callID, session, ev) }); err != nil {
			stopped = true
		}
	}
}

func (t *CallTracker) handleEvent(callID domain.CallID, session port.RoomSession, ev domain.RoomEvent) {
	if t.active == nil || t.active.call.ID != callID || t.active.session != session {
		log.Debug().Str("call_id", callID.String()).Str("event", string(ev.Type)).Msg("Ignoring event from stale session")
		return
	}

	switch ev.Type {
	case domain.EventParticipantConnected:
		if ev.Identity != t.cfg.AgentIdentity {
			log.Debug().Str("identity", ev.Identity.String()).Msg("Participant joined")
			return
		}
		if t.active.call.Status != domain.StatusConnecting {
			return
		}
		t.active.call.Status = domain.StatusConnected
		log.Info().Str("call_id", callID.String()).Msg("Agent joined, call connected")
		t.notify()
	case domain.EventDisconnected:
		if ev.Err != nil {
			log.Warn().Err(ev.Err).Str("call_id", callID.String()).Msg("Room session dropped")
		}
		t.endCurrent()
	}
}

// EndCurrentCall hangs up the active call, if there is one.
func (t *CallTracker) EndCurrentCall() {
	if err := t.do(context.Background(), t.endCurrent); err != nil {
		log.Warn().Err(err).Msg("End call ignored")
	}
}

func (t *CallTracker) endCurrent() {
	if t.active == nil {
		return
	}
	ac := t.active
	if ac.session != nil {
		ac.session.Disconnect()
	}

	counterparty, start := ac.call.Key()
	rec, ok, err := t.history.Complete(context.Background(), counterparty, start, t.cfg.Now())
	switch {
	case err != nil:
		log.Error().Err(err).Str("call_id", ac.call.ID.String()).Msg("Failed to complete call record")
	case ok:
		log.Info().Str("call_id", ac.call.ID.String()).Dur("duration", *rec.Duration).Msg("Call completed")
	}

	t.active = nil
	t.notify()
}

// Snapshot returns a copy of the active call and the history.
func (t *CallTracker) Snapshot(ctx context.Context) (domain.CallSnapshot, error) {
	var (
		snap    domain.CallSnapshot
		listErr error
	)
	err := t.do(ctx, func() {
		snap, listErr = t.snapshot()
	})
	if err != nil {
		return domain.CallSnapshot{}, err
	}
	return snap, listErr
}

func (t *CallTracker) snapshot() (domain.CallSnapshot, error) {
	history, err := t.history.List(context.Background())
	if err != nil {
		return domain.CallSnapshot{}, err
	}
	snap := domain.CallSnapshot{History: history}
	if t.active != nil {
		a := t.active.call
		snap.Active = &a
	}
	return snap, nil
}

func (t *CallTracker) notify() {
	snap, err := t.snapshot()
	if err != nil {
		log.Error().Err(err).Msg("Failed to build call snapshot")
		return
	}
	if err := t.notifier.NotifyCallState(context.Background(), snap); err != nil {
		log.Error().Err(err).Msg("Failed to notify call state")
	}
}
