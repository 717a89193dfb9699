package domain

import "time"

type CallStatus string

const (
	StatusConnecting CallStatus = "connecting"
	StatusConnected  CallStatus = "connected"
	StatusInitiated  CallStatus = "initiated" // history entry appended, waiting for the agent
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s CallStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
)

// CallRecord is one entry of the call history. Records are keyed by
// (CounterpartyID, StartTime) and only ever gain an end time and a final status.
type CallRecord struct {
	ID             CallID
	Direction      Direction
	CounterpartyID string
	StartTime      time.Time
	EndTime        *time.Time
	Duration       *time.Duration
	Status         CallStatus
	FailureKind    ErrorKind
	FailureReason  string
}

func NewCallRecord(id CallID, counterpartyID string, start time.Time, status CallStatus) CallRecord {
	return CallRecord{
		ID:             id,
		Direction:      DirectionOutbound,
		CounterpartyID: counterpartyID,
		StartTime:      start,
		Status:         status,
	}
}

func (r CallRecord) Matches(counterpartyID string, start time.Time) bool {
	return r.CounterpartyID == counterpartyID && r.StartTime.Equal(start)
}

// Complete stamps the end of the call. Duration is exactly end - StartTime.
func (r *CallRecord) Complete(end time.Time) {
	d := end.Sub(r.StartTime)
	r.EndTime = &end
	r.Duration = &d
	r.Status = StatusCompleted
}

// ActiveCall is the single in-progress call.
type ActiveCall struct {
	ID             CallID
	CounterpartyID string
	LocalIdentity  ParticipantIdentity
	StartTime      time.Time
	Status         CallStatus
	FailureKind    ErrorKind
}

func (c ActiveCall) Key() (string, time.Time) {
	return c.CounterpartyID, c.StartTime
}

// CallSnapshot is a read-only copy of the tracker state.
type CallSnapshot struct {
	Active  *ActiveCall
	History []CallRecord
}

func (s CallSnapshot) Clone() CallSnapshot {
	out := CallSnapshot{History: make([]CallRecord, len(s.History))}
	if s.Active != nil {
		a := *s.Active
		out.Active = &a
	}
	copy(out.History, s.History)
	return out
}

// CallSummary aggregates the history for the status view.
type CallSummary struct {
	Total    int
	ByStatus map[CallStatus]int
	// Active is 1 while a non-terminal call holds the slot.
	Active int
	Recent []CallRecord
}

// Summarize counts history records per status and keeps the last recent
// records, newest last.
func (s CallSnapshot) Summarize(recent int) CallSummary {
	sum := CallSummary{
		Total:    len(s.History),
		ByStatus: make(map[CallStatus]int),
	}
	for _, rec := range s.History {
		sum.ByStatus[rec.Status]++
	}
	if s.Active != nil && !s.Active.Status.Terminal() {
		sum.Active = 1
	}
	if recent < 0 {
		recent = 0
	}
	from := len(s.History) - recent
	if from < 0 {
		from = 0
	}
	sum.Recent = append([]CallRecord(nil), s.History[from:]...)
	return sum
}
