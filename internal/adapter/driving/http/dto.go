package http

import (
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// recentCalls bounds the summary's history view.
const recentCalls = 10

type startCallDTO struct {
	CounterpartyID string `json:"counterparty_id"`
}

type activeCallDTO struct {
	ID             string    `json:"id"`
	CounterpartyID string    `json:"counterparty_id"`
	LocalIdentity  string    `json:"local_identity"`
	StartTime      time.Time `json:"start_time"`
	Status         string    `json:"status"`
	FailureKind    string    `json:"failure_kind,omitempty"`
}

type callRecordDTO struct {
	ID             string     `json:"id"`
	Direction      string     `json:"direction"`
	CounterpartyID string     `json:"counterparty_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	DurationMs     *int64     `json:"duration_ms,omitempty"`
	Status         string     `json:"status"`
	FailureKind    string     `json:"failure_kind,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
}

type summaryDTO struct {
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Initiated int             `json:"initiated"`
	Active    int             `json:"active"`
	Recent    []callRecordDTO `json:"recent"`
}

type stateDTO struct {
	Type    string          `json:"type"`
	Active  *activeCallDTO  `json:"active"`
	History []callRecordDTO `json:"history"`
	Summary summaryDTO      `json:"summary"`
}

type errorDTO struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func newStateDTO(snap domain.CallSnapshot) stateDTO {
	dto := stateDTO{
		Type:    "call_state",
		History: make([]callRecordDTO, 0, len(snap.History)),
	}
	if a := snap.Active; a != nil {
		dto.Active = &activeCallDTO{
			ID:             a.ID.String(),
			CounterpartyID: a.CounterpartyID,
			LocalIdentity:  a.LocalIdentity.String(),
			StartTime:      a.StartTime,
			Status:         string(a.Status),
			FailureKind:    string(a.FailureKind),
		}
	}
	for _, rec := range snap.History {
		dto.History = append(dto.History, newCallRecordDTO(rec))
	}

	sum := snap.Summarize(recentCalls)
	dto.Summary = summaryDTO{
		Total:     sum.Total,
		Completed: sum.ByStatus[domain.StatusCompleted],
		Failed:    sum.ByStatus[domain.StatusFailed],
		Initiated: sum.ByStatus[domain.StatusInitiated],
		Active:    sum.Active,
		Recent:    make([]callRecordDTO, 0, len(sum.Recent)),
	}
	for _, rec := range sum.Recent {
		dto.Summary.Recent = append(dto.Summary.Recent, newCallRecordDTO(rec))
	}
	return dto
}

func newCallRecordDTO(rec domain.CallRecord) callRecordDTO {
	r := callRecordDTO{
		ID:             rec.ID.String(),
		Direction:      string(rec.Direction),
		CounterpartyID: rec.CounterpartyID,
		StartTime:      rec.StartTime,
		EndTime:        rec.EndTime,
		Status:         string(rec.Status),
		FailureKind:    string(rec.FailureKind),
		FailureReason:  rec.FailureReason,
	}
	if rec.Duration != nil {
		ms := rec.Duration.Milliseconds()
		r.DurationMs = &ms
	}
	return r
}

func newErrorDTO(err error) errorDTO {
	return errorDTO{
		Type:    "error",
		Kind:    string(domain.KindOf(err)),
		Message: err.Error(),
	}
}
