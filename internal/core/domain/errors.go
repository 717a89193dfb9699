package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCounterparty = errors.New("counterparty id cannot be empty")
	ErrCallInProgress    = errors.New("a call is already in progress")
	ErrTrackerStopped    = errors.New("call tracker stopped")
	ErrCallEnded         = errors.New("call ended before it was established")
)

type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindConnection ErrorKind = "connection"
	KindMedia      ErrorKind = "media"
)

// CallError is returned when an outbound call attempt fails. Kind tells a
// room connection failure apart from a microphone failure.
type CallError struct {
	Kind   ErrorKind
	CallID CallID
	Err    error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("call %s: connection error: %v", e.CallID, e.Err)
	case KindMedia:
		return fmt.Sprintf("call %s: media error: %v", e.CallID, e.Err)
	default:
		return fmt.Sprintf("call %s: %v", e.CallID, e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or KindNone.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}
