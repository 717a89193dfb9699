package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCallRecordComplete(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewCallRecord(NewCallID(), "bob", start, StatusInitiated)

	end := start.Add(90*time.Second + 250*time.Millisecond)
	rec.Complete(end)

	if rec.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", rec.Status)
	}
	if !rec.EndTime.Equal(end) {
		t.Fatalf("end time %v != %v", rec.EndTime, end)
	}
	if *rec.Duration != end.Sub(start) {
		t.Fatalf("duration %v != %v", *rec.Duration, end.Sub(start))
	}
}

func TestCallRecordMatches(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewCallRecord(NewCallID(), "bob", start, StatusInitiated)

	cases := []struct {
		name         string
		counterparty string
		start        time.Time
		want         bool
	}{
		{"same key", "bob", start, true},
		{"same instant other zone", "bob", start.In(time.FixedZone("X", 3600)), true},
		{"other counterparty", "carol", start, false},
		{"other start", "bob", start.Add(time.Nanosecond), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rec.Matches(tc.counterparty, tc.start); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[CallStatus]bool{
		StatusConnecting: false,
		StatusConnected:  false,
		StatusInitiated:  false,
		StatusCompleted:  true,
		StatusFailed:     true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Fatalf("%q: Terminal() = %v", s, !want)
		}
	}
}

func TestCallErrorKind(t *testing.T) {
	cause := errors.New("no route to host")
	err := fmt.Errorf("start: %w", &CallError{Kind: KindConnection, CallID: NewCallID(), Err: cause})

	if KindOf(err) != KindConnection {
		t.Fatalf("expected connection kind, got %q", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("CallError must unwrap to its cause")
	}
	if KindOf(cause) != KindNone {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestLocalIdentity(t *testing.T) {
	if got := LocalIdentity("participant-", "bob"); got != "participant-bob" {
		t.Fatalf("unexpected identity %q", got)
	}
	if got := NormalizeCounterparty("  bob \n"); got != "bob" {
		t.Fatalf("unexpected normalized id %q", got)
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap := CallSnapshot{
		Active:  &ActiveCall{CounterpartyID: "bob", Status: StatusConnecting},
		History: []CallRecord{{CounterpartyID: "bob", Status: StatusInitiated}},
	}
	c := snap.Clone()
	c.Active.Status = StatusConnected
	c.History[0].Status = StatusCompleted

	if snap.Active.Status != StatusConnecting || snap.History[0].Status != StatusInitiated {
		t.Fatalf("clone shares state with original")
	}
}

func TestSnapshotSummarize(t *testing.T) {
	var history []CallRecord
	for i, st := range []CallStatus{StatusCompleted, StatusFailed, StatusCompleted, StatusFailed, StatusInitiated} {
		history = append(history, CallRecord{CounterpartyID: fmt.Sprintf("p%d", i), Status: st})
	}

	cases := []struct {
		name       string
		active     *ActiveCall
		recent     int
		wantActive int
		wantRecent []string
	}{
		{"idle", nil, 2, 0, []string{"p3", "p4"}},
		{"connecting", &ActiveCall{Status: StatusConnecting}, 10, 1, []string{"p0", "p1", "p2", "p3", "p4"}},
		{"failed slot", &ActiveCall{Status: StatusFailed}, 0, 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum := CallSnapshot{Active: tc.active, History: history}.Summarize(tc.recent)
			if sum.Total != 5 {
				t.Fatalf("expected total 5, got %d", sum.Total)
			}
			if sum.ByStatus[StatusCompleted] != 2 || sum.ByStatus[StatusFailed] != 2 || sum.ByStatus[StatusInitiated] != 1 {
				t.Fatalf("unexpected counts %v", sum.ByStatus)
			}
			if sum.Active != tc.wantActive {
				t.Fatalf("expected active %d, got %d", tc.wantActive, sum.Active)
			}
			if len(sum.Recent) != len(tc.wantRecent) {
				t.Fatalf("expected %d recent, got %d", len(tc.wantRecent), len(sum.Recent))
			}
			for i, id := range tc.wantRecent {
				if sum.Recent[i].CounterpartyID != id {
					t.Fatalf("recent[%d]: got %s, want %s", i, sum.Recent[i].CounterpartyID, id)
				}
			}
		})
	}
}
