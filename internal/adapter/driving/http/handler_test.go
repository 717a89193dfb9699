package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	repo "github.com/Wyydra/yacall/internal/adapter/driven/persistence/memory"
	roommemory "github.com/Wyydra/yacall/internal/adapter/driven/room/memory"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, opts roommemory.Options) *httptest.Server {
	t.Helper()
	hub := ws.NewHub()
	tracker := service.NewCallTracker(
		roommemory.NewConnector(opts),
		repo.NewCallHistoryRepository(),
		hub,
		service.TrackerConfig{ServerURL: "ws://loopback", AgentIdentity: "ai-agent", IdentityPrefix: "participant-"},
	)
	go hub.Run()
	go tracker.Run()

	srv := httptest.NewServer(NewHandler(tracker, hub, "").NewRouter())
	t.Cleanup(func() {
		srv.Close()
		tracker.Stop()
		hub.Stop()
	})
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeState(t *testing.T, resp *http.Response) stateDTO {
	t.Helper()
	defer resp.Body.Close()
	var st stateDTO
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestStartAndEndCallOverAPI(t *testing.T) {
	srv := newTestServer(t, roommemory.Options{AgentIdentity: "ai-agent", AgentDelay: time.Hour})

	resp := postJSON(t, srv.URL+"/api/calls", `{"counterparty_id":"bob"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	st := decodeState(t, resp)
	if st.Active == nil || st.Active.CounterpartyID != "bob" || st.Active.Status != "connecting" {
		t.Fatalf("unexpected active call %+v", st.Active)
	}
	if len(st.History) != 1 || st.History[0].Status != "initiated" || st.History[0].Direction != "outbound" {
		t.Fatalf("unexpected history %+v", st.History)
	}

	resp = postJSON(t, srv.URL+"/api/calls", `{"counterparty_id":"carol"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while a call is active, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/calls/current/end", ``)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/calls")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st = decodeState(t, resp)
	if st.Active != nil {
		t.Fatalf("expected no active call, got %+v", st.Active)
	}
	if st.History[0].Status != "completed" || st.History[0].DurationMs == nil || *st.History[0].DurationMs < 0 {
		t.Fatalf("unexpected record %+v", st.History[0])
	}
}

func TestGetCallsSummary(t *testing.T) {
	srv := newTestServer(t, roommemory.Options{AgentIdentity: "ai-agent", AgentDelay: time.Hour})

	const calls = 12
	for i := 0; i < calls; i++ {
		resp := postJSON(t, srv.URL+"/api/calls", fmt.Sprintf(`{"counterparty_id":"p%d"}`, i))
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("start %d: expected 201, got %d", i, resp.StatusCode)
		}
		if i == calls-1 {
			break
		}
		resp = postJSON(t, srv.URL+"/api/calls/current/end", ``)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/calls")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st := decodeState(t, resp)
	sum := st.Summary
	if sum.Total != calls || sum.Completed != calls-1 || sum.Initiated != 1 || sum.Failed != 0 || sum.Active != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(st.History) != calls {
		t.Fatalf("expected full history, got %d", len(st.History))
	}
	if len(sum.Recent) != recentCalls {
		t.Fatalf("expected %d recent calls, got %d", recentCalls, len(sum.Recent))
	}
	if sum.Recent[0].CounterpartyID != "p2" || sum.Recent[recentCalls-1].CounterpartyID != "p11" {
		t.Fatalf("unexpected recent window %s..%s", sum.Recent[0].CounterpartyID, sum.Recent[recentCalls-1].CounterpartyID)
	}
}

func TestStartCallErrors(t *testing.T) {
	cases := []struct {
		name   string
		opts   roommemory.Options
		body   string
		status int
		kind   string
	}{
		{"empty id", roommemory.Options{}, `{"counterparty_id":"  "}`, http.StatusBadRequest, ""},
		{"bad json", roommemory.Options{}, `{`, http.StatusBadRequest, ""},
		{"connection", roommemory.Options{ConnectErr: errors.New("refused")}, `{"counterparty_id":"carol"}`, http.StatusBadGateway, "connection"},
		{"media", roommemory.Options{MicrophoneErr: errors.New("no device")}, `{"counterparty_id":"carol"}`, http.StatusFailedDependency, "media"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.opts)
			resp := postJSON(t, srv.URL+"/api/calls", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			var e errorDTO
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if e.Type != "error" || e.Kind != tc.kind || e.Message == "" {
				t.Fatalf("unexpected error body %+v", e)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyCounterparty, http.StatusBadRequest},
		{domain.ErrCallInProgress, http.StatusConflict},
		{domain.ErrCallEnded, http.StatusConflict},
		{domain.ErrTrackerStopped, http.StatusServiceUnavailable},
		{&domain.CallError{Kind: domain.KindConnection, Err: errors.New("x")}, http.StatusBadGateway},
		{&domain.CallError{Kind: domain.KindMedia, Err: errors.New("x")}, http.StatusFailedDependency},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: got %d, want %d", tc.err, got, tc.want)
		}
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read ws: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func activeStatus(msg map[string]any) string {
	active, ok := msg["active"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := active["status"].(string)
	return s
}

func TestWebsocketCallFlow(t *testing.T) {
	srv := newTestServer(t, roommemory.Options{AgentIdentity: "ai-agent", AgentDelay: 10 * time.Millisecond})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "call_state" })
	if initial["active"] != nil {
		t.Fatalf("expected idle state, got %v", initial["active"])
	}

	if err := conn.WriteJSON(map[string]string{"type": "start_call", "counterparty_id": "bob"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, func(m map[string]any) bool { return activeStatus(m) == "connected" })

	if err := conn.WriteJSON(map[string]string{"type": "end_call"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	final := readUntil(t, conn, func(m map[string]any) bool {
		return m["type"] == "call_state" && m["active"] == nil
	})
	history, _ := final["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %v", final["history"])
	}
	rec := history[0].(map[string]any)
	if rec["status"] != "completed" || rec["counterparty_id"] != "bob" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestWebsocketRejectsCrossOrigin(t *testing.T) {
	srv := newTestServer(t, roommemory.Options{})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"http://attacker.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatalf("expected cross-origin handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	header = http.Header{"Origin": []string{srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("same-origin dial: %v", err)
	}
	conn.Close()
}

func TestWebsocketReportsStartError(t *testing.T) {
	srv := newTestServer(t, roommemory.Options{ConnectErr: errors.New("refused")})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "start_call", "counterparty_id": "carol"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "error" })
	if msg["kind"] != "connection" {
		t.Fatalf("unexpected error %v", msg)
	}
}

func TestStaticUIRendersHistoryAsText(t *testing.T) {
	router := NewHandler(nil, nil, "../../../../static").NewRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "innerHTML") {
		t.Fatalf("ui must not build markup from call data")
	}
	if !strings.Contains(body, "textContent") {
		t.Fatalf("ui must render counterparty ids as text")
	}
}
