package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/dong/internal/interval"
)

// newRunner returns a started runner whose ticker never fires during a test.
func newRunner(t *testing.T) *interval.Runner {
	t.Helper()
	session, err := interval.Build(interval.Config{ActionMinutes: 1, BreakMinutes: 0.5, Sets: 2})
	if err != nil {
		t.Fatal(err)
	}
	r := interval.NewRunner(session, interval.RunnerOptions{TickInterval: time.Hour})
	t.Cleanup(r.Close)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

// ============================================================
// State and commands
// ============================================================

func TestGetState(t *testing.T) {
	h := NewRouter(newRunner(t))

	rec := do(t, h, http.MethodGet, "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	body := decodeSnapshot(t, rec)
	if body["state"] != "running" {
		t.Fatalf("state = %v, want running", body["state"])
	}
	if body["remaining"] != float64(60) {
		t.Fatalf("remaining = %v, want 60", body["remaining"])
	}
	sets, _ := body["sets"].([]any)
	if len(sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(sets))
	}
}

func TestPauseResume(t *testing.T) {
	h := NewRouter(newRunner(t))

	if rec := do(t, h, http.MethodPost, "/pause"); rec.Code != http.StatusNoContent {
		t.Fatalf("pause status = %d", rec.Code)
	}
	if body := decodeSnapshot(t, do(t, h, http.MethodGet, "/state")); body["state"] != "paused" {
		t.Fatalf("state = %v, want paused", body["state"])
	}

	rec := do(t, h, http.MethodPost, "/pause")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second pause status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid transition") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	if rec := do(t, h, http.MethodPost, "/resume"); rec.Code != http.StatusNoContent {
		t.Fatalf("resume status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/resume"); rec.Code != http.StatusConflict {
		t.Fatalf("resume while running status = %d, want 409", rec.Code)
	}
}

func TestStop(t *testing.T) {
	r := newRunner(t)
	h := NewRouter(r)

	if rec := do(t, h, http.MethodPost, "/stop"); rec.Code != http.StatusNoContent {
		t.Fatalf("stop status = %d", rec.Code)
	}

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after stop")
	}

	if rec := do(t, h, http.MethodPost, "/stop"); rec.Code != http.StatusConflict {
		t.Fatalf("stop after stop status = %d, want 409", rec.Code)
	}

	body := decodeSnapshot(t, do(t, h, http.MethodGet, "/state"))
	if body["state"] != "stopped" {
		t.Fatalf("state = %v, want stopped", body["state"])
	}
}

func TestUnknownRoute(t *testing.T) {
	h := NewRouter(newRunner(t))
	if rec := do(t, h, http.MethodGet, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/stop"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&interval.TransitionError{Op: "pause", State: interval.StatePaused}, http.StatusConflict},
		{interval.ErrRunnerClosed, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// ============================================================
// Server-Sent Events
// ============================================================

func TestStreamEventsUntilStopped(t *testing.T) {
	r := newRunner(t)
	srv := httptest.NewServer(NewRouter(r))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	stopResp, err := http.Post(srv.URL+"/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	stopResp.Body.Close()

	// The stream ends when the session does.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	stream := string(data)

	snap := strings.Index(stream, "event: snapshot\n")
	stopped := strings.Index(stream, "event: stopped\n")
	if snap < 0 || stopped < 0 {
		t.Fatalf("missing events in stream:\n%s", stream)
	}
	if stopped < snap {
		t.Fatal("stopped event should come after the final snapshot")
	}
	if !strings.Contains(stream, `"type":"stopped"`) {
		t.Fatalf("event payload missing type:\n%s", stream)
	}
}

func TestStreamEventsClientGone(t *testing.T) {
	r := newRunner(t)
	h := NewRouter(r)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client went away")
	}
}

// fakeController hands out one event channel the test feeds directly.
type fakeController struct {
	events chan interval.Event
}

func (f *fakeController) Pause(context.Context) error  { return nil }
func (f *fakeController) Resume(context.Context) error { return nil }
func (f *fakeController) Stop(context.Context) error   { return nil }
func (f *fakeController) Snapshot(context.Context) (interval.Snapshot, error) {
	return interval.Snapshot{}, nil
}
func (f *fakeController) Subscribe(int) <-chan interval.Event { return f.events }

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
	writes int
}

func (b *brokenWriter) Header() http.Header { return b.header }
func (b *brokenWriter) WriteHeader(int)     {}
func (b *brokenWriter) Flush()              {}
func (b *brokenWriter) Write([]byte) (int, error) {
	b.writes++
	return 0, errors.New("connection reset")
}

func serveAsync(h http.HandlerFunc, w http.ResponseWriter) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		h(w, httptest.NewRequest(http.MethodGet, "/events", nil))
		close(done)
	}()
	return done
}

func TestStreamEventsStopsOnWriteError(t *testing.T) {
	fc := &fakeController{events: make(chan interval.Event, 4)}
	s := &server{c: fc, logger: zerolog.Nop()}
	w := &brokenWriter{header: make(http.Header)}

	fc.events <- interval.Event{Type: interval.EventSnapshot}
	done := serveAsync(s.streamEvents, w)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler kept streaming after a failed write")
	}
	if w.writes != 1 {
		t.Fatalf("writes = %d, want 1", w.writes)
	}
}

func TestStreamEventsEndsAfterTerminalEvent(t *testing.T) {
	fc := &fakeController{events: make(chan interval.Event, 4)}
	s := &server{c: fc, logger: zerolog.Nop()}
	rec := httptest.NewRecorder()

	fc.events <- interval.Event{Type: interval.EventSnapshot}
	fc.events <- interval.Event{Type: interval.EventFinished}
	done := serveAsync(s.streamEvents, rec)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the finished event")
	}
	if !strings.Contains(rec.Body.String(), "event: finished\n") {
		t.Fatalf("missing finished event:\n%s", rec.Body.String())
	}
}

// ============================================================
// Responses
// ============================================================

func TestRespondJSONEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	s := &server{logger: zerolog.New(&buf)}
	rec := httptest.NewRecorder()

	s.respondJSON(rec, make(chan int), http.StatusOK)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message")
	}
	if !strings.Contains(buf.String(), "failed to encode response") {
		t.Fatalf("encode failure not logged: %q", buf.String())
	}
}

func TestNewRouterLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	h := newRouter(&fakeController{events: make(chan interval.Event)}, logger)

	rec := do(t, h, http.MethodGet, "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"path":"/state"`) {
		t.Fatalf("request not logged: %q", buf.String())
	}
}
