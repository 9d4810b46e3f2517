package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"kestrel-irp/config"
	"kestrel-irp/core/store"
	"kestrel-irp/core/timeline"
	"kestrel-irp/core/utils"
)

func newHandler(t *testing.T) (*TimelineHandler, store.EventsStore) {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "handlers.db"),
	}
	logger := utils.NewTestLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, cfg.DBDriver, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	events := store.NewEventsStore(db, cfg.DBDriver)
	analysis := store.NewAnalysisStore(db, cfg.DBDriver)
	svc := timeline.NewService(cfg, events, analysis, logger)
	return NewTimelineHandler(cfg, events, svc, logger), events
}

// Handlers resolve the case id from the raw path when called without a
// chi route context.
func TestAppendEventDirectCall(t *testing.T) {
	h, events := newHandler(t)
	body := strings.NewReader(`{"event":"login-failed","source_type":"log"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/cases/c9/events", body)
	rr := httptest.NewRecorder()
	h.AppendEvent(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("append: %d %s", rr.Code, rr.Body.String())
	}
	got, err := events.QueryEvents(context.Background(), store.EventFilter{CaseID: "c9"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].CaseID != "c9" {
		t.Fatalf("case id not forced from path: %+v", got)
	}
}

// The body may not pick its own case; the path segment wins.
func TestAppendEventIgnoresBodyCaseID(t *testing.T) {
	h, events := newHandler(t)
	body := strings.NewReader(`{"event":"x","case_id":"other"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/cases/c9/events", body)
	rr := httptest.NewRecorder()
	h.AppendEvent(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("append: %d %s", rr.Code, rr.Body.String())
	}
	got, _ := events.QueryEvents(context.Background(), store.EventFilter{CaseID: "other"})
	if len(got) != 0 {
		t.Fatalf("body case id was honored")
	}
}

func TestAppendEventBadPayload(t *testing.T) {
	h, _ := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/cases/c9/events", strings.NewReader("{broken"))
	rr := httptest.NewRecorder()
	h.AppendEvent(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad payload: %d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"event":"x"}`))
	rr = httptest.NewRecorder()
	h.AppendEvent(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing case id: %d", rr.Code)
	}
}

func TestReconstructDirectCall(t *testing.T) {
	h, events := newHandler(t)
	ev := store.TimelineEvent{CaseID: "c9", Event: "boot"}
	if _, err := events.AppendEvent(context.Background(), &ev); err != nil {
		t.Fatalf("seed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/cases/c9/timeline", nil)
	rr := httptest.NewRecorder()
	h.Reconstruct(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reconstruct: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"total_events":1`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
