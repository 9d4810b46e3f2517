package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kestrel-irp/config"
	"kestrel-irp/core/store"
	"kestrel-irp/core/timeline"
	"kestrel-irp/core/utils"
)

type TimelineHandler struct {
	cfg    *config.AppConfig
	events store.EventsStore
	svc    *timeline.Service
	logger *utils.Logger
}

func NewTimelineHandler(cfg *config.AppConfig, events store.EventsStore, svc *timeline.Service, logger *utils.Logger) *TimelineHandler {
	return &TimelineHandler{cfg: cfg, events: events, svc: svc, logger: logger}
}

const eventPayloadMaxBytes = 1 << 20

func (h *TimelineHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	var ev store.TimelineEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, eventPayloadMaxBytes))
	if err := dec.Decode(&ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	ev.CaseID = caseID
	id, err := h.events.AppendEvent(r.Context(), &ev)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *TimelineHandler) Reconstruct(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	filter, err := parseEventFilter(r, caseID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.svc.ReconstructTimeline(r.Context(), filter)
	if err != nil {
		if errors.Is(err, store.ErrInvalidFilter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.serverError(w, r, err)
		return
	}
	if result.Events == nil {
		result.Events = []store.TimelineEvent{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TimelineHandler) Visualization(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	granularity := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("granularity")))
	if granularity == "" {
		granularity = "hour"
	}
	data, err := h.svc.VisualizationData(r.Context(), caseID, granularity)
	if err != nil {
		if errors.Is(err, timeline.ErrUnknownGranularity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *TimelineHandler) Export(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	out, err := h.svc.Export(r.Context(), caseID, format)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case "xml":
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (h *TimelineHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	patterns, err := h.svc.Patterns(r.Context(), caseID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if patterns == nil {
		patterns = []store.Pattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (h *TimelineHandler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	caseID := strings.TrimSpace(urlParam(r, "case_id"))
	if caseID == "" {
		http.Error(w, "case_id required", http.StatusBadRequest)
		return
	}
	var p store.Pattern
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, eventPayloadMaxBytes))
	if err := dec.Decode(&p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	id, err := h.svc.SavePattern(r.Context(), caseID, &p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type correlateRequest struct {
	Event1ID   string  `json:"event1_id"`
	Event2ID   string  `json:"event2_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

func (h *TimelineHandler) Correlate(w http.ResponseWriter, r *http.Request) {
	var req correlateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, eventPayloadMaxBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	err := h.svc.CorrelateEvents(r.Context(), req.Event1ID, req.Event2ID, req.Type, req.Confidence)
	if err != nil {
		if errors.Is(err, timeline.ErrEventNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "correlated"})
}

func (h *TimelineHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}

func parseEventFilter(r *http.Request, caseID string) (store.EventFilter, error) {
	q := r.URL.Query()
	filter := store.EventFilter{
		CaseID:       caseID,
		SourceTypes:  splitParam(q.Get("source_types")),
		Sources:      splitParam(q.Get("sources")),
		Severities:   splitParam(q.Get("severities")),
		Tags:         splitParam(q.Get("tags")),
		EntityTypes:  splitParam(q.Get("entity_types")),
		EntityValues: splitParam(q.Get("entity_values")),
		TextSearch:   q.Get("q"),
		Limit:        parseIntDefault(q.Get("limit"), 0),
		Offset:       parseIntDefault(q.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid start time")
		}
		filter.StartTime = &ts
	}
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid end time")
		}
		filter.EndTime = &ts
	}
	if raw := strings.ToLower(strings.TrimSpace(q.Get("automated"))); raw != "" {
		val := raw == "1" || raw == "true"
		filter.Automated = &val
	}
	return filter, nil
}

func splitParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func parseIntDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
