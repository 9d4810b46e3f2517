package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

var (
	ErrConflict      = errors.New("conflict")
	ErrInvalidFilter = errors.New("invalid filter")
)

// TimelineEvent is a single timestamped fact in a case's history.
// Events are append-only; nothing updates a row once written.
type TimelineEvent struct {
	ID              string            `json:"id"`
	CaseID          string            `json:"case_id"`
	Timestamp       time.Time         `json:"timestamp"`
	Event           string            `json:"event"`
	Description     string            `json:"description,omitempty"`
	Source          string            `json:"source,omitempty"`
	SourceType      string            `json:"source_type"`
	Severity        string            `json:"severity,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
	Automated       bool              `json:"automated"`
	Tags            []string          `json:"tags,omitempty"`
	RelatedEntities []RelatedEntity   `json:"related_entities,omitempty"`
	Attachments     []string          `json:"attachments,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type RelatedEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

var validSourceTypes = map[string]struct{}{
	"log":         {},
	"alert":       {},
	"user-action": {},
	"system":      {},
	"evidence":    {},
	"external":    {},
}

var validSeverities = map[string]struct{}{
	"low":      {},
	"medium":   {},
	"high":     {},
	"critical": {},
}

var validEntityTypes = map[string]struct{}{
	"user":    {},
	"host":    {},
	"ip":      {},
	"domain":  {},
	"file":    {},
	"process": {},
}

func ValidSourceType(s string) bool {
	_, ok := validSourceTypes[s]
	return ok
}

func ValidEntityType(s string) bool {
	_, ok := validEntityTypes[s]
	return ok
}

func ValidSeverity(s string) bool {
	_, ok := validSeverities[s]
	return ok
}

// EventFilter narrows a query. Every provided predicate is ANDed.
// EntityTypes and EntityValues are positionally paired; mismatched
// lengths are rejected up front.
type EventFilter struct {
	CaseID       string
	StartTime    *time.Time
	EndTime      *time.Time
	SourceTypes  []string
	Sources      []string
	Severities   []string
	Tags         []string
	EntityTypes  []string
	EntityValues []string
	TextSearch   string
	Automated    *bool
	Limit        int
	Offset       int
}

func (f EventFilter) Validate() error {
	if len(f.EntityTypes) != len(f.EntityValues) {
		return fmt.Errorf("%w: entity_types length %d != entity_values length %d", ErrInvalidFilter, len(f.EntityTypes), len(f.EntityValues))
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	}
	return nil
}

type EventsStore interface {
	AppendEvent(ctx context.Context, ev *TimelineEvent) (string, error)
	QueryEvents(ctx context.Context, filter EventFilter) ([]TimelineEvent, error)
	GetEvent(ctx context.Context, id string) (*TimelineEvent, error)
	CountEvents(ctx context.Context, caseID string) (int, error)
}

type eventsStore struct {
	db     *sql.DB
	driver string
}

func NewEventsStore(db *sql.DB, driver string) EventsStore {
	return &eventsStore{db: db, driver: driver}
}

func (s *eventsStore) AppendEvent(ctx context.Context, ev *TimelineEvent) (string, error) {
	if ev == nil {
		return "", errors.New("nil event")
	}
	if strings.TrimSpace(ev.CaseID) == "" {
		return "", errors.New("event requires case_id")
	}
	if strings.TrimSpace(ev.Event) == "" {
		return "", errors.New("event requires a label")
	}
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV4()).String()
	}
	if ev.SourceType == "" {
		ev.SourceType = "log"
	}
	if !ValidSourceType(ev.SourceType) {
		return "", fmt.Errorf("unknown source_type %q", ev.SourceType)
	}
	for _, ent := range ev.RelatedEntities {
		if !ValidEntityType(ent.Type) {
			return "", fmt.Errorf("unknown entity type %q", ent.Type)
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	} else {
		ev.Timestamp = ev.Timestamp.UTC()
	}
	ev.Severity = strings.ToLower(strings.TrimSpace(ev.Severity))
	if ev.Severity != "" && !ValidSeverity(ev.Severity) {
		return "", fmt.Errorf("unknown severity %q", ev.Severity)
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, rebind(s.driver, `
		INSERT INTO timeline_events(id, case_id, ts, event, description, source, source_type, severity, user_id, automated, tags, related_entities, attachments, metadata, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		ev.ID, ev.CaseID, ev.Timestamp, strings.TrimSpace(ev.Event), ev.Description, strings.TrimSpace(ev.Source), ev.SourceType, ev.Severity, ev.UserID, boolToInt(ev.Automated),
		stringsToJSON(ev.Tags), entitiesToJSON(ev.RelatedEntities), stringsToJSON(ev.Attachments), metadataToJSON(ev.Metadata), now)
	if err != nil {
		return "", err
	}
	ev.CreatedAt = now
	return ev.ID, nil
}

// QueryEvents pushes scalar predicates into SQL and applies tag, entity
// and text predicates in Go after scanning, since those fields live in
// JSON columns. Results are always ascending by timestamp; pagination
// runs after sorting and post-filtering.
func (s *eventsStore) QueryEvents(ctx context.Context, filter EventFilter) ([]TimelineEvent, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var clauses []string
	var args []any
	if filter.CaseID != "" {
		clauses = append(clauses, "case_id=?")
		args = append(args, filter.CaseID)
	}
	if filter.StartTime != nil {
		clauses = append(clauses, "ts>=?")
		args = append(args, filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "ts<=?")
		args = append(args, filter.EndTime.UTC())
	}
	if in, inArgs := inClause("source_type", filter.SourceTypes); in != "" {
		clauses = append(clauses, in)
		args = append(args, inArgs...)
	}
	if in, inArgs := inClause("source", filter.Sources); in != "" {
		clauses = append(clauses, in)
		args = append(args, inArgs...)
	}
	if in, inArgs := inClause("severity", filter.Severities); in != "" {
		clauses = append(clauses, in)
		args = append(args, inArgs...)
	}
	if filter.Automated != nil {
		clauses = append(clauses, "automated=?")
		args = append(args, boolToInt(*filter.Automated))
	}
	query := `SELECT id, case_id, ts, event, description, source, source_type, severity, user_id, automated, tags, related_entities, attachments, metadata, created_at FROM timeline_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY ts ASC, id ASC"
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TimelineEvent
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		if !matchesEvent(ev, filter) {
			continue
		}
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(res, filter.Limit, filter.Offset), nil
}

func (s *eventsStore) GetEvent(ctx context.Context, id string) (*TimelineEvent, error) {
	row := s.db.QueryRowContext(ctx, rebind(s.driver, `
		SELECT id, case_id, ts, event, description, source, source_type, severity, user_id, automated, tags, related_entities, attachments, metadata, created_at
		FROM timeline_events WHERE id=?`), id)
	var ev TimelineEvent
	var automated int
	var tagsRaw, entitiesRaw, attachmentsRaw, metaRaw string
	if err := row.Scan(&ev.ID, &ev.CaseID, &ev.Timestamp, &ev.Event, &ev.Description, &ev.Source, &ev.SourceType, &ev.Severity, &ev.UserID, &automated, &tagsRaw, &entitiesRaw, &attachmentsRaw, &metaRaw, &ev.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ev.Automated = automated == 1
	_ = json.Unmarshal([]byte(tagsRaw), &ev.Tags)
	_ = json.Unmarshal([]byte(entitiesRaw), &ev.RelatedEntities)
	_ = json.Unmarshal([]byte(attachmentsRaw), &ev.Attachments)
	_ = json.Unmarshal([]byte(metaRaw), &ev.Metadata)
	return &ev, nil
}

func (s *eventsStore) CountEvents(ctx context.Context, caseID string) (int, error) {
	row := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT COUNT(1) FROM timeline_events WHERE case_id=?`), caseID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanEventRow(rows *sql.Rows) (TimelineEvent, error) {
	var ev TimelineEvent
	var automated int
	var tagsRaw, entitiesRaw, attachmentsRaw, metaRaw string
	if err := rows.Scan(&ev.ID, &ev.CaseID, &ev.Timestamp, &ev.Event, &ev.Description, &ev.Source, &ev.SourceType, &ev.Severity, &ev.UserID, &automated, &tagsRaw, &entitiesRaw, &attachmentsRaw, &metaRaw, &ev.CreatedAt); err != nil {
		return ev, err
	}
	ev.Automated = automated == 1
	_ = json.Unmarshal([]byte(tagsRaw), &ev.Tags)
	_ = json.Unmarshal([]byte(entitiesRaw), &ev.RelatedEntities)
	_ = json.Unmarshal([]byte(attachmentsRaw), &ev.Attachments)
	_ = json.Unmarshal([]byte(metaRaw), &ev.Metadata)
	return ev, nil
}

// matchesEvent applies the predicates that cannot be pushed to SQL.
// Tags: the event carries at least one requested tag. Entities: the
// event references at least one requested (type, value) pair. Text:
// case-insensitive substring over label and description.
func matchesEvent(ev TimelineEvent, filter EventFilter) bool {
	if len(filter.Tags) > 0 {
		found := false
		for _, want := range filter.Tags {
			for _, have := range ev.Tags {
				if have == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.EntityTypes) > 0 {
		found := false
		for i := range filter.EntityTypes {
			for _, ent := range ev.RelatedEntities {
				if ent.Type == filter.EntityTypes[i] && ent.Value == filter.EntityValues[i] {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(filter.TextSearch)); q != "" {
		if !strings.Contains(strings.ToLower(ev.Event), q) && !strings.Contains(strings.ToLower(ev.Description), q) {
			return false
		}
	}
	return true
}

func paginate(events []TimelineEvent, limit, offset int) []TimelineEvent {
	if offset > 0 {
		if offset >= len(events) {
			return nil
		}
		events = events[offset:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}

func inClause(column string, values []string) (string, []any) {
	var clean []string
	for _, raw := range values {
		if strings.TrimSpace(raw) != "" {
			clean = append(clean, strings.TrimSpace(raw))
		}
	}
	if len(clean) == 0 {
		return "", nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(clean)), ",")
	args := make([]any, 0, len(clean))
	for _, v := range clean {
		args = append(args, v)
	}
	return fmt.Sprintf("%s IN (%s)", column, placeholders), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stringsToJSON(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func entitiesToJSON(entities []RelatedEntity) string {
	if len(entities) == 0 {
		return "[]"
	}
	b, err := json.Marshal(entities)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func metadataToJSON(meta map[string]string) string {
	if len(meta) == 0 {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
