package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Pattern is one detected instance of a correlation rule firing.
// Rows are append-only and carry no uniqueness key, so repeated
// analysis runs over the same events produce duplicate rows.
type Pattern struct {
	ID           string          `json:"id"`
	CaseID       string          `json:"case_id"`
	Type         string          `json:"type"`
	Description  string          `json:"description,omitempty"`
	EventIDs     []string        `json:"event_ids"`
	Confidence   float64         `json:"confidence"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Significance string          `json:"significance"`
	CreatedAt    time.Time       `json:"created_at"`
	Metadata     PatternMetadata `json:"metadata,omitempty"`
}

// PatternMetadata is the structured part of a pattern row that used to
// be a free-form map: which rule fired and how the window resolved.
type PatternMetadata struct {
	RuleName    string `json:"rule_name,omitempty"`
	StepCount   int    `json:"step_count,omitempty"`
	MatchCount  int    `json:"match_count,omitempty"`
	WindowMs    int64  `json:"window_ms,omitempty"`
	AnalystNote string `json:"analyst_note,omitempty"`
}

type TimelineGap struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationMs   int64     `json:"duration_ms"`
	Significance string    `json:"significance"`
	Context      string    `json:"context,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type TimelineCluster struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	CenterTime time.Time `json:"center_time"`
	EventIDs   []string  `json:"event_ids"`
	RadiusMs   int64     `json:"radius_ms"`
	Density    float64   `json:"density"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

type AnalysisStore interface {
	SavePattern(ctx context.Context, p *Pattern) (string, error)
	ListPatterns(ctx context.Context, caseID string) ([]Pattern, error)
	SaveGap(ctx context.Context, g *TimelineGap) (string, error)
	ListGaps(ctx context.Context, caseID string) ([]TimelineGap, error)
	SaveCluster(ctx context.Context, c *TimelineCluster) (string, error)
	ListClusters(ctx context.Context, caseID string) ([]TimelineCluster, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type analysisStore struct {
	db     *sql.DB
	driver string
}

func NewAnalysisStore(db *sql.DB, driver string) AnalysisStore {
	return &analysisStore{db: db, driver: driver}
}

func (s *analysisStore) SavePattern(ctx context.Context, p *Pattern) (string, error) {
	if p == nil {
		return "", errors.New("nil pattern")
	}
	if strings.TrimSpace(p.CaseID) == "" {
		return "", errors.New("pattern requires case_id")
	}
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV4()).String()
	}
	if p.Significance == "" {
		p.Significance = "low"
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, rebind(s.driver, `
		INSERT INTO timeline_patterns(id, case_id, type, description, event_ids, confidence, start_time, end_time, significance, created_at, metadata)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		p.ID, p.CaseID, p.Type, p.Description, stringsToJSON(p.EventIDs), p.Confidence, p.StartTime.UTC(), p.EndTime.UTC(), p.Significance, now, patternMetaToJSON(p.Metadata))
	if err != nil {
		return "", err
	}
	p.CreatedAt = now
	return p.ID, nil
}

func (s *analysisStore) ListPatterns(ctx context.Context, caseID string) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, `
		SELECT id, case_id, type, description, event_ids, confidence, start_time, end_time, significance, created_at, metadata
		FROM timeline_patterns WHERE case_id=? ORDER BY created_at ASC, id ASC`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Pattern
	for rows.Next() {
		var p Pattern
		var idsRaw, metaRaw string
		if err := rows.Scan(&p.ID, &p.CaseID, &p.Type, &p.Description, &idsRaw, &p.Confidence, &p.StartTime, &p.EndTime, &p.Significance, &p.CreatedAt, &metaRaw); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(idsRaw), &p.EventIDs)
		_ = json.Unmarshal([]byte(metaRaw), &p.Metadata)
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *analysisStore) SaveGap(ctx context.Context, g *TimelineGap) (string, error) {
	if g == nil {
		return "", errors.New("nil gap")
	}
	if g.ID == "" {
		g.ID = uuid.Must(uuid.NewV4()).String()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, rebind(s.driver, `
		INSERT INTO timeline_gaps(id, case_id, start_time, end_time, duration_ms, significance, context, created_at, metadata)
		VALUES(?,?,?,?,?,?,?,?,'{}')`),
		g.ID, g.CaseID, g.StartTime.UTC(), g.EndTime.UTC(), g.DurationMs, g.Significance, g.Context, now)
	if err != nil {
		return "", err
	}
	g.CreatedAt = now
	return g.ID, nil
}

func (s *analysisStore) ListGaps(ctx context.Context, caseID string) ([]TimelineGap, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, `
		SELECT id, case_id, start_time, end_time, duration_ms, significance, context, created_at
		FROM timeline_gaps WHERE case_id=? ORDER BY start_time ASC, id ASC`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TimelineGap
	for rows.Next() {
		var g TimelineGap
		if err := rows.Scan(&g.ID, &g.CaseID, &g.StartTime, &g.EndTime, &g.DurationMs, &g.Significance, &g.Context, &g.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (s *analysisStore) SaveCluster(ctx context.Context, c *TimelineCluster) (string, error) {
	if c == nil {
		return "", errors.New("nil cluster")
	}
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV4()).String()
	}
	if c.Type == "" {
		c.Type = "normal-activity"
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, rebind(s.driver, `
		INSERT INTO timeline_clusters(id, case_id, center_time, event_ids, radius_ms, density, type, created_at, metadata)
		VALUES(?,?,?,?,?,?,?,?,'{}')`),
		c.ID, c.CaseID, c.CenterTime.UTC(), stringsToJSON(c.EventIDs), c.RadiusMs, c.Density, c.Type, now)
	if err != nil {
		return "", err
	}
	c.CreatedAt = now
	return c.ID, nil
}

func (s *analysisStore) ListClusters(ctx context.Context, caseID string) ([]TimelineCluster, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, `
		SELECT id, case_id, center_time, event_ids, radius_ms, density, type, created_at
		FROM timeline_clusters WHERE case_id=? ORDER BY center_time ASC, id ASC`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TimelineCluster
	for rows.Next() {
		var c TimelineCluster
		var idsRaw string
		if err := rows.Scan(&c.ID, &c.CaseID, &c.CenterTime, &idsRaw, &c.RadiusMs, &c.Density, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(idsRaw), &c.EventIDs)
		res = append(res, c)
	}
	return res, rows.Err()
}

// PruneBefore removes derived artifacts older than the cutoff. Events
// are never pruned here; they are the source of truth.
func (s *analysisStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"timeline_patterns", "timeline_gaps", "timeline_clusters"} {
		res, err := s.db.ExecContext(ctx, rebind(s.driver, `DELETE FROM `+table+` WHERE created_at < ?`), cutoff.UTC())
		if err != nil {
			return total, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func patternMetaToJSON(meta PatternMetadata) string {
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
