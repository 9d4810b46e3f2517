package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kestrel-irp/config"
	"kestrel-irp/core/store"
	"kestrel-irp/core/utils"
)

var ErrEventNotFound = errors.New("event not found")

// Analysis is the aggregate result of one reconstruction run over a
// single fetched batch.
type Analysis struct {
	TotalEvents       int                     `json:"total_events"`
	EventFrequency    map[string]int          `json:"event_frequency"`
	SourceBreakdown   map[string]int          `json:"source_breakdown"`
	SeverityBreakdown map[string]int          `json:"severity_breakdown"`
	Patterns          []store.Pattern         `json:"patterns"`
	Gaps              []store.TimelineGap     `json:"gaps"`
	Clusters          []store.TimelineCluster `json:"clusters"`
}

type Reconstruction struct {
	Events   []store.TimelineEvent `json:"events"`
	Analysis Analysis              `json:"analysis"`
}

// Service is the timeline reconstruction and correlation engine. One
// ReconstructTimeline call is a single synchronous computation: the
// store query is the only suspension point, and the fetched batch is
// immutable for the rest of the run.
type Service struct {
	cfg      *config.AppConfig
	events   store.EventsStore
	analysis store.AnalysisStore
	logger   *utils.Logger

	mu        sync.RWMutex
	rules     []CorrelationRule
	listeners []PatternListener
}

func NewService(cfg *config.AppConfig, events store.EventsStore, analysis store.AnalysisStore, logger *utils.Logger) *Service {
	return &Service{
		cfg:      cfg,
		events:   events,
		analysis: analysis,
		logger:   logger,
		rules:    DefaultRules(),
	}
}

// SetRules replaces the active rule set; disabled rules are kept but
// skipped during evaluation.
func (s *Service) SetRules(rules []CorrelationRule) {
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
}

func (s *Service) Rules() []CorrelationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CorrelationRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// RegisterListener subscribes a downstream consumer to detected
// patterns. The registry is scoped to this service instance.
func (s *Service) RegisterListener(l PatternListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Service) notify(caseID string, p store.Pattern) {
	s.mu.RLock()
	listeners := make([]PatternListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.PatternDetected(caseID, p)
	}
}

// ReconstructTimeline fetches the filtered batch once, then runs
// breakdown, correlation, gap and cluster analysis over it. Detected
// patterns are appended to the per-case pattern store; gaps and
// clusters are persisted only when configured. An empty batch yields
// zero-valued results, never an error.
func (s *Service) ReconstructTimeline(ctx context.Context, filter store.EventFilter) (*Reconstruction, error) {
	started := time.Now()
	events, err := s.events.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	analysis := Analysis{
		TotalEvents:       len(events),
		EventFrequency:    EventFrequency(events),
		SourceBreakdown:   SourceBreakdown(events),
		SeverityBreakdown: SeverityBreakdown(events),
		Patterns:          DetectPatterns(events, s.Rules()),
		Gaps:              DetectGaps(events, s.cfg.EffectiveGapThreshold()),
		Clusters:          BuildClusters(events, s.cfg.EffectiveClusterWindow()),
	}

	for i := range analysis.Patterns {
		p := &analysis.Patterns[i]
		if _, err := s.analysis.SavePattern(ctx, p); err != nil {
			return nil, fmt.Errorf("persist pattern %s: %w", p.Type, err)
		}
		patternsDetectedTotal.WithLabelValues(p.Type).Inc()
		s.notify(p.CaseID, *p)
	}
	if s.cfg != nil && s.cfg.Timeline.PersistDerived {
		for i := range analysis.Gaps {
			if _, err := s.analysis.SaveGap(ctx, &analysis.Gaps[i]); err != nil {
				return nil, fmt.Errorf("persist gap: %w", err)
			}
		}
		for i := range analysis.Clusters {
			if _, err := s.analysis.SaveCluster(ctx, &analysis.Clusters[i]); err != nil {
				return nil, fmt.Errorf("persist cluster: %w", err)
			}
		}
	}

	reconstructionsTotal.Inc()
	reconstructionDuration.Observe(time.Since(started).Seconds())
	if s.logger != nil {
		s.logger.Infof("timeline reconstructed: case=%s events=%d patterns=%d gaps=%d clusters=%d",
			filter.CaseID, len(events), len(analysis.Patterns), len(analysis.Gaps), len(analysis.Clusters))
	}
	return &Reconstruction{Events: events, Analysis: analysis}, nil
}

// VisualizationData aggregates a case's full timeline into fixed-size
// buckets for charting.
func (s *Service) VisualizationData(ctx context.Context, caseID, granularity string) (*VisualizationData, error) {
	events, err := s.events.QueryEvents(ctx, store.EventFilter{CaseID: caseID})
	if err != nil {
		return nil, err
	}
	return Bucketize(caseID, granularity, events)
}

// Export serializes a case's events and persisted patterns. The
// configured export limit, when set, caps the event count.
func (s *Service) Export(ctx context.Context, caseID, format string) (string, error) {
	filter := store.EventFilter{CaseID: caseID}
	if s.cfg != nil && s.cfg.Timeline.ExportLimit > 0 {
		filter.Limit = s.cfg.Timeline.ExportLimit
	}
	events, err := s.events.QueryEvents(ctx, filter)
	if err != nil {
		return "", err
	}
	patterns, err := s.analysis.ListPatterns(ctx, caseID)
	if err != nil {
		return "", err
	}
	out, err := ExportTimeline(caseID, events, patterns, format)
	if err != nil {
		return "", err
	}
	exportsTotal.WithLabelValues(normalizeFormat(format)).Inc()
	return out, nil
}

func normalizeFormat(format string) string {
	switch format {
	case "csv", "xml", "json":
		return format
	default:
		return "json"
	}
}

func (s *Service) Patterns(ctx context.Context, caseID string) ([]store.Pattern, error) {
	return s.analysis.ListPatterns(ctx, caseID)
}

// SavePattern appends an externally supplied pattern (analyst tooling,
// import) to the case's pattern log.
func (s *Service) SavePattern(ctx context.Context, caseID string, p *store.Pattern) (string, error) {
	if p == nil {
		return "", errors.New("nil pattern")
	}
	p.CaseID = caseID
	if p.Confidence < 0 || p.Confidence > 1 {
		return "", fmt.Errorf("confidence %v out of range [0,1]", p.Confidence)
	}
	id, err := s.analysis.SavePattern(ctx, p)
	if err != nil {
		return "", err
	}
	s.notify(caseID, *p)
	return id, nil
}

// CorrelateEvents is the manual analyst correlation hook: both events
// must exist, the correlation is logged and announced to listeners,
// and nothing is persisted.
func (s *Service) CorrelateEvents(ctx context.Context, event1ID, event2ID, corrType string, confidence float64) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", confidence)
	}
	ev1, err := s.events.GetEvent(ctx, event1ID)
	if err != nil {
		return err
	}
	ev2, err := s.events.GetEvent(ctx, event2ID)
	if err != nil {
		return err
	}
	if ev1 == nil || ev2 == nil {
		return ErrEventNotFound
	}
	start, end := ev1.Timestamp, ev2.Timestamp
	if end.Before(start) {
		start, end = end, start
	}
	manual := store.Pattern{
		CaseID:       ev1.CaseID,
		Type:         "manual-correlation",
		Description:  fmt.Sprintf("analyst correlation (%s) between %q and %q", corrType, ev1.Event, ev2.Event),
		EventIDs:     []string{ev1.ID, ev2.ID},
		Confidence:   confidence,
		StartTime:    start,
		EndTime:      end,
		Significance: "medium",
	}
	if s.logger != nil {
		s.logger.Infof("manual correlation: case=%s type=%s events=%s,%s confidence=%.2f", ev1.CaseID, corrType, ev1.ID, ev2.ID, confidence)
	}
	s.notify(ev1.CaseID, manual)
	return nil
}
