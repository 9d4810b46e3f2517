package timeline

import (
	"fmt"
	"strings"
	"time"

	"kestrel-irp/core/store"
)

type classifiedEvent struct {
	event store.TimelineEvent
	step  int
}

// DetectPatterns evaluates every enabled rule independently against
// the ascending-sorted batch and returns one pattern per rule that
// fires. Patterns carry no dedup key: re-running the analysis over the
// same events re-detects and re-emits the same logical pattern.
func DetectPatterns(events []store.TimelineEvent, rules []CorrelationRule) []store.Pattern {
	var patterns []store.Pattern
	for _, rule := range rules {
		if !rule.Enabled || len(rule.Steps) == 0 {
			continue
		}
		if p := evaluateRule(events, rule); p != nil {
			patterns = append(patterns, *p)
		}
	}
	return patterns
}

func evaluateRule(events []store.TimelineEvent, rule CorrelationRule) *store.Pattern {
	classified := classifyEvents(events, rule)
	if len(classified) == 0 {
		return nil
	}

	// The window anchors at the first classified event; its matched
	// step supplies the window length. Steps are evaluated
	// independently inside that window, not chained by step order.
	anchor := classified[0]
	windowStart := anchor.event.Timestamp
	windowEnd := windowStart.Add(rule.Steps[anchor.step].TimeWindow)

	var qualifying []store.TimelineEvent
	for _, ce := range classified {
		ts := ce.event.Timestamp
		if !ts.Before(windowStart) && !ts.After(windowEnd) {
			qualifying = append(qualifying, ce.event)
		}
	}
	if len(qualifying) < len(rule.Steps) {
		return nil
	}

	first := qualifying[0].Timestamp
	last := qualifying[0].Timestamp
	ids := make([]string, 0, len(qualifying))
	for _, ev := range qualifying {
		ids = append(ids, ev.ID)
		if ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	span := last.Sub(first)
	confidence := patternConfidence(span, rule.MaxWindow(), len(qualifying), len(rule.Steps))

	return &store.Pattern{
		CaseID:       anchor.event.CaseID,
		Type:         rule.ID,
		Description:  fmt.Sprintf("%s: %d correlated events over %s", rule.Name, len(qualifying), span.Round(time.Second)),
		EventIDs:     ids,
		Confidence:   confidence,
		StartTime:    first,
		EndTime:      last,
		Significance: rule.Significance,
		Metadata: store.PatternMetadata{
			RuleName:   rule.Name,
			StepCount:  len(rule.Steps),
			MatchCount: len(qualifying),
			WindowMs:   rule.MaxWindow().Milliseconds(),
		},
	}
}

// classifyEvents assigns each event to at most one pattern step, first
// matching step wins. Matching is case-insensitive substring
// containment of the step token in the event label, further narrowed
// by the step conditions when present.
func classifyEvents(events []store.TimelineEvent, rule CorrelationRule) []classifiedEvent {
	var out []classifiedEvent
	for _, ev := range events {
		label := strings.ToLower(ev.Event)
		for i, step := range rule.Steps {
			if !strings.Contains(label, strings.ToLower(step.EventType)) {
				continue
			}
			if !stepConditionsMatch(ev, step.Conditions) {
				continue
			}
			out = append(out, classifiedEvent{event: ev, step: i})
			break
		}
	}
	return out
}

func stepConditionsMatch(ev store.TimelineEvent, cond StepConditions) bool {
	if cond.SourceType != "" && ev.SourceType != cond.SourceType {
		return false
	}
	if cond.EventPattern != "" {
		pattern := strings.ToLower(cond.EventPattern)
		if !strings.Contains(strings.ToLower(ev.Event), pattern) && !strings.Contains(strings.ToLower(ev.Description), pattern) {
			return false
		}
	}
	return true
}

// patternConfidence averages a temporal term (tighter spans score
// higher) with a count term (more qualifying events score higher,
// capped at 1). The result is always in [0,1].
func patternConfidence(span, maxWindow time.Duration, matches, steps int) float64 {
	temporal := 0.0
	if maxWindow > 0 {
		temporal = 1 - float64(span)/float64(maxWindow)
		if temporal < 0 {
			temporal = 0
		}
	}
	count := float64(matches) / float64(steps)
	if count > 1 {
		count = 1
	}
	confidence := (temporal + count) / 2
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
