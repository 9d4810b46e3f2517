package timeline

import (
	"testing"
	"time"

	"kestrel-irp/core/store"
)

func bruteForceRule() CorrelationRule {
	for _, r := range DefaultRules() {
		if r.ID == "brute-force-attack" {
			return r
		}
	}
	panic("brute-force-attack rule missing")
}

func TestDetectPatternsBruteForce(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []store.TimelineEvent{
		makeEvent("e1", "login-failed", "log", "low", base),
		makeEvent("e2", "login-failed", "log", "low", base.Add(time.Minute)),
		makeEvent("e3", "login-success", "log", "low", base.Add(2*time.Minute)),
	}
	patterns := DetectPatterns(events, []CorrelationRule{bruteForceRule()})
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	p := patterns[0]
	if p.Type != "brute-force-attack" {
		t.Fatalf("pattern type = %q", p.Type)
	}
	if len(p.EventIDs) != 3 {
		t.Fatalf("pattern has %d events, want 3", len(p.EventIDs))
	}
	if !p.StartTime.Equal(base) || !p.EndTime.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("pattern window [%s, %s] wrong", p.StartTime, p.EndTime)
	}
	if p.Significance != "high" {
		t.Fatalf("significance = %q, want high", p.Significance)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		t.Fatalf("confidence %f out of [0,1]", p.Confidence)
	}
	// span 2m of a 15m max window, full count: (13/15 + 1) / 2.
	want := (1.0 - 2.0/15.0 + 1.0) / 2.0
	if p.Confidence < want-1e-9 || p.Confidence > want+1e-9 {
		t.Fatalf("confidence = %f, want %f", p.Confidence, want)
	}
}

func TestDetectPatternsRespectsWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// Second and third events fall outside the 10m window anchored at
	// the first classified event.
	events := []store.TimelineEvent{
		makeEvent("e1", "login-failed", "log", "", base),
		makeEvent("e2", "login-failed", "log", "", base.Add(20*time.Minute)),
		makeEvent("e3", "login-success", "log", "", base.Add(25*time.Minute)),
	}
	if patterns := DetectPatterns(events, []CorrelationRule{bruteForceRule()}); len(patterns) != 0 {
		t.Fatalf("events outside window produced %d patterns", len(patterns))
	}
}

func TestDetectPatternsDisabledRule(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []store.TimelineEvent{
		makeEvent("e1", "login-failed", "log", "", base),
		makeEvent("e2", "login-failed", "log", "", base.Add(time.Minute)),
		makeEvent("e3", "login-success", "log", "", base.Add(2*time.Minute)),
	}
	rule := bruteForceRule()
	rule.Enabled = false
	if patterns := DetectPatterns(events, []CorrelationRule{rule}); len(patterns) != 0 {
		t.Fatalf("disabled rule produced %d patterns", len(patterns))
	}
}

func TestClassificationFirstStepWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// Both events contain both tokens; first-match-wins pins them to
	// the first step, whose short window the second event misses.
	rule := CorrelationRule{
		ID:   "overlap",
		Name: "Overlapping Tokens",
		Steps: []PatternStep{
			{EventType: "login", TimeWindow: 5 * time.Minute},
			{EventType: "login-failed", TimeWindow: time.Hour},
		},
		Significance: "low",
		Enabled:      true,
	}
	events := []store.TimelineEvent{
		makeEvent("e1", "login-failed", "log", "", base),
		makeEvent("e2", "login-failed", "log", "", base.Add(30*time.Minute)),
	}
	if patterns := DetectPatterns(events, []CorrelationRule{rule}); len(patterns) != 0 {
		t.Fatalf("anchor should use the first step's window, got %d patterns", len(patterns))
	}
	// Inside the first step's window both qualify.
	events[1].Timestamp = base.Add(3 * time.Minute)
	patterns := DetectPatterns(events, []CorrelationRule{rule})
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern inside window, got %d", len(patterns))
	}
}

func TestStepConditionsNarrowMatches(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rule := CorrelationRule{
		ID:   "alert-only",
		Name: "Alert Only",
		Steps: []PatternStep{
			{EventType: "scan", TimeWindow: time.Hour, Conditions: StepConditions{SourceType: "alert"}},
			{EventType: "scan", TimeWindow: time.Hour, Conditions: StepConditions{SourceType: "alert"}},
		},
		Significance: "medium",
		Enabled:      true,
	}
	events := []store.TimelineEvent{
		makeEvent("e1", "port-scan", "log", "", base),
		makeEvent("e2", "port-scan", "log", "", base.Add(time.Minute)),
	}
	if patterns := DetectPatterns(events, []CorrelationRule{rule}); len(patterns) != 0 {
		t.Fatalf("log events matched an alert-only rule")
	}
	events[0].SourceType = "alert"
	events[1].SourceType = "alert"
	if patterns := DetectPatterns(events, []CorrelationRule{rule}); len(patterns) != 1 {
		t.Fatalf("alert events did not match alert-only rule")
	}
}

func TestPatternConfidenceBounds(t *testing.T) {
	cases := []struct {
		span      time.Duration
		maxWindow time.Duration
		matches   int
		steps     int
	}{
		{0, time.Minute, 1, 1},
		{time.Minute, time.Minute, 3, 3},
		{2 * time.Hour, time.Minute, 10, 2},
		{time.Second, 24 * time.Hour, 100, 3},
		{time.Hour, 0, 5, 5},
	}
	for _, tc := range cases {
		got := patternConfidence(tc.span, tc.maxWindow, tc.matches, tc.steps)
		if got < 0 || got > 1 {
			t.Fatalf("confidence(%v, %v, %d, %d) = %f out of [0,1]", tc.span, tc.maxWindow, tc.matches, tc.steps, got)
		}
	}
}

func TestDetectPatternsEmptyBatch(t *testing.T) {
	if patterns := DetectPatterns(nil, DefaultRules()); len(patterns) != 0 {
		t.Fatalf("empty batch produced %d patterns", len(patterns))
	}
}
