package timeline

import (
	"strings"
	"testing"
	"time"

	"kestrel-irp/core/store"
)

func TestDetectGapsThreshold(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []store.TimelineEvent{
		makeEvent("e1", "case-opened", "system", "", base),
		makeEvent("e2", "first-alert", "alert", "high", base.Add(2*time.Minute)),
		makeEvent("e3", "triage-started", "user-action", "", base.Add(40*time.Minute)),
	}
	gaps := DetectGaps(events, 30*time.Minute)
	if len(gaps) != 1 {
		t.Fatalf("expected exactly 1 gap, got %d", len(gaps))
	}
	g := gaps[0]
	if !g.StartTime.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("gap start = %s, want t+2m", g.StartTime)
	}
	if !g.EndTime.Equal(base.Add(40 * time.Minute)) {
		t.Fatalf("gap end = %s, want t+40m", g.EndTime)
	}
	if g.DurationMs != (38 * time.Minute).Milliseconds() {
		t.Fatalf("gap duration = %dms, want 38m", g.DurationMs)
	}
	if g.Significance != "normal" {
		t.Fatalf("gap significance = %q, want normal", g.Significance)
	}
	if !strings.Contains(g.Context, "first-alert") || !strings.Contains(g.Context, "triage-started") {
		t.Fatalf("gap context %q does not name bounding events", g.Context)
	}
}

func TestDetectGapsClassification(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		gap  time.Duration
		want string
	}{
		{"just over threshold", 31 * time.Minute, "normal"},
		{"four hours exactly", 4 * time.Hour, "normal"},
		{"over four hours", 4*time.Hour + time.Minute, "suspicious"},
		{"day exactly", 24 * time.Hour, "suspicious"},
		{"over a day", 25 * time.Hour, "critical"},
	}
	for _, tc := range cases {
		events := []store.TimelineEvent{
			makeEvent("a", "start", "log", "", base),
			makeEvent("b", "end", "log", "", base.Add(tc.gap)),
		}
		gaps := DetectGaps(events, 30*time.Minute)
		if len(gaps) != 1 {
			t.Fatalf("%s: expected 1 gap, got %d", tc.name, len(gaps))
		}
		if gaps[0].Significance != tc.want {
			t.Fatalf("%s: significance = %q, want %q", tc.name, gaps[0].Significance, tc.want)
		}
	}
}

func TestDetectGapsTooFewEvents(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if gaps := DetectGaps(nil, 30*time.Minute); len(gaps) != 0 {
		t.Fatalf("nil events produced %d gaps", len(gaps))
	}
	single := []store.TimelineEvent{makeEvent("a", "only", "log", "", base)}
	if gaps := DetectGaps(single, 30*time.Minute); len(gaps) != 0 {
		t.Fatalf("single event produced %d gaps", len(gaps))
	}
}

func TestDetectGapsNoGapAtThreshold(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []store.TimelineEvent{
		makeEvent("a", "start", "log", "", base),
		makeEvent("b", "end", "log", "", base.Add(30*time.Minute)),
	}
	if gaps := DetectGaps(events, 30*time.Minute); len(gaps) != 0 {
		t.Fatalf("exactly-threshold spacing produced %d gaps", len(gaps))
	}
}
