package timeline

import (
	"testing"
	"time"

	"kestrel-irp/core/store"
)

func makeEvent(id, label, sourceType, severity string, ts time.Time) store.TimelineEvent {
	return store.TimelineEvent{
		ID:         id,
		CaseID:     "case-1",
		Timestamp:  ts,
		Event:      label,
		SourceType: sourceType,
		Severity:   severity,
	}
}

func TestBreakdownSumsMatchEventCount(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []store.TimelineEvent{
		makeEvent("e1", "login-failed", "log", "low", base),
		makeEvent("e2", "login-failed", "log", "", base.Add(time.Minute)),
		makeEvent("e3", "malware-alert", "alert", "critical", base.Add(2*time.Minute)),
		makeEvent("e4", "analyst-note", "user-action", "medium", base.Add(3*time.Minute)),
		makeEvent("e5", "login-success", "log", "low", base.Add(4*time.Minute)),
	}
	freq := EventFrequency(events)
	sources := SourceBreakdown(events)
	severities := SeverityBreakdown(events)
	for name, m := range map[string]map[string]int{"frequency": freq, "sources": sources, "severities": severities} {
		sum := 0
		for _, n := range m {
			sum += n
		}
		if sum != len(events) {
			t.Fatalf("%s sum = %d, want %d", name, sum, len(events))
		}
	}
	if freq["login-failed"] != 2 {
		t.Fatalf("login-failed count = %d, want 2", freq["login-failed"])
	}
	if sources["alert"] != 1 {
		t.Fatalf("alert source count = %d, want 1", sources["alert"])
	}
	if severities["unknown"] != 1 {
		t.Fatalf("unknown severity count = %d, want 1", severities["unknown"])
	}
}

func TestBreakdownEmptyInput(t *testing.T) {
	if n := len(EventFrequency(nil)); n != 0 {
		t.Fatalf("frequency of empty input has %d entries", n)
	}
	if n := len(SourceBreakdown(nil)); n != 0 {
		t.Fatalf("source breakdown of empty input has %d entries", n)
	}
	if n := len(SeverityBreakdown(nil)); n != 0 {
		t.Fatalf("severity breakdown of empty input has %d entries", n)
	}
}
