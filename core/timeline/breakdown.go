package timeline

import "kestrel-irp/core/store"

// EventFrequency counts events per label.
func EventFrequency(events []store.TimelineEvent) map[string]int {
	freq := map[string]int{}
	for _, ev := range events {
		freq[ev.Event]++
	}
	return freq
}

// SourceBreakdown counts events per source type.
func SourceBreakdown(events []store.TimelineEvent) map[string]int {
	breakdown := map[string]int{}
	for _, ev := range events {
		breakdown[ev.SourceType]++
	}
	return breakdown
}

// SeverityBreakdown counts events per severity; events without one are
// counted under "unknown".
func SeverityBreakdown(events []store.TimelineEvent) map[string]int {
	breakdown := map[string]int{}
	for _, ev := range events {
		sev := ev.Severity
		if sev == "" {
			sev = "unknown"
		}
		breakdown[sev]++
	}
	return breakdown
}
