package timeline

import (
	"fmt"
	"time"

	"kestrel-irp/core/store"
)

const (
	gapSuspiciousOver = 4 * time.Hour
	gapCriticalOver   = 24 * time.Hour
)

// DetectGaps scans adjacent pairs of the ascending-sorted batch and
// reports silences longer than the threshold. Fewer than two events
// means nothing to compare.
func DetectGaps(events []store.TimelineEvent, threshold time.Duration) []store.TimelineGap {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	if len(events) < 2 {
		return nil
	}
	var gaps []store.TimelineGap
	for i := 1; i < len(events); i++ {
		prev := events[i-1]
		curr := events[i]
		gap := curr.Timestamp.Sub(prev.Timestamp)
		if gap <= threshold {
			continue
		}
		gaps = append(gaps, store.TimelineGap{
			CaseID:       curr.CaseID,
			StartTime:    prev.Timestamp,
			EndTime:      curr.Timestamp,
			DurationMs:   gap.Milliseconds(),
			Significance: gapSignificance(gap),
			Context:      fmt.Sprintf("between %q and %q", prev.Event, curr.Event),
		})
	}
	return gaps
}

func gapSignificance(gap time.Duration) string {
	switch {
	case gap > gapCriticalOver:
		return "critical"
	case gap > gapSuspiciousOver:
		return "suspicious"
	default:
		return "normal"
	}
}
