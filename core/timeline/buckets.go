package timeline

import (
	"errors"
	"fmt"
	"time"

	"kestrel-irp/core/store"
)

var ErrUnknownGranularity = errors.New("unknown granularity")

type TimeBucket struct {
	Start    time.Time      `json:"start"`
	Count    int            `json:"count"`
	Severity map[string]int `json:"severity"`
	Sources  map[string]int `json:"sources"`
}

type QuietPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type VisualizationData struct {
	CaseID       string        `json:"case_id"`
	Granularity  string        `json:"granularity"`
	BucketSize   time.Duration `json:"bucket_size"`
	Buckets      []TimeBucket  `json:"buckets"`
	PeakActivity *time.Time    `json:"peak_activity,omitempty"`
	QuietPeriods []QuietPeriod `json:"quiet_periods,omitempty"`
	TotalEvents  int           `json:"total_events"`
}

func bucketSize(granularity string) (time.Duration, error) {
	switch granularity {
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	case "week":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownGranularity, granularity)
	}
}

// Bucketize aggregates the ascending-sorted batch into fixed-size
// contiguous buckets spanning [min ts, max ts]. Peak activity is the
// start of the first bucket with the maximum count. Quiet periods are
// maximal runs of empty buckets; a run that reaches the final bucket
// is closed at the end of the bucket range.
func Bucketize(caseID, granularity string, events []store.TimelineEvent) (*VisualizationData, error) {
	size, err := bucketSize(granularity)
	if err != nil {
		return nil, err
	}
	data := &VisualizationData{
		CaseID:      caseID,
		Granularity: granularity,
		BucketSize:  size,
		TotalEvents: len(events),
	}
	if len(events) == 0 {
		return data, nil
	}

	minTS := events[0].Timestamp
	maxTS := events[len(events)-1].Timestamp
	bucketCount := int(maxTS.Sub(minTS)/size) + 1

	buckets := make([]TimeBucket, bucketCount)
	for i := range buckets {
		buckets[i] = TimeBucket{
			Start:    minTS.Add(time.Duration(i) * size),
			Severity: map[string]int{},
			Sources:  map[string]int{},
		}
	}
	for _, ev := range events {
		idx := int(ev.Timestamp.Sub(minTS) / size)
		if idx < 0 || idx >= bucketCount {
			continue
		}
		buckets[idx].Count++
		sev := ev.Severity
		if sev == "" {
			sev = "unknown"
		}
		buckets[idx].Severity[sev]++
		buckets[idx].Sources[ev.SourceType]++
	}
	data.Buckets = buckets

	peakIdx := 0
	for i, b := range buckets {
		if b.Count > buckets[peakIdx].Count {
			peakIdx = i
		}
	}
	if buckets[peakIdx].Count > 0 {
		peak := buckets[peakIdx].Start
		data.PeakActivity = &peak
	}

	var quietStart *time.Time
	for _, b := range buckets {
		if b.Count == 0 {
			if quietStart == nil {
				start := b.Start
				quietStart = &start
			}
			continue
		}
		if quietStart != nil {
			data.QuietPeriods = append(data.QuietPeriods, QuietPeriod{Start: *quietStart, End: b.Start})
			quietStart = nil
		}
	}
	if quietStart != nil {
		end := buckets[bucketCount-1].Start.Add(size)
		data.QuietPeriods = append(data.QuietPeriods, QuietPeriod{Start: *quietStart, End: end})
	}
	return data, nil
}
