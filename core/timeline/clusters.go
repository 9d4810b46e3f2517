package timeline

import (
	"time"

	"kestrel-irp/core/store"
)

const minClusterSize = 3

// BuildClusters groups temporally dense runs of the ascending-sorted
// batch. An event joins the current cluster while it is within the
// window of the last member; runs shorter than three events are
// discarded.
func BuildClusters(events []store.TimelineEvent, window time.Duration) []store.TimelineCluster {
	if window <= 0 {
		window = 30 * time.Minute
	}
	if len(events) < minClusterSize {
		return nil
	}
	var clusters []store.TimelineCluster
	current := []store.TimelineEvent{events[0]}
	for _, ev := range events[1:] {
		last := current[len(current)-1]
		if ev.Timestamp.Sub(last.Timestamp) <= window {
			current = append(current, ev)
			continue
		}
		if c := closeCluster(current); c != nil {
			clusters = append(clusters, *c)
		}
		current = []store.TimelineEvent{ev}
	}
	if c := closeCluster(current); c != nil {
		clusters = append(clusters, *c)
	}
	return clusters
}

func closeCluster(members []store.TimelineEvent) *store.TimelineCluster {
	if len(members) < minClusterSize {
		return nil
	}
	first := members[0].Timestamp
	last := members[len(members)-1].Timestamp
	span := last.Sub(first)
	radiusMs := span.Milliseconds() / 2
	center := first.Add(span / 2)

	density := float64(len(members))
	if radiusMs > 0 {
		density = float64(len(members)) / (float64(radiusMs) / 60000.0)
	}

	ids := make([]string, 0, len(members))
	for _, ev := range members {
		ids = append(ids, ev.ID)
	}
	return &store.TimelineCluster{
		CaseID:     members[0].CaseID,
		CenterTime: center,
		EventIDs:   ids,
		RadiusMs:   radiusMs,
		Density:    density,
		Type:       clusterType(members),
	}
}

// clusterType classifies the run by the mix of sources it contains:
// an alert answered by a manual user action is response activity, an
// alert alone is an attack sequence, anything else is normal.
func clusterType(members []store.TimelineEvent) string {
	hasAlert := false
	hasManualAction := false
	for _, ev := range members {
		if ev.SourceType == "alert" {
			hasAlert = true
		}
		if ev.SourceType == "user-action" && !ev.Automated {
			hasManualAction = true
		}
	}
	switch {
	case hasAlert && hasManualAction:
		return "response-activity"
	case hasAlert:
		return "attack-sequence"
	default:
		return "normal-activity"
	}
}
