package timeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"kestrel-irp/core/store"
)

type ExportPayload struct {
	CaseID      string                `json:"case_id"`
	ExportedAt  time.Time             `json:"exported_at"`
	TotalEvents int                   `json:"total_events"`
	Events      []store.TimelineEvent `json:"events"`
	Patterns    []store.Pattern       `json:"patterns"`
}

// ExportTimeline serializes the batch in the requested format. An
// unrecognized format deliberately falls back to JSON instead of
// erroring.
func ExportTimeline(caseID string, events []store.TimelineEvent, patterns []store.Pattern, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return exportCSV(events)
	case "xml":
		return exportXML(caseID, events)
	default:
		return exportJSON(caseID, events, patterns)
	}
}

func exportJSON(caseID string, events []store.TimelineEvent, patterns []store.Pattern) (string, error) {
	payload := ExportPayload{
		CaseID:      caseID,
		ExportedAt:  time.Now().UTC(),
		TotalEvents: len(events),
		Events:      events,
		Patterns:    patterns,
	}
	if payload.Events == nil {
		payload.Events = []store.TimelineEvent{}
	}
	if payload.Patterns == nil {
		payload.Patterns = []store.Pattern{}
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// exportCSV writes one row per event. encoding/csv quotes embedded
// commas and newlines, a deliberate hardening over naive joining.
func exportCSV(events []store.TimelineEvent) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "event", "description", "source", "sourceType", "severity", "automated"}); err != nil {
		return "", err
	}
	for _, ev := range events {
		row := []string{
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.Event,
			ev.Description,
			ev.Source,
			ev.SourceType,
			ev.Severity,
			strconv.FormatBool(ev.Automated),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type xmlEvent struct {
	ID          string `xml:"id"`
	Timestamp   string `xml:"timestamp"`
	Event       string `xml:"event"`
	Description string `xml:"description,omitempty"`
	Source      string `xml:"source,omitempty"`
	SourceType  string `xml:"source_type"`
	Severity    string `xml:"severity,omitempty"`
	Automated   bool   `xml:"automated"`
}

type xmlTimeline struct {
	XMLName     xml.Name   `xml:"timeline"`
	CaseID      string     `xml:"case_id,attr"`
	ExportedAt  string     `xml:"exported_at,attr"`
	TotalEvents int        `xml:"total_events,attr"`
	Events      []xmlEvent `xml:"event"`
}

func exportXML(caseID string, events []store.TimelineEvent) (string, error) {
	doc := xmlTimeline{
		CaseID:      caseID,
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		TotalEvents: len(events),
	}
	for _, ev := range events {
		doc.Events = append(doc.Events, xmlEvent{
			ID:          ev.ID,
			Timestamp:   ev.Timestamp.UTC().Format(time.RFC3339),
			Event:       ev.Event,
			Description: ev.Description,
			Source:      ev.Source,
			SourceType:  ev.SourceType,
			Severity:    ev.Severity,
			Automated:   ev.Automated,
		})
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(b), nil
}
