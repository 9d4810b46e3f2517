package timeline

import "time"

// StepConditions narrows which events may satisfy a pattern step.
// Empty fields match anything.
type StepConditions struct {
	SourceType   string `json:"source_type,omitempty"`
	EventPattern string `json:"event_pattern,omitempty"`
}

// PatternStep is one leg of a correlation rule. EventType is a token
// matched by substring containment against the event label.
type PatternStep struct {
	EventType  string         `json:"event_type"`
	TimeWindow time.Duration  `json:"time_window"`
	Conditions StepConditions `json:"conditions,omitempty"`
}

type CorrelationRule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Steps        []PatternStep `json:"steps"`
	Significance string        `json:"significance"`
	Enabled      bool          `json:"enabled"`
}

// MaxWindow is the largest step window of the rule; it bounds the
// temporal confidence term.
func (r CorrelationRule) MaxWindow() time.Duration {
	var max time.Duration
	for _, step := range r.Steps {
		if step.TimeWindow > max {
			max = step.TimeWindow
		}
	}
	return max
}

// DefaultRules is the built-in rule set evaluated on every
// reconstruction. Rules are static configuration, never derived from
// the event batch.
func DefaultRules() []CorrelationRule {
	return []CorrelationRule{
		{
			ID:          "brute-force-attack",
			Name:        "Brute Force Attack",
			Description: "Repeated failed logins followed by a successful login",
			Steps: []PatternStep{
				{EventType: "login-failed", TimeWindow: 10 * time.Minute},
				{EventType: "login-failed", TimeWindow: 10 * time.Minute},
				{EventType: "login-success", TimeWindow: 15 * time.Minute},
			},
			Significance: "high",
			Enabled:      true,
		},
		{
			ID:          "privilege-escalation",
			Name:        "Privilege Escalation",
			Description: "Login followed by permission changes and administrative actions",
			Steps: []PatternStep{
				{EventType: "login", TimeWindow: 30 * time.Minute},
				{EventType: "permission-change", TimeWindow: 30 * time.Minute},
				{EventType: "admin-action", TimeWindow: 30 * time.Minute},
			},
			Significance: "critical",
			Enabled:      true,
		},
		{
			ID:          "data-exfiltration",
			Name:        "Data Exfiltration",
			Description: "Bulk file access followed by an outbound transfer",
			Steps: []PatternStep{
				{EventType: "file-access", TimeWindow: time.Hour},
				{EventType: "data-transfer", TimeWindow: time.Hour, Conditions: StepConditions{SourceType: "log"}},
			},
			Significance: "critical",
			Enabled:      true,
		},
		{
			ID:          "lateral-movement",
			Name:        "Lateral Movement",
			Description: "Alert followed by authentication against additional hosts",
			Steps: []PatternStep{
				{EventType: "alert", TimeWindow: 2 * time.Hour, Conditions: StepConditions{SourceType: "alert"}},
				{EventType: "remote-session", TimeWindow: 2 * time.Hour},
				{EventType: "login", TimeWindow: 2 * time.Hour},
			},
			Significance: "high",
			Enabled:      true,
		},
	}
}
