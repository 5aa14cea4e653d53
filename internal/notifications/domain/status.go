package notifications

import "time"

// Bound identifies which side of a rule fired.
type Bound string

const (
	BoundMin Bound = "min"
	BoundMax Bound = "max"
)

// TriggeredRule describes one fired bound of one rule.
type TriggeredRule struct {
	MetricID     string  `json:"metric_id"`
	MetricLabel  string  `json:"metric_label"`
	Bound        Bound   `json:"bound"`
	Threshold    float64 `json:"threshold"`
	CurrentValue float64 `json:"current_value"`
}

// DormantRule marks a rule that is enabled but has no active bound, so the
// UI can surface "configured but dormant" distinctly from "no rules".
type DormantRule struct {
	MetricID    string `json:"metric_id"`
	MetricLabel string `json:"metric_label"`
}

// AlertStatus is the merged evaluation result for one device and one caller.
// It is derived on every cycle and never persisted.
type AlertStatus struct {
	DeviceCode     string          `json:"device_code"`
	HasRules       bool            `json:"has_rules"`
	IsTriggered    bool            `json:"is_triggered"`
	TriggeredRules []TriggeredRule `json:"triggered_rules"`
	DormantRules   []DormantRule   `json:"dormant_rules,omitempty"`
	MeasuredAt     *time.Time      `json:"measured_at,omitempty"`
	CheckedAt      time.Time       `json:"checked_at"`
}

// EmptyStatus is the degraded status returned when validation fails inside a
// status evaluation: a dashboard tile shows nothing rather than crashing.
func EmptyStatus(deviceCode string, checkedAt time.Time) AlertStatus {
	return AlertStatus{
		DeviceCode:     deviceCode,
		HasRules:       false,
		IsTriggered:    false,
		TriggeredRules: []TriggeredRule{},
		CheckedAt:      checkedAt,
	}
}
