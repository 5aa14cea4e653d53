package notifications

import (
	"errors"
	"time"
)

// NotificationRule is a per-user threshold configuration watching one metric
// of one device. At most one rule exists per (owner, device, metric) triple.
type NotificationRule struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	DeviceCode   string    `json:"device_code"`
	MetricID     string    `json:"metric_id"`
	MetricLabel  string    `json:"metric_label"`
	Enabled      bool      `json:"enabled"`
	MinEnabled   bool      `json:"min_enabled"`
	MaxEnabled   bool      `json:"max_enabled"`
	MinThreshold float64   `json:"min_threshold"`
	MaxThreshold float64   `json:"max_threshold"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks rule invariants. A rule with both sub-switches off is
// valid; it simply never triggers. A min threshold above the max threshold
// is also accepted as configured.
func (r NotificationRule) Validate() error {
	if r.OwnerID == "" {
		return errors.New("notification rule: empty owner id")
	}
	if r.DeviceCode == "" {
		return errors.New("notification rule: empty device code")
	}
	if r.MetricID == "" {
		return errors.New("notification rule: empty metric id")
	}
	return nil
}

// Dormant reports whether the rule is enabled but has no active bound.
func (r NotificationRule) Dormant() bool {
	return r.Enabled && !r.MinEnabled && !r.MaxEnabled
}
