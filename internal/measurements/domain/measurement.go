package measurements

import (
	"context"
	"time"
)

// Measurement is one analysis row reported by a device. Values maps canonical
// metric ids to readings; a nil entry means the device reported the row
// without that channel. Rows are immutable once persisted.
type Measurement struct {
	DeviceCode string              `json:"device_code"`
	CapturedAt time.Time           `json:"captured_at"`
	Values     map[string]*float64 `json:"values"`
}

// Value returns the reading for a metric, or nil when absent. Absence is a
// normal outcome, never an error.
func (m *Measurement) Value(metricID string) *float64 {
	if m == nil {
		return nil
	}
	return m.Values[metricID]
}

// LatestReader loads the most recent measurement per device.
type LatestReader interface {
	Latest(ctx context.Context, deviceCode string) (*Measurement, error)
}

// HistoryReader loads measurement rows for a time window.
type HistoryReader interface {
	History(ctx context.Context, deviceCode string, from, to time.Time) ([]Measurement, error)
}
