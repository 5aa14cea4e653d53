package devices

import (
	"errors"
	"time"
)

// Device is a rice-quality analyzer registered with the dashboard.
type Device struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields.
func (d *Device) Validate() error {
	if d == nil {
		return errors.New("devices: nil device")
	}
	if d.Code == "" {
		return errors.New("devices: empty code")
	}
	if d.Name == "" {
		return errors.New("devices: empty name")
	}
	return nil
}
