package domain

import "time"

// DriverLocation is the latest reported position of a driver, upserted
// on every update.
type DriverLocation struct {
	DriverID  string
	Latitude  float64
	Longitude float64
	Heading   *float64
	Speed     *float64
	UpdatedAt time.Time
}

// Validate checks coordinate ranges.
func (l *DriverLocation) Validate() error {
	if l.DriverID == "" {
		return NewValidationError("driver_id", "must not be empty")
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return NewValidationError("latitude", "must be between -90 and 90")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return NewValidationError("longitude", "must be between -180 and 180")
	}
	if l.Heading != nil && (*l.Heading < 0 || *l.Heading >= 360) {
		return NewValidationError("heading", "must be between 0 and 360")
	}
	if l.Speed != nil && *l.Speed < 0 {
		return NewValidationError("speed", "must not be negative")
	}
	return nil
}
