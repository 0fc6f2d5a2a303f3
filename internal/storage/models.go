package storage

import (
	"time"

	"github.com/google/uuid"
)

// Device is one paired radio actuator. DeviceID is the six-hex-digit
// sender ID burned into the motor, DeviceEnum the two-hex-digit alias
// the stick addresses it by.
type Device struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   string    `json:"device_id"`
	DeviceEnum string    `json:"device_enum"`
	Name       string    `json:"name"`
	// Gemessene Laufzeiten in Sekunden, 0 solange nicht kalibriert.
	OpenTime  float64   `json:"open_time_seconds"`
	CloseTime float64   `json:"close_time_seconds"`
	Position  *int      `json:"position,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
