package models

import (
	"time"
)

// TrackPoint represents a single location fix with associated metadata.
// Optional sensor fields are pointers so that absent readings are omitted
// from the wire format instead of being sent as zero values.
type TrackPoint struct {
	DeviceID     string   `json:"device_id,omitempty"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Timestamp    int64    `json:"timestamp"` // unix epoch seconds
	Altitude     *float64 `json:"altitude,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Bearing      *float64 `json:"bearing,omitempty"`
	BatteryLevel *int     `json:"batteryLevel,omitempty"`
	Area         string   `json:"area,omitempty"` // named polygonal area, if any
}

// PendingLocationRecord represents one location fix awaiting delivery.
type PendingLocationRecord struct {
	ID         string     `json:"id"`
	Payload    TrackPoint `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	RetryCount int        `json:"retryCount"`
}

// MonitoringFlag is the persisted marker recording whether geofence
// monitoring was desired when the agent last ran.
type MonitoringFlag struct {
	Enabled bool `json:"enabled"`
}
