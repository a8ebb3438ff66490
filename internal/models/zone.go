package models

// ZoneAction defines the tracking side effect a geofence zone triggers
// on enter/exit transitions.
type ZoneAction string

const (
	// ActionHomeMode stops tracking on enter and starts it again on exit.
	ActionHomeMode ZoneAction = "home_mode"
	// ActionStartOnExit starts tracking when the device leaves the zone.
	ActionStartOnExit ZoneAction = "start_on_exit"
	// ActionStopOnEnter stops tracking when the device enters the zone.
	ActionStopOnEnter ZoneAction = "stop_on_enter"
	// ActionStartOnEnter starts tracking when the device enters the zone.
	ActionStartOnEnter ZoneAction = "start_on_enter"
	// ActionStopOnExit stops tracking when the device leaves the zone.
	ActionStopOnExit ZoneAction = "stop_on_exit"
)

// GeofenceZone represents a named circular region of interest with an
// associated action policy.
type GeofenceZone struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Radius    float64    `json:"radius"` // meters, must be > 0
	Action    ZoneAction `json:"action"`
	Enabled   bool       `json:"isEnabled"`
}
