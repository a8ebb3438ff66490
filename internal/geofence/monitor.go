package geofence

import (
	"github.com/trailmark/geotrack-agent/internal/models"
)

// AuthorizationLevel describes how much location access the platform has
// granted to the agent.
type AuthorizationLevel int

const (
	// AuthorizationDenied means no location access at all.
	AuthorizationDenied AuthorizationLevel = iota
	// AuthorizationWhenInUse allows foreground fixes but not region monitoring.
	AuthorizationWhenInUse
	// AuthorizationAlways allows background region monitoring.
	AuthorizationAlways
)

// String returns a readable name for logging.
func (l AuthorizationLevel) String() string {
	switch l {
	case AuthorizationWhenInUse:
		return "when_in_use"
	case AuthorizationAlways:
		return "always"
	default:
		return "denied"
	}
}

// RegionState is the answer to an asynchronous state query for one zone.
type RegionState int

const (
	// StateUnknown means the monitor could not determine membership.
	StateUnknown RegionState = iota
	// StateInside means the device is currently inside the zone.
	StateInside
	// StateOutside means the device is currently outside the zone.
	StateOutside
)

// RegionMonitor is the region-monitoring capability the controller drives.
// Register and Unregister are synchronous; RequestState is asynchronous and
// may never produce a response, so callers must not block on it.
type RegionMonitor interface {
	Register(zone models.GeofenceZone) error
	Unregister(zoneID string) error
	RequestState(zoneID string)
	Authorization() AuthorizationLevel
	RequestAlwaysAuthorization()
}

// EventHandler receives the monitor's asynchronous events. Events may be
// delivered concurrently from an unspecified calling context.
type EventHandler interface {
	OnEnter(zoneID string)
	OnExit(zoneID string)
	OnState(zoneID string, state RegionState)
	OnMonitoringFailed(zoneID string, err error)
	OnAuthorizationChanged(level AuthorizationLevel)
}
