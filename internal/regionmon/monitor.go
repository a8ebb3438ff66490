package regionmon

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/geofence"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/location"
)

const earthRadiusMeters = 6371000

// watchedZone is one registered circle plus the last membership decision,
// so Observe can emit events only on transitions.
type watchedZone struct {
	zone   models.GeofenceZone
	inside bool
	known  bool
}

// Monitor is a software region monitor. It samples the location provider on
// an interval, computes the distance from each fix to every registered
// circle, and synthesizes enter/exit transitions and asynchronous state
// responses for the geofence controller. It stands in for the OS-level
// region monitoring this agent's platforms do not provide.
type Monitor struct {
	interval time.Duration
	provider location.Provider
	logger   zerolog.Logger

	zones   cmap.ConcurrentMap[string, *watchedZone]
	handler geofence.EventHandler

	mu      sync.RWMutex
	lastFix *location.Location

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewMonitor creates a software monitor sampling the provider at the given
// interval.
func NewMonitor(interval time.Duration, provider location.Provider, logger zerolog.Logger) *Monitor {
	return &Monitor{
		interval: interval,
		provider: provider,
		logger:   logger,
		zones:    cmap.New[*watchedZone](),
	}
}

// SetHandler attaches the event sink. Must be called before Start.
func (m *Monitor) SetHandler(handler geofence.EventHandler) {
	m.handler = handler
}

// Register starts watching a circular zone.
func (m *Monitor) Register(zone models.GeofenceZone) error {
	if zone.Radius <= 0 {
		return errors.New("cannot watch zone with non-positive radius")
	}
	m.zones.Set(zone.ID, &watchedZone{zone: zone})
	m.logger.Debug().Str("zone_id", zone.ID).Float64("radius", zone.Radius).Msg("Watching zone")
	return nil
}

// Unregister stops watching the zone. Unknown ids are a no-op.
func (m *Monitor) Unregister(zoneID string) error {
	m.zones.Remove(zoneID)
	m.logger.Debug().Str("zone_id", zoneID).Msg("Stopped watching zone")
	return nil
}

// RequestState answers asynchronously with the zone's current membership.
// Before the first fix arrives there is nothing to answer with, so the
// request produces no response at all; callers must tolerate silence.
func (m *Monitor) RequestState(zoneID string) {
	go func() {
		m.mu.RLock()
		fix := m.lastFix
		m.mu.RUnlock()

		if fix == nil {
			return
		}

		watched, ok := m.zones.Get(zoneID)
		if !ok {
			return
		}

		state := geofence.StateOutside
		if withinZone(fix.Latitude, fix.Longitude, watched.zone) {
			state = geofence.StateInside
		}
		if m.handler != nil {
			m.handler.OnState(zoneID, state)
		}
	}()
}

// Authorization reports the always level; a software monitor running inside
// the agent process has nothing to ask the user for.
func (m *Monitor) Authorization() geofence.AuthorizationLevel {
	return geofence.AuthorizationAlways
}

// RequestAlwaysAuthorization is a no-op for the software monitor.
func (m *Monitor) RequestAlwaysAuthorization() {}

// Start launches the sampling loop.
func (m *Monitor) Start() error {
	if m.running {
		m.logger.Warn().Msg("Region monitor is already running")
		return errors.New("region monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fix, err := m.provider.GetLocation()
				if err != nil {
					m.logger.Debug().Err(err).Msg("No fix available for region evaluation")
					continue
				}
				m.Observe(fix)
			case <-m.ctx.Done():
				m.logger.Info().Msg("Region monitor is stopping")
				return
			}
		}
	}()

	m.logger.Info().Dur("interval", m.interval).Msg("Region monitor started")
	return nil
}

// Stop terminates the sampling loop.
func (m *Monitor) Stop() error {
	if !m.running {
		m.logger.Warn().Msg("Region monitor is not running")
		return errors.New("region monitor is not running")
	}

	m.cancel()
	m.wg.Wait()
	m.running = false

	m.logger.Info().Msg("Region monitor stopped")
	return nil
}

// Observe evaluates one fix against every watched zone and emits enter/exit
// events for membership transitions.
func (m *Monitor) Observe(fix location.Location) {
	m.mu.Lock()
	m.lastFix = &fix
	m.mu.Unlock()

	for _, watched := range m.zones.Items() {
		inside := withinZone(fix.Latitude, fix.Longitude, watched.zone)

		if watched.known && inside == watched.inside {
			continue
		}

		transition := watched.known
		watched.inside = inside
		watched.known = true

		if !transition || m.handler == nil {
			continue
		}
		if inside {
			m.handler.OnEnter(watched.zone.ID)
		} else {
			m.handler.OnExit(watched.zone.ID)
		}
	}
}

// withinZone reports whether the coordinate falls inside the circular zone.
func withinZone(lat, lon float64, zone models.GeofenceZone) bool {
	return haversine(lat, lon, zone.Latitude, zone.Longitude) <= zone.Radius
}

// haversine computes the great-circle distance between two coordinates in
// meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
