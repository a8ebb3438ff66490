package geofence

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/internal/utils"
)

// State is the controller's monitoring state.
type State int

const (
	// StateIdle means no zones are actively monitored.
	StateIdle State = iota
	// StateMonitoring means at least one enabled zone is registered.
	StateMonitoring
)

// ErrInsufficientAuthorization is returned when monitoring requires the
// always authorization level but only a lesser level is held.
var ErrInsufficientAuthorization = errors.New("monitoring requires always authorization")

const (
	// DefaultDebounceWindow is the minimum time between two accepted
	// tracking actions. Region-boundary jitter can otherwise flap tracking
	// on and off at a zone edge.
	DefaultDebounceWindow = 5 * time.Second

	// DefaultReconcileTimeout bounds how long a reconciliation pass waits
	// for state responses the platform may never deliver.
	DefaultReconcileTimeout = 5 * time.Second

	stateQueryWorkers = 4
)

// Controller bridges zone intent to the region-monitoring capability and
// turns its events into two side effects: "should start tracking" and
// "should stop tracking". It implements EventHandler; the monitor may call
// the event methods concurrently from any goroutine.
type Controller struct {
	store   *ZoneStore
	monitor RegionMonitor
	logger  zerolog.Logger

	onStart func()
	onStop  func()

	debounceWindow   time.Duration
	reconcileTimeout time.Duration
	now              func() time.Time

	mu            sync.Mutex
	state         State
	desired       bool // monitoring was requested and should auto-resume
	lastAction    time.Time
	hasLastAction bool
	currentZoneID string
	reconcile     *completionLatch
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounceWindow overrides the default debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(c *Controller) { c.debounceWindow = d }
}

// WithReconcileTimeout overrides the default reconciliation timeout.
func WithReconcileTimeout(d time.Duration) Option {
	return func(c *Controller) { c.reconcileTimeout = d }
}

// WithClock overrides the controller's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller over the given store and monitor.
// onStart and onStop are invoked for accepted actions and must be safe to
// call repeatedly.
func NewController(store *ZoneStore, monitor RegionMonitor, onStart, onStop func(),
	logger zerolog.Logger, opts ...Option) *Controller {

	c := &Controller{
		store:            store,
		monitor:          monitor,
		onStart:          onStart,
		onStop:           onStop,
		logger:           logger,
		debounceWindow:   DefaultDebounceWindow,
		reconcileTimeout: DefaultReconcileTimeout,
		now:              time.Now,
		state:            StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current monitoring state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentZone returns the zone the device is currently considered inside,
// if any. It is updated on every event regardless of debounce.
func (c *Controller) CurrentZone() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentZoneID, c.currentZoneID != ""
}

// SetMonitoringDesired records whether monitoring should auto-resume when
// authorization is granted.
func (c *Controller) SetMonitoringDesired(desired bool) {
	c.mu.Lock()
	c.desired = desired
	c.mu.Unlock()
}

// AddZone stores a new zone and, when the controller is monitoring an
// enabled zone, registers it with the monitor after the store commit.
func (c *Controller) AddZone(zone models.GeofenceZone) error {
	if err := c.store.Add(zone); err != nil {
		return err
	}

	if zone.Enabled && c.State() == StateMonitoring {
		if err := c.monitor.Register(zone); err != nil {
			c.logger.Error().
				Err(err).
				Str("zone_id", zone.ID).
				Msg("Zone registration failed, will retry on next full start")
		}
	}

	c.logger.Info().Str("zone_id", zone.ID).Str("name", zone.Name).Msg("Zone added")
	return nil
}

// UpdateZone replaces a zone definition. The stale registration is removed
// before the store mutation and the new one added after it, so the monitor
// never holds two registrations for one id.
func (c *Controller) UpdateZone(zone models.GeofenceZone) error {
	monitoring := c.State() == StateMonitoring

	if monitoring {
		if err := c.monitor.Unregister(zone.ID); err != nil {
			c.logger.Warn().Err(err).Str("zone_id", zone.ID).Msg("Failed to unregister stale zone")
		}
	}

	if err := c.store.Update(zone); err != nil {
		return err
	}

	if monitoring && zone.Enabled {
		if err := c.monitor.Register(zone); err != nil {
			c.logger.Error().
				Err(err).
				Str("zone_id", zone.ID).
				Msg("Zone re-registration failed, will retry on next full start")
		}
	}

	c.logger.Info().Str("zone_id", zone.ID).Msg("Zone updated")
	return nil
}

// DeleteZone unregisters the zone from the monitor before removing it from
// the store, so no dangling monitor outlives its zone.
func (c *Controller) DeleteZone(id string) error {
	if c.State() == StateMonitoring {
		if err := c.monitor.Unregister(id); err != nil {
			c.logger.Warn().Err(err).Str("zone_id", id).Msg("Failed to unregister zone before delete")
		}
	}

	if err := c.store.Delete(id); err != nil {
		return err
	}

	c.mu.Lock()
	if c.currentZoneID == id {
		c.currentZoneID = ""
	}
	c.mu.Unlock()

	c.logger.Info().Str("zone_id", id).Msg("Zone deleted")
	return nil
}

// StartMonitoringAll registers every enabled zone and runs a state
// reconciliation pass. It requires the always authorization level; with a
// lesser level it requests an upgrade and stays idle.
func (c *Controller) StartMonitoringAll() error {
	if c.monitor.Authorization() != AuthorizationAlways {
		c.logger.Warn().
			Str("level", c.monitor.Authorization().String()).
			Msg("Insufficient authorization for monitoring, requesting upgrade")
		c.monitor.RequestAlwaysAuthorization()
		return ErrInsufficientAuthorization
	}

	enabled := c.store.ListEnabled()
	if len(enabled) == 0 {
		c.logger.Info().Msg("No enabled zones, staying idle")
		return nil
	}

	c.mu.Lock()
	if c.state == StateMonitoring {
		c.mu.Unlock()
		return nil
	}
	c.state = StateMonitoring
	c.desired = true
	c.mu.Unlock()

	for _, zone := range enabled {
		if err := c.monitor.Register(zone); err != nil {
			c.logger.Error().
				Err(err).
				Str("zone_id", zone.ID).
				Msg("Zone registration failed, will retry on next full start")
		}
	}

	c.reconcileState(enabled)

	c.logger.Info().Int("zones", len(enabled)).Msg("Geofence monitoring started")
	return nil
}

// StopMonitoringAll unregisters every zone and returns the controller to
// idle. Zones stay in the store.
func (c *Controller) StopMonitoringAll() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	latch := c.reconcile
	c.reconcile = nil
	c.mu.Unlock()

	if latch != nil {
		latch.Cancel()
	}

	for _, zone := range c.store.List() {
		if err := c.monitor.Unregister(zone.ID); err != nil {
			c.logger.Warn().Err(err).Str("zone_id", zone.ID).Msg("Failed to unregister zone")
		}
	}

	c.logger.Info().Msg("Geofence monitoring stopped")
}

// reconcileState fans out one asynchronous state query per enabled zone.
// Enter/exit events only fire on transitions, so a device already inside a
// zone at monitor start would otherwise never trigger its action. Responses
// feed the same debounced path as live events; the latch guarantees the
// completion log fires exactly once even when the platform never answers
// for some zones.
func (c *Controller) reconcileState(zones []models.GeofenceZone) {
	if len(zones) == 0 {
		return
	}
	started := c.now()

	// The latch must be installed before its timer can complete, and the
	// completion must only clear the latch it belongs to. Holding the lock
	// across construction guarantees both orderings.
	c.mu.Lock()
	var latch *completionLatch
	latch = newCompletionLatch(len(zones), c.reconcileTimeout, func(timedOut bool) {
		c.mu.Lock()
		if c.reconcile == latch {
			c.reconcile = nil
		}
		c.mu.Unlock()

		c.logger.Info().
			Bool("timed_out", timedOut).
			Dur("elapsed", c.now().Sub(started)).
			Msg("State reconciliation complete")
	})
	c.reconcile = latch
	c.mu.Unlock()

	pool := utils.NewWorkerPool(stateQueryWorkers)
	for _, zone := range zones {
		zoneID := zone.ID
		pool.Submit(func() {
			c.monitor.RequestState(zoneID)
		})
	}
	go pool.Shutdown()
}

// OnEnter handles a live zone-entry event from the monitor.
func (c *Controller) OnEnter(zoneID string) {
	zone, ok := c.store.Get(zoneID)
	if !ok {
		c.logger.Warn().Str("zone_id", zoneID).Msg("Enter event for unknown zone")
		return
	}

	c.mu.Lock()
	c.currentZoneID = zoneID
	c.mu.Unlock()

	switch zone.Action {
	case models.ActionHomeMode, models.ActionStopOnEnter:
		c.dispatch(zone, "enter", c.onStop, "stop")
	case models.ActionStartOnEnter:
		c.dispatch(zone, "enter", c.onStart, "start")
	}
}

// OnExit handles a live zone-exit event from the monitor.
func (c *Controller) OnExit(zoneID string) {
	zone, ok := c.store.Get(zoneID)
	if !ok {
		c.logger.Warn().Str("zone_id", zoneID).Msg("Exit event for unknown zone")
		return
	}

	c.mu.Lock()
	if c.currentZoneID == zoneID {
		c.currentZoneID = ""
	}
	c.mu.Unlock()

	switch zone.Action {
	case models.ActionHomeMode, models.ActionStartOnExit:
		c.dispatch(zone, "exit", c.onStart, "start")
	case models.ActionStopOnExit:
		c.dispatch(zone, "exit", c.onStop, "stop")
	}
}

// OnState handles an asynchronous state-query response. A zone found to be
// inside is treated as a synthetic enter so on-launch semantics match
// live-event semantics.
func (c *Controller) OnState(zoneID string, state RegionState) {
	c.mu.Lock()
	latch := c.reconcile
	c.mu.Unlock()

	if latch == nil {
		c.logger.Debug().Str("zone_id", zoneID).Msg("Ignoring state response outside reconciliation")
		return
	}

	if state == StateInside {
		c.OnEnter(zoneID)
	}
	latch.Arrive()
}

// OnMonitoringFailed handles a platform-side registration failure. The zone
// stays in the store; registration is retried on the next full start.
func (c *Controller) OnMonitoringFailed(zoneID string, err error) {
	c.logger.Error().
		Err(err).
		Str("zone_id", zoneID).
		Msg("Platform failed to monitor zone")
}

// OnAuthorizationChanged reacts to an authorization-level change. Regaining
// the required level auto-resumes monitoring when it was desired; losing it
// forces the controller idle without deleting zones.
func (c *Controller) OnAuthorizationChanged(level AuthorizationLevel) {
	c.mu.Lock()
	desired := c.desired
	state := c.state
	c.mu.Unlock()

	if level == AuthorizationAlways {
		if state == StateIdle && desired && len(c.store.ListEnabled()) > 0 {
			c.logger.Info().Msg("Authorization restored, resuming monitoring")
			if err := c.StartMonitoringAll(); err != nil {
				c.logger.Error().Err(err).Msg("Failed to resume monitoring")
			}
		}
		return
	}

	if state == StateMonitoring {
		c.logger.Error().
			Str("level", level.String()).
			Msg("Authorization lost, forcing monitoring idle")
		c.StopMonitoringAll()
	}
}

// dispatch applies the debounce policy and invokes the callback when the
// candidate action is accepted.
func (c *Controller) dispatch(zone models.GeofenceZone, event string, callback func(), action string) {
	c.mu.Lock()
	now := c.now()
	if c.hasLastAction && now.Sub(c.lastAction) < c.debounceWindow {
		since := now.Sub(c.lastAction)
		c.mu.Unlock()
		c.logger.Debug().
			Str("zone_id", zone.ID).
			Str("event", event).
			Dur("since_last_action", since).
			Msg("Action suppressed by debounce")
		return
	}
	c.lastAction = now
	c.hasLastAction = true
	c.mu.Unlock()

	c.logger.Info().
		Str("zone_id", zone.ID).
		Str("name", zone.Name).
		Str("event", event).
		Str("action", action).
		Msg("Dispatching tracking action")

	if callback != nil {
		callback()
	}
}
