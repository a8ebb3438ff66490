package regionmon

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmark/geotrack-agent/internal/geofence"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/location"
	"github.com/trailmark/geotrack-agent/tests/mocks"
)

// recordingHandler collects the events the monitor emits.
type recordingHandler struct {
	mu      sync.Mutex
	enters  []string
	exits   []string
	states  map[string]geofence.RegionState
	stateCh chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		states:  make(map[string]geofence.RegionState),
		stateCh: make(chan struct{}, 16),
	}
}

func (h *recordingHandler) OnEnter(zoneID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enters = append(h.enters, zoneID)
}

func (h *recordingHandler) OnExit(zoneID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exits = append(h.exits, zoneID)
}

func (h *recordingHandler) OnState(zoneID string, state geofence.RegionState) {
	h.mu.Lock()
	h.states[zoneID] = state
	h.mu.Unlock()
	h.stateCh <- struct{}{}
}

func (h *recordingHandler) OnMonitoringFailed(string, error) {}

func (h *recordingHandler) OnAuthorizationChanged(geofence.AuthorizationLevel) {}

func (h *recordingHandler) events() (enters, exits []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.enters...), append([]string(nil), h.exits...)
}

func (h *recordingHandler) stateOf(zoneID string) (geofence.RegionState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.states[zoneID]
	return state, ok
}

func testZone(id string, lat, lon, radius float64) models.GeofenceZone {
	return models.GeofenceZone{
		ID:        id,
		Name:      id,
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
		Action:    models.ActionHomeMode,
		Enabled:   true,
	}
}

func newTestMonitor(t *testing.T) (*Monitor, *recordingHandler) {
	t.Helper()
	monitor := NewMonitor(time.Hour, nil, zerolog.Nop())
	handler := newRecordingHandler()
	monitor.SetHandler(handler)
	return monitor, handler
}

func TestMonitor_RegisterRejectsNonPositiveRadius(t *testing.T) {
	monitor, _ := newTestMonitor(t)

	assert.Error(t, monitor.Register(testZone("bad", 51.5, -0.12, 0)))
	assert.NoError(t, monitor.Register(testZone("good", 51.5, -0.12, 100)))
}

func TestMonitor_FirstFixSetsBaselineSilently(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))

	// first observation inside the zone: baseline only, no transition
	monitor.Observe(location.Location{Latitude: 51.5, Longitude: -0.12})

	enters, exits := handler.events()
	assert.Empty(t, enters)
	assert.Empty(t, exits)
}

func TestMonitor_EmitsTransitionsOnly(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))

	inside := location.Location{Latitude: 51.5, Longitude: -0.12}
	outside := location.Location{Latitude: 51.6, Longitude: -0.12} // ~11km north

	monitor.Observe(outside) // baseline
	monitor.Observe(outside) // no change
	monitor.Observe(inside)  // enter
	monitor.Observe(inside)  // no change
	monitor.Observe(outside) // exit

	enters, exits := handler.events()
	assert.Equal(t, []string{"zone-home"}, enters)
	assert.Equal(t, []string{"zone-home"}, exits)
}

func TestMonitor_HaversineBoundary(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))

	// one degree of latitude is ~111km, so 0.0005 degrees is ~55m
	near := location.Location{Latitude: 51.5005, Longitude: -0.12}
	far := location.Location{Latitude: 51.502, Longitude: -0.12} // ~220m

	monitor.Observe(far)
	monitor.Observe(near)

	enters, _ := handler.events()
	assert.Equal(t, []string{"zone-home"}, enters)
}

func TestMonitor_RequestStateSilentBeforeFirstFix(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))

	monitor.RequestState("zone-home")

	select {
	case <-handler.stateCh:
		t.Fatal("state response without a fix to answer with")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_RequestStateAnswersFromLastFix(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))
	require.NoError(t, monitor.Register(testZone("zone-office", 52.2, 0.12, 100)))

	monitor.Observe(location.Location{Latitude: 51.5, Longitude: -0.12})

	monitor.RequestState("zone-home")
	monitor.RequestState("zone-office")

	for i := 0; i < 2; i++ {
		select {
		case <-handler.stateCh:
		case <-time.After(time.Second):
			t.Fatal("state response never arrived")
		}
	}

	state, ok := handler.stateOf("zone-home")
	require.True(t, ok)
	assert.Equal(t, geofence.StateInside, state)

	state, ok = handler.stateOf("zone-office")
	require.True(t, ok)
	assert.Equal(t, geofence.StateOutside, state)
}

func TestMonitor_RequestStateUnknownZoneSilent(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	monitor.Observe(location.Location{Latitude: 51.5, Longitude: -0.12})

	monitor.RequestState("ghost")

	select {
	case <-handler.stateCh:
		t.Fatal("state response for an unwatched zone")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_AlwaysAuthorized(t *testing.T) {
	monitor, _ := newTestMonitor(t)
	assert.Equal(t, geofence.AuthorizationAlways, monitor.Authorization())
}

func TestMonitor_SamplingLoop(t *testing.T) {
	provider := new(mocks.MockLocationProvider)
	provider.On("GetLocation").Return(location.Location{Latitude: 51.5, Longitude: -0.12}, nil)

	monitor := NewMonitor(10*time.Millisecond, provider, zerolog.Nop())
	handler := newRecordingHandler()
	monitor.SetHandler(handler)
	require.NoError(t, monitor.Register(testZone("zone-home", 52.0, -0.12, 100)))

	require.NoError(t, monitor.Start())
	assert.Error(t, monitor.Start())

	require.Eventually(t, func() bool {
		monitor.mu.RLock()
		defer monitor.mu.RUnlock()
		return monitor.lastFix != nil
	}, time.Second, 5*time.Millisecond, "sampling loop never consumed a fix")

	require.NoError(t, monitor.Stop())
	assert.Error(t, monitor.Stop())

	provider.AssertCalled(t, "GetLocation")
}

func TestMonitor_UnregisterStopsEvents(t *testing.T) {
	monitor, handler := newTestMonitor(t)
	require.NoError(t, monitor.Register(testZone("zone-home", 51.5, -0.12, 100)))

	monitor.Observe(location.Location{Latitude: 51.6, Longitude: -0.12})
	require.NoError(t, monitor.Unregister("zone-home"))
	monitor.Observe(location.Location{Latitude: 51.5, Longitude: -0.12})

	enters, _ := handler.events()
	assert.Empty(t, enters)
}
