package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmark/geotrack-agent/internal/geofence"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

// stubRegionMonitor satisfies both the controller's RegionMonitor and the
// service's lifecycle surface.
type stubRegionMonitor struct {
	mu      sync.Mutex
	started int
	stopped int
	auth    geofence.AuthorizationLevel
}

func newStubRegionMonitor() *stubRegionMonitor {
	return &stubRegionMonitor{auth: geofence.AuthorizationAlways}
}

func (s *stubRegionMonitor) Register(models.GeofenceZone) error { return nil }
func (s *stubRegionMonitor) Unregister(string) error            { return nil }
func (s *stubRegionMonitor) RequestState(string)                {}
func (s *stubRegionMonitor) RequestAlwaysAuthorization()        {}

func (s *stubRegionMonitor) Authorization() geofence.AuthorizationLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *stubRegionMonitor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return nil
}

func (s *stubRegionMonitor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

type geofenceFixture struct {
	service    *GeofenceService
	controller *geofence.Controller
	monitor    *stubRegionMonitor
	flagPath   string
	fileClient file.FileOperations
}

func newGeofenceFixture(t *testing.T) *geofenceFixture {
	t.Helper()

	dir := t.TempDir()
	fileClient := file.NewFileService()
	monitor := newStubRegionMonitor()

	zonesPath := filepath.Join(dir, "zones.json")
	require.NoError(t, fileClient.WriteJsonFile(zonesPath, []models.GeofenceZone{{
		ID:        "zone-home",
		Name:      "Home",
		Latitude:  51.5,
		Longitude: -0.12,
		Radius:    100,
		Action:    models.ActionHomeMode,
		Enabled:   true,
	}}))

	store := geofence.NewZoneStore(zonesPath, fileClient, zerolog.Nop())
	controller := geofence.NewController(store, monitor, func() {}, func() {}, zerolog.Nop())

	flagPath := filepath.Join(dir, "monitoring.json")
	return &geofenceFixture{
		service:    NewGeofenceService(controller, store, monitor, flagPath, fileClient, zerolog.Nop()),
		controller: controller,
		monitor:    monitor,
		flagPath:   flagPath,
		fileClient: fileClient,
	}
}

func (f *geofenceFixture) writeFlag(t *testing.T, enabled bool) {
	t.Helper()
	require.NoError(t, f.fileClient.WriteJsonFile(f.flagPath, models.MonitoringFlag{Enabled: enabled}))
}

func (f *geofenceFixture) readFlag(t *testing.T) bool {
	t.Helper()
	var flag models.MonitoringFlag
	require.NoError(t, f.fileClient.ReadJsonFile(f.flagPath, &flag))
	return flag.Enabled
}

func TestGeofenceService_StartWithoutFlagStaysIdle(t *testing.T) {
	f := newGeofenceFixture(t)

	require.NoError(t, f.service.Start())

	assert.Equal(t, geofence.StateIdle, f.controller.State())
	assert.Equal(t, 1, f.monitor.started)
}

func TestGeofenceService_StartResumesWhenFlagEnabled(t *testing.T) {
	f := newGeofenceFixture(t)
	f.writeFlag(t, true)

	require.NoError(t, f.service.Start())

	assert.Equal(t, geofence.StateMonitoring, f.controller.State())
}

func TestGeofenceService_MalformedFlagTreatedAsDisabled(t *testing.T) {
	f := newGeofenceFixture(t)
	require.NoError(t, os.WriteFile(f.flagPath, []byte("{not json"), 0600))

	require.NoError(t, f.service.Start())

	assert.Equal(t, geofence.StateIdle, f.controller.State())
}

func TestGeofenceService_EnableMonitoringPersistsIntent(t *testing.T) {
	f := newGeofenceFixture(t)
	require.NoError(t, f.service.Start())

	require.NoError(t, f.service.EnableMonitoring())

	assert.Equal(t, geofence.StateMonitoring, f.controller.State())
	assert.True(t, f.readFlag(t))
}

func TestGeofenceService_DisableMonitoringPersistsIntent(t *testing.T) {
	f := newGeofenceFixture(t)
	f.writeFlag(t, true)
	require.NoError(t, f.service.Start())

	f.service.DisableMonitoring()

	assert.Equal(t, geofence.StateIdle, f.controller.State())
	assert.False(t, f.readFlag(t))
}

func TestGeofenceService_StopLeavesFlagForNextRun(t *testing.T) {
	f := newGeofenceFixture(t)
	f.writeFlag(t, true)
	require.NoError(t, f.service.Start())

	require.NoError(t, f.service.Stop())

	assert.Equal(t, geofence.StateIdle, f.controller.State())
	assert.True(t, f.readFlag(t), "shutdown must not erase the monitoring intent")
	assert.Equal(t, 1, f.monitor.stopped)

	assert.Error(t, f.service.Stop())
}

func TestGeofenceService_DoubleStartRejected(t *testing.T) {
	f := newGeofenceFixture(t)

	require.NoError(t, f.service.Start())
	assert.Error(t, f.service.Start())
}
