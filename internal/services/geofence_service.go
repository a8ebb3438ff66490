package services

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/geofence"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

// lifecycle is the Start/Stop surface the geofence service drives on the
// software region monitor.
type lifecycle interface {
	Start() error
	Stop() error
}

// GeofenceService owns the geofence controller's lifecycle: it restores the
// persisted zones and the monitoring-desired flag at startup, auto-resumes
// monitoring when that flag is set, and persists the flag on explicit
// enable/disable.
type GeofenceService struct {
	controller *geofence.Controller
	store      *geofence.ZoneStore
	monitor    lifecycle

	flagPath   string
	fileClient file.FileOperations
	logger     zerolog.Logger

	running bool
}

// NewGeofenceService creates a new GeofenceService instance.
func NewGeofenceService(controller *geofence.Controller, store *geofence.ZoneStore, monitor lifecycle,
	flagPath string, fileClient file.FileOperations, logger zerolog.Logger) *GeofenceService {
	return &GeofenceService{
		controller: controller,
		store:      store,
		monitor:    monitor,
		flagPath:   flagPath,
		fileClient: fileClient,
		logger:     logger,
	}
}

// Start restores persisted state, starts the region monitor, and resumes
// monitoring when it was previously enabled.
func (g *GeofenceService) Start() error {
	if g.running {
		g.logger.Warn().Msg("GeofenceService is already running")
		return errors.New("geofence service is already running")
	}

	g.store.Load()

	if err := g.monitor.Start(); err != nil {
		return err
	}
	g.running = true

	if g.loadFlag() {
		g.controller.SetMonitoringDesired(true)
		if err := g.controller.StartMonitoringAll(); err != nil {
			// Insufficient authorization resolves itself through
			// OnAuthorizationChanged once the level is granted.
			g.logger.Warn().Err(err).Msg("Monitoring not resumed at startup")
		}
	}

	g.logger.Info().Msg("GeofenceService started")
	return nil
}

// Stop halts monitoring and the region monitor. The persisted flag is left
// untouched so monitoring resumes on the next run.
func (g *GeofenceService) Stop() error {
	if !g.running {
		g.logger.Warn().Msg("GeofenceService is not running")
		return errors.New("geofence service is not running")
	}

	g.controller.StopMonitoringAll()
	if err := g.monitor.Stop(); err != nil {
		return err
	}
	g.running = false

	g.logger.Info().Msg("GeofenceService stopped")
	return nil
}

// EnableMonitoring turns monitoring on and persists the intent.
func (g *GeofenceService) EnableMonitoring() error {
	g.controller.SetMonitoringDesired(true)
	g.saveFlag(true)
	return g.controller.StartMonitoringAll()
}

// DisableMonitoring turns monitoring off and persists the intent.
func (g *GeofenceService) DisableMonitoring() {
	g.controller.SetMonitoringDesired(false)
	g.saveFlag(false)
	g.controller.StopMonitoringAll()
}

// loadFlag reads the persisted monitoring-desired flag. A missing or
// malformed file means disabled.
func (g *GeofenceService) loadFlag() bool {
	if g.flagPath == "" {
		return false
	}

	exists, err := g.fileClient.IsFileExists(g.flagPath)
	if err != nil || !exists {
		return false
	}

	var flag models.MonitoringFlag
	if err := g.fileClient.ReadJsonFile(g.flagPath, &flag); err != nil {
		g.logger.Warn().Err(err).Msg("Monitoring flag is unreadable, treating as disabled")
		return false
	}
	return flag.Enabled
}

// saveFlag persists the monitoring-desired flag.
func (g *GeofenceService) saveFlag(enabled bool) {
	if g.flagPath == "" {
		return
	}
	if err := g.fileClient.WriteJsonFile(g.flagPath, models.MonitoringFlag{Enabled: enabled}); err != nil {
		g.logger.Error().Err(err).Msg("Failed to persist monitoring flag")
	}
}
