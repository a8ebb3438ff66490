package geofence

import (
	"errors"
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

var (
	// ErrDuplicateZone is returned when adding a zone whose id already exists.
	// A duplicate id is a programming error, not a runtime condition.
	ErrDuplicateZone = errors.New("zone id already exists")

	// ErrZoneNotFound is returned when updating or deleting an unknown zone.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrInvalidRadius is returned when a zone's radius is not positive.
	ErrInvalidRadius = errors.New("zone radius must be positive")
)

// ZoneStore is the thread-safe owner of all geofence zone definitions.
// Concurrent reads are allowed; writes are serialized per shard by the
// underlying concurrent map. The store persists the zone set as a JSON
// array after every mutation.
type ZoneStore struct {
	zones cmap.ConcurrentMap[string, models.GeofenceZone]

	filePath   string
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewZoneStore creates a zone store backed by the JSON file at filePath.
func NewZoneStore(filePath string, fileClient file.FileOperations, logger zerolog.Logger) *ZoneStore {
	return &ZoneStore{
		zones:      cmap.New[models.GeofenceZone](),
		filePath:   filePath,
		fileClient: fileClient,
		logger:     logger,
	}
}

// Load restores the persisted zone set. A missing or malformed file leaves
// the store empty; neither is fatal.
func (zs *ZoneStore) Load() {
	if zs.filePath == "" {
		return
	}

	exists, err := zs.fileClient.IsFileExists(zs.filePath)
	if err != nil || !exists {
		return
	}

	var zones []models.GeofenceZone
	if err := zs.fileClient.ReadJsonFile(zs.filePath, &zones); err != nil {
		zs.logger.Warn().
			Err(err).
			Str("path", zs.filePath).
			Msg("Persisted zones are unreadable, starting empty")
		return
	}

	for _, zone := range zones {
		zs.zones.Set(zone.ID, zone)
	}
	zs.logger.Info().Int("zones", zs.zones.Count()).Msg("Zone store restored")
}

// persist writes the current zone set to disk.
func (zs *ZoneStore) persist() {
	if zs.filePath == "" {
		return
	}

	zones := zs.List()
	if err := zs.fileClient.WriteJsonFile(zs.filePath, zones); err != nil {
		zs.logger.Error().
			Err(err).
			Str("path", zs.filePath).
			Msg("Failed to persist zones")
	}
}

// Add inserts a new zone. The id must be unique and the radius positive.
func (zs *ZoneStore) Add(zone models.GeofenceZone) error {
	if zone.Radius <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidRadius, zone.Radius)
	}
	if !zs.zones.SetIfAbsent(zone.ID, zone) {
		return fmt.Errorf("%w: %s", ErrDuplicateZone, zone.ID)
	}

	zs.persist()
	return nil
}

// Update replaces an existing zone definition.
func (zs *ZoneStore) Update(zone models.GeofenceZone) error {
	if zone.Radius <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidRadius, zone.Radius)
	}
	if !zs.zones.Has(zone.ID) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zone.ID)
	}

	zs.zones.Set(zone.ID, zone)
	zs.persist()
	return nil
}

// Delete removes the zone with the given id.
func (zs *ZoneStore) Delete(id string) error {
	if !zs.zones.Has(id) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}

	zs.zones.Remove(id)
	zs.persist()
	return nil
}

// Get returns the zone with the given id.
func (zs *ZoneStore) Get(id string) (models.GeofenceZone, bool) {
	return zs.zones.Get(id)
}

// List returns a snapshot of all zones. Order is not significant.
func (zs *ZoneStore) List() []models.GeofenceZone {
	zones := make([]models.GeofenceZone, 0, zs.zones.Count())
	for _, zone := range zs.zones.Items() {
		zones = append(zones, zone)
	}
	return zones
}

// ListEnabled returns a snapshot of the enabled zones.
func (zs *ZoneStore) ListEnabled() []models.GeofenceZone {
	var zones []models.GeofenceZone
	for _, zone := range zs.zones.Items() {
		if zone.Enabled {
			zones = append(zones, zone)
		}
	}
	return zones
}
