package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/internal/queue"
	"github.com/trailmark/geotrack-agent/pkg/geo"
	"github.com/trailmark/geotrack-agent/pkg/identity"
	"github.com/trailmark/geotrack-agent/pkg/location"
	"github.com/trailmark/geotrack-agent/pkg/mqtt"
)

// TrackingService publishes location fixes to the MQTT broker while a
// tracking session is active. Fixes that cannot be sent immediately are
// buffered in the delivery queue for the sender service to retry. Start and
// Stop are driven by the geofence controller's callbacks and may be invoked
// repeatedly.
type TrackingService struct {
	// Configuration fields
	topic    string
	interval time.Duration
	qos      int

	// Dependencies
	deviceInfo       identity.DeviceInfoInterface
	mqttClient       mqtt.MQTTClient
	logger           zerolog.Logger
	locationProvider location.Provider
	deliveryQueue    *queue.DeliveryQueue
	areas            *geo.AreaIndex

	// Internal state management
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewTrackingService creates a new TrackingService instance with the provided configuration.
func NewTrackingService(topic string, interval time.Duration, qos int, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger, locationProvider location.Provider,
	deliveryQueue *queue.DeliveryQueue, areas *geo.AreaIndex) *TrackingService {
	return &TrackingService{
		topic:            topic,
		interval:         interval,
		qos:              qos,
		deviceInfo:       deviceInfo,
		mqttClient:       mqttClient,
		logger:           logger,
		locationProvider: locationProvider,
		deliveryQueue:    deliveryQueue,
		areas:            areas,
	}
}

// Start begins the tracking session. Starting an already running session is
// a no-op, so the controller's start callback can fire repeatedly.
func (t *TrackingService) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.logger.Debug().Msg("TrackingService is already running")
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.running = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := t.publishCurrentLocation(); err != nil {
					t.logger.Error().
						Err(err).
						Msg("Failed to publish current location")
				}
			case <-t.ctx.Done():
				t.logger.Info().Msg("TrackingService is stopping")
				return
			}
		}
	}()

	t.logger.Info().
		Str("topic", t.topic).
		Dur("interval", t.interval).
		Int("qos", t.qos).
		Msg("TrackingService started")
	return nil
}

// Stop ends the tracking session. Stopping an already stopped session is a
// no-op.
func (t *TrackingService) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		t.logger.Debug().Msg("TrackingService is not running")
		return nil
	}

	t.cancel()
	t.wg.Wait()
	t.running = false

	t.logger.Info().Msg("TrackingService stopped")
	return nil
}

// Running reports whether a tracking session is active.
func (t *TrackingService) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Close releases the location provider. Called once at shutdown.
func (t *TrackingService) Close() error {
	return t.locationProvider.Close()
}

// publishCurrentLocation fetches the current fix and publishes it; on
// publish failure the fix goes into the delivery queue instead of being
// lost.
func (t *TrackingService) publishCurrentLocation() error {
	fix, err := t.locationProvider.GetLocation()
	if err != nil {
		t.logger.Error().
			Err(err).
			Msg("Failed to get location from provider")
		return err
	}

	point := t.buildTrackPoint(fix)

	payload, err := json.Marshal(point)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to serialize track point")
		return err
	}

	token := t.mqttClient.Publish(t.topic, byte(t.qos), false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		t.logger.Warn().
			Err(err).
			Str("topic", t.topic).
			Msg("Publish failed, buffering fix for retry")

		t.deliveryQueue.Add(models.PendingLocationRecord{
			ID:        uuid.New().String(),
			Payload:   point,
			CreatedAt: time.Now(),
		})
		return nil
	}

	t.logger.Debug().
		Float64("latitude", point.Latitude).
		Float64("longitude", point.Longitude).
		Str("area", point.Area).
		Msg("Track point published")
	return nil
}

// buildTrackPoint assembles the wire payload for one fix.
func (t *TrackingService) buildTrackPoint(fix location.Location) models.TrackPoint {
	point := models.TrackPoint{
		DeviceID:  t.deviceInfo.GetDeviceID(),
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: time.Now().Unix(),
		Altitude:  fix.Altitude,
		Speed:     fix.Speed,
		Bearing:   fix.Bearing,
	}

	if fix.Accuracy > 0 {
		accuracy := fix.Accuracy
		point.Accuracy = &accuracy
	}
	if level, ok := location.ReadBatteryLevel(); ok {
		point.BatteryLevel = &level
	}
	if t.areas != nil {
		if name, ok := t.areas.Locate(geo.Point{Latitude: fix.Latitude, Longitude: fix.Longitude}); ok {
			point.Area = name
		}
	}
	return point
}
