package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/geofence"
	"github.com/trailmark/geotrack-agent/internal/queue"
	"github.com/trailmark/geotrack-agent/internal/regionmon"
	"github.com/trailmark/geotrack-agent/internal/service_registry"
	"github.com/trailmark/geotrack-agent/internal/services"
	"github.com/trailmark/geotrack-agent/internal/utils"
	"github.com/trailmark/geotrack-agent/pkg/file"
	"github.com/trailmark/geotrack-agent/pkg/geo"
	"github.com/trailmark/geotrack-agent/pkg/identity"
	"github.com/trailmark/geotrack-agent/pkg/location"
	"github.com/trailmark/geotrack-agent/pkg/mqtt"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load device information")
	}

	// Select the location provider
	var provider location.Provider
	if config.Location.SensorBased {
		provider = location.NewDeviceSensorProvider(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate)
	} else {
		provider, err = location.NewGoogleGeolocationProvider(config.Location.MapsAPIKey, config.Location.ModemIndex)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Google Geolocation provider")
		}
	}

	// Load the named-area boundary index; tracking runs without it when the
	// boundary file is absent.
	var areas *geo.AreaIndex
	if config.Areas.BoundariesFile != "" {
		areas, err = geo.LoadAreaIndex(config.Areas.BoundariesFile, config.Areas.SimplifyTolerance,
			fileClient, logger.With().Str("component", "areas").Logger())
		if err != nil {
			logger.Warn().Err(err).Msg("Named-area boundaries unavailable")
			areas = nil
		}
	}

	// Delivery queue for fixes awaiting transmission
	deliveryQueue := queue.NewDeliveryQueue(config.Services.Sender.MaxQueueSize, config.Services.Sender.QueueFile,
		fileClient, logger.With().Str("component", "queue").Logger())

	// Zone store and software region monitor
	zoneStore := geofence.NewZoneStore(config.Geofence.ZonesFile, fileClient,
		logger.With().Str("component", "zones").Logger())

	sampleInterval := config.Geofence.SampleInterval
	if sampleInterval <= 0 {
		sampleInterval = 30 * time.Second
	}
	monitor := regionmon.NewMonitor(sampleInterval, provider,
		logger.With().Str("component", "regionmon").Logger())

	// Tracking session, started and stopped by the geofence controller
	trackingService := services.NewTrackingService(
		config.Services.Tracking.Topic,
		config.Services.Tracking.Interval,
		config.Services.Tracking.QOS,
		deviceInfo,
		mqttClient,
		logger.With().Str("component", "tracking").Logger(),
		provider,
		deliveryQueue,
		areas,
	)

	controllerOpts := []geofence.Option{}
	if config.Geofence.DebounceWindow > 0 {
		controllerOpts = append(controllerOpts, geofence.WithDebounceWindow(config.Geofence.DebounceWindow))
	}
	if config.Geofence.ReconcileTimeout > 0 {
		controllerOpts = append(controllerOpts, geofence.WithReconcileTimeout(config.Geofence.ReconcileTimeout))
	}

	controller := geofence.NewController(
		zoneStore,
		monitor,
		func() {
			if err := trackingService.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start tracking session")
			}
		},
		func() {
			if err := trackingService.Stop(); err != nil {
				logger.Error().Err(err).Msg("Failed to stop tracking session")
			}
		},
		logger.With().Str("component", "geofence").Logger(),
		controllerOpts...,
	)
	monitor.SetHandler(controller)

	geofenceService := services.NewGeofenceService(controller, zoneStore, monitor,
		config.Geofence.MonitoringFlag, fileClient,
		logger.With().Str("component", "geofence").Logger())

	senderService := services.NewSenderService(
		config.Services.Sender.Topic,
		config.Services.Sender.Interval,
		config.Services.Sender.QOS,
		config.Services.Sender.MaxRetries,
		config.Services.Sender.BaseDelay,
		config.Services.Sender.MaxBackoff,
		mqttClient,
		deliveryQueue,
		logger.With().Str("component", "sender").Logger(),
	)

	// Register and start services. The tracking service is not registered;
	// its lifecycle belongs to the geofence controller.
	serviceRegistry := service_registry.NewServiceRegistry(logger)
	serviceRegistry.RegisterService("geofence", geofenceService)
	serviceRegistry.RegisterService("sender", senderService)

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Service shutdown reported errors")
	}
	if err := trackingService.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop tracking session")
	}
	if err := trackingService.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close location provider")
	}
	mqttClient.Disconnect(250)
}
