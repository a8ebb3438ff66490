package utils

import (
	"time"

	"github.com/trailmark/geotrack-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Location struct {
		SensorBased       bool   `yaml:"sensor_based"`    // Use GPS sensor instead of the geolocation API
		MapsAPIKey        string `yaml:"maps_api_key"`    // Google maps API key
		GPSDevicePort     string `yaml:"gps_device_port"` // UNIX port where the GPS sensor is mounted
		GPSDeviceBaudRate int    `yaml:"gps_baud_rate"`   // Baud rate for the GPS sensor
		ModemIndex        int    `yaml:"modem_index"`     // mmcli modem index for cell tower scans
	} `yaml:"location"`

	Geofence struct {
		ZonesFile        string        `yaml:"zones_file"`        // Path to the persisted zone definitions
		MonitoringFlag   string        `yaml:"monitoring_flag"`   // Path to the persisted monitoring-enabled flag
		SampleInterval   time.Duration `yaml:"sample_interval"`   // Interval between region evaluations
		DebounceWindow   time.Duration `yaml:"debounce_window"`   // Minimum time between accepted tracking actions
		ReconcileTimeout time.Duration `yaml:"reconcile_timeout"` // Timeout for the startup state reconciliation
	} `yaml:"geofence"`

	Areas struct {
		BoundariesFile    string  `yaml:"boundaries_file"`    // Path to the GeoJSON named-area boundaries
		SimplifyTolerance float64 `yaml:"simplify_tolerance"` // Douglas-Peucker tolerance in degrees
	} `yaml:"areas"`

	Services struct {
		Tracking struct {
			Topic    string        `yaml:"topic"`    // MQTT topic for tracking fixes
			Interval time.Duration `yaml:"interval"` // Interval between fixes while a session is active
			QOS      int           `yaml:"qos"`      // MQTT QoS level for tracking messages
		} `yaml:"tracking"`

		Sender struct {
			Topic        string        `yaml:"topic"`          // MQTT topic for queued fix delivery
			Interval     time.Duration `yaml:"interval"`       // Interval between queue drain passes
			QOS          int           `yaml:"qos"`            // MQTT QoS level for queued messages
			QueueFile    string        `yaml:"queue_file"`     // Path to the persisted delivery queue
			MaxQueueSize int           `yaml:"max_queue_size"` // Maximum number of buffered fixes
			MaxRetries   int           `yaml:"max_retries"`    // Retry cap per buffered fix
			BaseDelay    time.Duration `yaml:"base_delay"`     // Initial backoff between failed sends
			MaxBackoff   time.Duration `yaml:"max_backoff"`    // Backoff ceiling between failed sends
		} `yaml:"sender"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
