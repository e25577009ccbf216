package utils

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracknav/track-viewer/pkg/file"
)

// Duration wraps time.Duration so YAML configs can use "30s"-style
// strings. Bare integers are interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Integer scalars must be
// tried first: yaml happily decodes them into a string, which would then
// fail duration parsing for lack of a unit.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the structure of the configuration file.
type Config struct {
	API struct {
		BaseURL        string            `yaml:"base_url"`        // Recorder base URL, e.g. http://localhost:8083
		RequestTimeout Duration          `yaml:"request_timeout"` // Timeout per HTTP request
		DefaultHeaders map[string]string `yaml:"default_headers"` // Headers applied to every request; win over per-call headers
	} `yaml:"api"`

	Filters struct {
		MinAccuracy *float64 `yaml:"min_accuracy"` // Accuracy threshold in meters; absent disables filtering
	} `yaml:"filters"`

	Map struct {
		MaxPointDistance float64 `yaml:"max_point_distance"` // Max distance between consecutive points in meters; 0 disables grouping
	} `yaml:"map"`

	Websocket struct {
		Enabled        bool     `yaml:"enabled"`         // Enable/disable the live websocket channel
		ReconnectDelay Duration `yaml:"reconnect_delay"` // Fixed delay before reconnecting after a drop
	} `yaml:"websocket"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable the direct broker subscription
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Topic         string `yaml:"topic"`          // Subscription topic, e.g. owntracks/+/+
		QOS           int    `yaml:"qos"`            // MQTT QoS level for the subscription
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate; empty disables TLS
	} `yaml:"mqtt"`

	Geocoder struct {
		Enabled    bool   `yaml:"enabled"`      // Enable/disable reverse geocoding of last locations
		MapsAPIKey string `yaml:"maps_api_key"` // Google Maps API key
	} `yaml:"geocoder"`

	Viewer struct {
		Users              []string `yaml:"users"`                // Users to track; empty means all users known to the recorder
		HistoryWindow      Duration `yaml:"history_window"`       // Length of the initial history time range
		FetchWorkers       int      `yaml:"fetch_workers"`        // Concurrent per-device history fetches
		MinRecorderVersion string   `yaml:"min_recorder_version"` // Minimum supported recorder version
		SnapshotFile       string   `yaml:"snapshot_file"`        // Path for JSON state snapshots; empty disables the export
	} `yaml:"viewer"`
}

// LoadConfig loads the YAML configuration from the specified file and
// fills in defaults for the knobs that may be left out.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	if config.API.RequestTimeout <= 0 {
		config.API.RequestTimeout = Duration(30 * time.Second)
	}
	if config.Websocket.ReconnectDelay <= 0 {
		config.Websocket.ReconnectDelay = Duration(time.Second)
	}
	if config.Viewer.HistoryWindow <= 0 {
		config.Viewer.HistoryWindow = Duration(24 * time.Hour)
	}
	if config.Viewer.FetchWorkers <= 0 {
		config.Viewer.FetchWorkers = 8
	}

	return &config, nil
}
