package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/internal/services"
	"github.com/tracknav/track-viewer/internal/state"
	"github.com/tracknav/track-viewer/internal/utils"
	"github.com/tracknav/track-viewer/pkg/api"
	"github.com/tracknav/track-viewer/pkg/file"
	"github.com/tracknav/track-viewer/pkg/geocode"
	"github.com/tracknav/track-viewer/pkg/mqtt"
)

// timeRangeLayout is the ISO-8601 UTC format the recorder expects for the
// from/to query parameters.
const timeRangeLayout = "2006-01-02T15:04:05"

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	apiClient, err := api.NewClient(config.API.BaseURL, config.API.RequestTimeout.Std(), config.API.DefaultHeaders, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	store := state.NewStore(config.Filters.MinAccuracy, config.Map.MaxPointDistance)

	ctx := context.Background()

	// The recorder version is informational; an old recorder only gets a
	// warning, the viewer still runs against it.
	if version, err := apiClient.Version(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not determine recorder version")
	} else {
		store.SetRecorderVersion(version)
		logger.Info().Str("version", version).Msg("Connected to recorder")
		if err := utils.CheckMinimumVersion(version, config.Viewer.MinRecorderVersion); err != nil {
			logger.Warn().Err(err).Msg("Recorder version check failed")
		}
	}

	// Optional reverse geocoding of last locations without an address
	var geocoder geocode.Resolver
	if config.Geocoder.Enabled {
		googleResolver, err := geocode.NewGoogleResolver(config.Geocoder.MapsAPIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create geocoder")
		}
		geocoder = googleResolver
	}

	historyService := services.NewHistoryService(apiClient, store, geocoder, config.Viewer.FetchWorkers, logger)

	// Initial load: devices, history for the configured window, last locations
	now := time.Now().UTC()
	timeRange := models.TimeRange{
		Start: now.Add(-config.Viewer.HistoryWindow.Std()).Format(timeRangeLayout),
		End:   now.Format(timeRangeLayout),
	}
	if err := historyService.RefreshAll(ctx, config.Viewer.Users, timeRange); err != nil {
		logger.Error().Err(err).Msg("Initial load failed, starting with empty state")
	}
	exportSnapshot(store, fileClient, config.Viewer.SnapshotFile, logger)

	// Every live location event refreshes the last-locations snapshot
	onLocation := func(ctx context.Context) error {
		if err := historyService.RefreshLastLocations(ctx); err != nil {
			return err
		}
		exportSnapshot(store, fileClient, config.Viewer.SnapshotFile, logger)
		return nil
	}

	var liveService *services.LiveService
	if config.Websocket.Enabled {
		liveService = services.NewLiveService(
			apiClient.WebsocketURL(api.LivePath),
			config.Websocket.ReconnectDelay.Std(),
			onLocation,
			logger,
		)
		if err := liveService.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start live service")
		}
	}

	var mqttClient *mqtt.MqttService
	var mqttLiveService *services.MQTTLiveService
	if config.MQTT.Enabled {
		// Unique client ID per session so reconnects never fight a stale one
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

		mqttClient = mqtt.NewMqttService(fileClient)
		if err := mqttClient.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}

		mqttLiveService = services.NewMQTTLiveService(config.MQTT.Topic, config.MQTT.QOS, mqttClient, onLocation, logger)
		if err := mqttLiveService.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start MQTT live service")
		}
	}

	logger.Info().
		Int("users", len(store.Users())).
		Int("locations", store.LocationHistory().Count()).
		Int("last_locations", len(store.LastLocations())).
		Msg("Viewer running")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if liveService != nil {
		if err := liveService.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop live service")
		}
	}
	if mqttLiveService != nil {
		if err := mqttLiveService.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop MQTT live service")
		}
	}
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
}

// exportSnapshot writes the current session state as JSON when a snapshot
// path is configured.
func exportSnapshot(store *state.Store, fileClient file.FileOperations, path string, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if err := fileClient.WriteJsonFile(path, store.Snapshot()); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to write state snapshot")
	}
}
