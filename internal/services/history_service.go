package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/internal/state"
	"github.com/tracknav/track-viewer/internal/utils"
	"github.com/tracknav/track-viewer/pkg/api"
	"github.com/tracknav/track-viewer/pkg/geocode"
)

// HistoryService fetches user, device and location-history data from the
// recorder and publishes the results into the session state store.
type HistoryService struct {
	api          api.RecorderClient
	store        *state.Store
	geocoder     geocode.Resolver // optional, may be nil
	fetchWorkers int
	logger       zerolog.Logger

	// The previous fetch generation's cancel func. A new selection
	// cancels any in-flight fetch so a stale response cannot overwrite
	// newer state.
	mu         sync.Mutex
	cancelPrev context.CancelFunc
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(apiClient api.RecorderClient, store *state.Store, geocoder geocode.Resolver,
	fetchWorkers int, logger zerolog.Logger) *HistoryService {
	return &HistoryService{
		api:          apiClient,
		store:        store,
		geocoder:     geocoder,
		fetchWorkers: fetchWorkers,
		logger:       logger,
	}
}

// FetchDevices builds the device registry for the given users, fetching
// each user's device list concurrently. An empty user list means all
// users known to the recorder.
func (h *HistoryService) FetchDevices(ctx context.Context, users []string) (*models.DeviceRegistry, error) {
	if len(users) == 0 {
		fetched, err := h.api.Users(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching users: %w", err)
		}
		users = fetched
	}

	deviceLists := cmap.New[[]string]()
	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	for _, user := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			devices, err := h.api.UserDevices(ctx, user)
			if err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("fetching devices of %s: %w", user, err) })
				return
			}
			deviceLists.Set(user, devices)
		}(user)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	registry := models.NewDeviceRegistry()
	for _, user := range users {
		devices, _ := deviceLists.Get(user)
		registry.Add(user, devices)
	}

	h.logger.Info().
		Int("users", len(registry.Users)).
		Int("devices", registry.DeviceCount()).
		Msg("Fetched device registry")
	return registry, nil
}

// FetchLocationHistory fetches the history of every (user, device) pair in
// the registry concurrently and merges the results. All fetches share the
// same time range; one failing fetch does not stop the others, but any
// failure degrades the whole result to an empty mapping. The observable
// outcome at this boundary is all-or-nothing, never partially filled.
//
// Calling it again cancels the previous in-flight generation.
func (h *HistoryService) FetchLocationHistory(ctx context.Context, registry *models.DeviceRegistry,
	tr models.TimeRange) (models.LocationHistory, error) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancelPrev != nil {
		h.cancelPrev()
	}
	h.cancelPrev = cancel
	h.mu.Unlock()

	series := cmap.New[[]models.LocationPoint]()
	var errOnce sync.Once
	var firstErr error

	pool := utils.NewWorkerPool(h.fetchWorkers)
	for _, user := range registry.Users {
		for _, device := range registry.Devices[user] {
			user, device := user, device
			pool.Submit(func() {
				points, err := h.api.UserDeviceHistory(ctx, user, device, tr)
				if err != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("history of %s/%s: %w", user, device, err) })
					return
				}
				series.Set(user+"/"+device, points)
			})
		}
	}
	pool.Shutdown()

	if firstErr != nil {
		if ctx.Err() != nil || errors.Is(firstErr, context.Canceled) {
			h.logger.Warn().Msg("History fetch superseded by a newer selection")
		} else {
			h.logger.Error().Err(firstErr).Msg("History fetch failed, returning empty history")
		}
		return models.LocationHistory{}, firstErr
	}

	merged := make(models.LocationHistory, len(registry.Users))
	for _, user := range registry.Users {
		merged[user] = make(map[string][]models.LocationPoint, len(registry.Devices[user]))
		for _, device := range registry.Devices[user] {
			points, _ := series.Get(user + "/" + device)
			if points == nil {
				points = []models.LocationPoint{}
			}
			merged[user][device] = points
		}
	}

	h.logger.Info().Int("locations", merged.Count()).Msg("Fetched location history")
	return merged, nil
}

// RefreshHistory fetches the registry's history for the given range and
// replaces the store's history. On failure the store receives an empty
// history: consumers see "no data", never an error.
func (h *HistoryService) RefreshHistory(ctx context.Context, tr models.TimeRange) {
	merged, err := h.FetchLocationHistory(ctx, h.store.Devices(), tr)
	if err != nil {
		merged = models.LocationHistory{}
	}
	h.store.SetTimeRange(tr)
	h.store.SetLocationHistory(merged)
}

// RefreshLastLocations fetches the last known location of every device and
// replaces the store's snapshot. A malformed response yields an empty
// snapshot. When a geocoder is configured, points without an address get
// one resolved before publication.
func (h *HistoryService) RefreshLastLocations(ctx context.Context) error {
	points, err := h.api.LastLocations(ctx)
	if err != nil {
		return err
	}

	if h.geocoder != nil {
		h.resolveAddresses(ctx, points)
	}

	h.store.SetLastLocations(points)
	h.logger.Debug().Int("count", len(points)).Msg("Refreshed last locations")
	return nil
}

// RefreshAll performs the initial load sequence: device registry, location
// history and last locations.
func (h *HistoryService) RefreshAll(ctx context.Context, users []string, tr models.TimeRange) error {
	registry, err := h.FetchDevices(ctx, users)
	if err != nil {
		return err
	}
	h.store.SetUsers(registry.Users)
	h.store.SetDevices(registry)

	h.RefreshHistory(ctx, tr)
	return h.RefreshLastLocations(ctx)
}

// resolveAddresses fills in missing addresses in place. Failures only cost
// the address, never the point.
func (h *HistoryService) resolveAddresses(ctx context.Context, points []models.LocationPoint) {
	for i := range points {
		if points[i].Address != "" || !points[i].HasCoordinates() {
			continue
		}
		address, err := h.geocoder.ReverseGeocode(ctx, points[i].Latitude, points[i].Longitude)
		if err != nil {
			h.logger.Warn().Err(err).
				Str("user", points[i].Username).
				Str("device", points[i].DeviceName).
				Msg("Failed to reverse geocode last location")
			continue
		}
		points[i].Address = address
	}
}
