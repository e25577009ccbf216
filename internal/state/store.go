// Package state owns the viewer's session state. All pipeline outputs
// live here behind replace-whole-value setters; derived map views are
// recomputed from the current snapshot on every read, so readers never
// observe a torn update.
package state

import (
	"sync"

	"github.com/tracknav/track-viewer/internal/history"
	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/pkg/geo"
)

// Store holds everything the rendering layer consumes: users, devices,
// the aggregated location history, the last-locations snapshot and the
// filter thresholds the derived views are computed with.
type Store struct {
	mu sync.RWMutex

	// Filter configuration, fixed at construction.
	minAccuracy      *float64
	maxPointDistance float64

	recorderVersion string
	users           []string
	registry        *models.DeviceRegistry
	locationHistory models.LocationHistory
	lastLocations   []models.LocationPoint
	timeRange       models.TimeRange
}

// NewStore creates an empty Store with the given derived-view thresholds.
func NewStore(minAccuracy *float64, maxPointDistance float64) *Store {
	return &Store{
		minAccuracy:      minAccuracy,
		maxPointDistance: maxPointDistance,
		registry:         models.NewDeviceRegistry(),
		locationHistory:  models.LocationHistory{},
		lastLocations:    []models.LocationPoint{},
	}
}

// SetRecorderVersion records the recorder version reported by the server.
func (s *Store) SetRecorderVersion(version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorderVersion = version
}

// RecorderVersion returns the recorder version last reported.
func (s *Store) RecorderVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorderVersion
}

// SetUsers replaces the known user list.
func (s *Store) SetUsers(users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

// Users returns the known user list.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users
}

// SetDevices replaces the device registry.
func (s *Store) SetDevices(registry *models.DeviceRegistry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if registry == nil {
		registry = models.NewDeviceRegistry()
	}
	s.registry = registry
}

// Devices returns the current device registry.
func (s *Store) Devices() *models.DeviceRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// SetLocationHistory replaces the aggregated location history.
func (s *Store) SetLocationHistory(h models.LocationHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		h = models.LocationHistory{}
	}
	s.locationHistory = h
}

// LocationHistory returns the current aggregated location history.
func (s *Store) LocationHistory() models.LocationHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locationHistory
}

// SetLastLocations replaces the last-locations snapshot wholesale. A nil
// slice is stored as empty so consumers can always range over it.
func (s *Store) SetLastLocations(points []models.LocationPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if points == nil {
		points = []models.LocationPoint{}
	}
	s.lastLocations = points
}

// LastLocations returns the last-locations snapshot.
func (s *Store) LastLocations() []models.LocationPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLocations
}

// SetTimeRange records the currently selected history window.
func (s *Store) SetTimeRange(tr models.TimeRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeRange = tr
}

// TimeRange returns the currently selected history window.
func (s *Store) TimeRange() models.TimeRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeRange
}

// FilteredLocationHistory applies the accuracy threshold to the current
// history.
func (s *Store) FilteredLocationHistory() models.LocationHistory {
	return history.FilterByAccuracy(s.LocationHistory(), s.minAccuracy)
}

// FilteredLatLngs flattens the filtered history into a single coordinate
// list.
func (s *Store) FilteredLatLngs() []geo.LatLng {
	return history.FlattenToPoints(s.FilteredLocationHistory())
}

// FilteredLatLngGroups splits the filtered history into coherent
// coordinate groups using the configured max point distance.
func (s *Store) FilteredLatLngGroups() [][]geo.LatLng {
	return history.SegmentByDistance(s.FilteredLocationHistory(), s.maxPointDistance)
}

// Stats summarizes the filtered history.
func (s *Store) Stats() history.TrackStats {
	return history.ComputeTrackStats(s.FilteredLocationHistory())
}

// Snapshot is a serializable view of the whole session state, including
// the derived map views.
type Snapshot struct {
	RecorderVersion string                 `json:"recorder_version"`
	TimeRange       models.TimeRange       `json:"time_range"`
	Users           []string               `json:"users"`
	Devices         map[string][]string    `json:"devices"`
	LocationHistory models.LocationHistory `json:"location_history"`
	LastLocations   []models.LocationPoint `json:"last_locations"`
	LatLngs         []geo.LatLng           `json:"lat_lngs"`
	LatLngGroups    [][]geo.LatLng         `json:"lat_lng_groups"`
	Stats           history.TrackStats     `json:"stats"`
}

// Snapshot captures the current state and its derived views.
func (s *Store) Snapshot() Snapshot {
	filtered := s.FilteredLocationHistory()
	return Snapshot{
		RecorderVersion: s.RecorderVersion(),
		TimeRange:       s.TimeRange(),
		Users:           s.Users(),
		Devices:         s.Devices().Devices,
		LocationHistory: filtered,
		LastLocations:   s.LastLocations(),
		LatLngs:         history.FlattenToPoints(filtered),
		LatLngGroups:    history.SegmentByDistance(filtered, s.maxPointDistance),
		Stats:           history.ComputeTrackStats(filtered),
	}
}
