package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/internal/state"
)

// MockRecorderClient is a testify mock of the recorder API surface.
type MockRecorderClient struct {
	mock.Mock
}

func (m *MockRecorderClient) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockRecorderClient) Users(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRecorderClient) UserDevices(ctx context.Context, user string) ([]string, error) {
	args := m.Called(ctx, user)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRecorderClient) LastLocations(ctx context.Context) ([]models.LocationPoint, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.LocationPoint), args.Error(1)
}

func (m *MockRecorderClient) UserDeviceHistory(ctx context.Context, user, device string, tr models.TimeRange) ([]models.LocationPoint, error) {
	args := m.Called(ctx, user, device, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationPoint), args.Error(1)
}

func (m *MockRecorderClient) WebsocketURL(path string) string {
	args := m.Called(path)
	return args.String(0)
}

func historyPoint(tst int64, lat, lon float64) models.LocationPoint {
	return models.LocationPoint{Type: "location", Latitude: lat, Longitude: lon, Timestamp: tst}
}

func TestFetchDevices_BuildsRegistryForAllUsers(t *testing.T) {
	mockAPI := new(MockRecorderClient)
	mockAPI.On("Users", mock.Anything).Return([]string{"alice", "bob"}, nil)
	mockAPI.On("UserDevices", mock.Anything, "alice").Return([]string{"phone", "watch"}, nil)
	mockAPI.On("UserDevices", mock.Anything, "bob").Return([]string{"car"}, nil)

	store := state.NewStore(nil, 0)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	registry, err := svc.FetchDevices(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, registry.Users)
	assert.Equal(t, []string{"phone", "watch"}, registry.Devices["alice"])
	assert.Equal(t, []string{"car"}, registry.Devices["bob"])
	assert.Equal(t, 3, registry.DeviceCount())
}

func TestFetchDevices_ExplicitUserListSkipsUserLookup(t *testing.T) {
	mockAPI := new(MockRecorderClient)
	mockAPI.On("UserDevices", mock.Anything, "alice").Return([]string{"phone"}, nil)

	store := state.NewStore(nil, 0)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	registry, err := svc.FetchDevices(context.Background(), []string{"alice"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, registry.Users)
	mockAPI.AssertNotCalled(t, "Users", mock.Anything)
}

func TestFetchLocationHistory_MergesAllSeries(t *testing.T) {
	tr := models.TimeRange{Start: "2024-01-01T00:00:00", End: "2024-01-01T01:00:00"}

	mockAPI := new(MockRecorderClient)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "phone", tr).Return([]models.LocationPoint{
		historyPoint(10, 52.5001, 13.4),
		historyPoint(20, 52.5002, 13.4),
		historyPoint(30, 52.5003, 13.4),
	}, nil)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "watch", tr).Return([]models.LocationPoint{}, nil)

	registry := models.NewDeviceRegistry()
	registry.Add("alice", []string{"phone", "watch"})

	store := state.NewStore(nil, 0)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	merged, err := svc.FetchLocationHistory(context.Background(), registry, tr)
	require.NoError(t, err)

	require.Len(t, merged["alice"]["phone"], 3)
	require.Len(t, merged["alice"]["watch"], 0)
	assert.Equal(t, 3, merged.Count())
}

func TestFetchLocationHistory_AnyFailureYieldsEmptyMapping(t *testing.T) {
	tr := models.TimeRange{Start: "a", End: "b"}

	mockAPI := new(MockRecorderClient)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "phone", tr).Return([]models.LocationPoint{
		historyPoint(10, 52.5, 13.4),
	}, nil)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "watch", tr).Return(nil, errors.New("malformed body"))

	registry := models.NewDeviceRegistry()
	registry.Add("alice", []string{"phone", "watch"})

	store := state.NewStore(nil, 0)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	merged, err := svc.FetchLocationHistory(context.Background(), registry, tr)
	assert.Error(t, err)
	assert.Empty(t, merged, "aggregate result is all-or-nothing, never partial")
}

func TestRefreshHistory_FailureLeavesEmptyStateNotError(t *testing.T) {
	tr := models.TimeRange{Start: "a", End: "b"}

	mockAPI := new(MockRecorderClient)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "phone", tr).Return(nil, errors.New("down"))

	registry := models.NewDeviceRegistry()
	registry.Add("alice", []string{"phone"})

	store := state.NewStore(nil, 0)
	store.SetDevices(registry)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	svc.RefreshHistory(context.Background(), tr)

	assert.NotNil(t, store.LocationHistory())
	assert.Equal(t, 0, store.LocationHistory().Count())
	assert.Equal(t, tr, store.TimeRange())
}

func TestRefreshLastLocations_ReplacesSnapshotWholesale(t *testing.T) {
	mockAPI := new(MockRecorderClient)
	mockAPI.On("LastLocations", mock.Anything).Return([]models.LocationPoint{
		historyPoint(100, 52.5, 13.4),
	}, nil).Once()
	mockAPI.On("LastLocations", mock.Anything).Return([]models.LocationPoint{}, nil).Once()

	store := state.NewStore(nil, 0)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	require.NoError(t, svc.RefreshLastLocations(context.Background()))
	assert.Len(t, store.LastLocations(), 1)

	// The next refresh replaces, never merges.
	require.NoError(t, svc.RefreshLastLocations(context.Background()))
	assert.Empty(t, store.LastLocations())
}

// End-to-end through store and derived views: alice's phone yields one
// non-empty group, her empty watch series one empty group.
func TestRefreshAll_EndToEnd(t *testing.T) {
	tr := models.TimeRange{Start: "2024-01-01T00:00:00", End: "2024-01-01T01:00:00"}

	mockAPI := new(MockRecorderClient)
	mockAPI.On("UserDevices", mock.Anything, "alice").Return([]string{"phone", "watch"}, nil)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "phone", tr).Return([]models.LocationPoint{
		historyPoint(10, 52.5001, 13.4),
		historyPoint(20, 52.5002, 13.4),
		historyPoint(30, 52.5003, 13.4),
	}, nil)
	mockAPI.On("UserDeviceHistory", mock.Anything, "alice", "watch", tr).Return([]models.LocationPoint{}, nil)
	mockAPI.On("LastLocations", mock.Anything).Return([]models.LocationPoint{historyPoint(30, 52.5003, 13.4)}, nil)

	store := state.NewStore(nil, 1000)
	svc := NewHistoryService(mockAPI, store, nil, 4, zerolog.Nop())

	require.NoError(t, svc.RefreshAll(context.Background(), []string{"alice"}, tr))

	history := store.LocationHistory()
	assert.Len(t, history["alice"]["phone"], 3)
	assert.Empty(t, history["alice"]["watch"])

	groups := store.FilteredLatLngGroups()
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	assert.Empty(t, groups[1])

	assert.Len(t, store.FilteredLatLngs(), 3)
	assert.Len(t, store.LastLocations(), 1)
}
