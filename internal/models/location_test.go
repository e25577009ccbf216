package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationPoint_DecodeWireFormat(t *testing.T) {
	payload := `{"_type":"location","lat":52.5,"lon":13.4,"tst":1704067200,"acc":12,"alt":34,"batt":80,"tid":"al","topic":"owntracks/alice/phone"}`

	var point LocationPoint
	require.NoError(t, json.Unmarshal([]byte(payload), &point))

	assert.Equal(t, "location", point.Type)
	assert.Equal(t, 52.5, point.Latitude)
	assert.Equal(t, int64(1704067200), point.Timestamp)
	require.NotNil(t, point.Accuracy)
	assert.Equal(t, 12.0, *point.Accuracy)
	require.NotNil(t, point.Battery)
	assert.Equal(t, 80, *point.Battery)
	assert.True(t, point.HasCoordinates())
}

func TestLocationPoint_HasCoordinates(t *testing.T) {
	assert.False(t, LocationPoint{}.HasCoordinates())
	assert.False(t, LocationPoint{Latitude: 52.5}.HasCoordinates())
	assert.False(t, LocationPoint{Longitude: 13.4}.HasCoordinates())
	assert.True(t, LocationPoint{Latitude: 52.5, Longitude: 13.4}.HasCoordinates())
}

func TestLocationPoint_WithinAccuracy(t *testing.T) {
	threshold := 100.0
	good := 50.0
	bad := 101.0

	assert.True(t, LocationPoint{Accuracy: &bad}.WithinAccuracy(nil), "nil threshold disables the filter")
	assert.True(t, LocationPoint{}.WithinAccuracy(&threshold), "missing accuracy always passes")
	assert.True(t, LocationPoint{Accuracy: &good}.WithinAccuracy(&threshold))
	assert.False(t, LocationPoint{Accuracy: &bad}.WithinAccuracy(&threshold))
}

func TestDeviceRegistry_AddReplacesAndKeepsOrder(t *testing.T) {
	registry := NewDeviceRegistry()
	registry.Add("alice", []string{"phone"})
	registry.Add("bob", []string{"car", "bike"})
	registry.Add("alice", []string{"phone", "watch"})

	assert.Equal(t, []string{"alice", "bob"}, registry.Users)
	assert.Equal(t, []string{"phone", "watch"}, registry.Devices["alice"])
	assert.Equal(t, 4, registry.DeviceCount())
}

func TestLocationHistory_Count(t *testing.T) {
	h := LocationHistory{
		"alice": {"phone": {{Timestamp: 1}, {Timestamp: 2}}, "watch": {}},
		"bob":   {"car": {{Timestamp: 3}}},
	}

	assert.Equal(t, 3, h.Count())
}
