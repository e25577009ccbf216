package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_ZeroForSamePoint(t *testing.T) {
	p := LatLng{Lat: 48.8584, Lng: 2.2945}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistance_OneDegreeOfLatitude(t *testing.T) {
	a := LatLng{Lat: 0, Lng: 0}
	b := LatLng{Lat: 1, Lng: 0}

	// One degree of latitude is roughly 111.2 km on the mean-radius sphere.
	assert.InDelta(t, 111195, Distance(a, b), 50)
}

func TestDistance_KnownCityPair(t *testing.T) {
	berlin := LatLng{Lat: 52.5200, Lng: 13.4050}
	hamburg := LatLng{Lat: 53.5511, Lng: 9.9937}

	// Great-circle distance Berlin-Hamburg is about 255 km.
	assert.InDelta(t, 255000, Distance(berlin, hamburg), 2000)
}

func TestDistance_Symmetric(t *testing.T) {
	a := LatLng{Lat: -33.8688, Lng: 151.2093}
	b := LatLng{Lat: 51.5074, Lng: -0.1278}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}
