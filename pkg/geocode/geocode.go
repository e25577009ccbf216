package geocode

import (
	"context"
	"errors"
	"time"

	"googlemaps.github.io/maps"
)

// Resolver resolves coordinates into a human-readable address.
type Resolver interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// ErrNoAddress indicates that no address is known for the coordinates.
var ErrNoAddress = errors.New("no address found")

// GoogleResolver resolves addresses through the Google Maps Geocoding API.
type GoogleResolver struct {
	client *maps.Client
}

// NewGoogleResolver creates a GoogleResolver using the given API key.
func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleResolver{
		client: c,
	}, nil
}

// ReverseGeocode returns the formatted address of the first geocoding
// result for the coordinates.
func (g *GoogleResolver) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoAddress
	}

	return results[0].FormattedAddress, nil
}
