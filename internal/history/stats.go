package history

import (
	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/pkg/geo"
)

// TrackStats summarizes a location history for display: total distance
// travelled and cumulative elevation gain/loss, all in meters.
type TrackStats struct {
	DistanceTravelled float64 `json:"distance_travelled"`
	ElevationGain     float64 `json:"elevation_gain"`
	ElevationLoss     float64 `json:"elevation_loss"`
}

// ComputeTrackStats derives TrackStats from consecutive points of each
// (user, device) series. Distances never accumulate across series, so a
// device sitting in another city does not add a phantom leg.
func ComputeTrackStats(h models.LocationHistory) TrackStats {
	var stats TrackStats
	walkSeries(h, func(_, _ string, points []models.LocationPoint) {
		var prev *models.LocationPoint
		for i := range points {
			point := points[i]
			if !point.HasCoordinates() {
				continue
			}
			if prev != nil {
				stats.DistanceTravelled += geo.Distance(
					geo.LatLng{Lat: prev.Latitude, Lng: prev.Longitude},
					geo.LatLng{Lat: point.Latitude, Lng: point.Longitude},
				)
				if prev.Altitude != nil && point.Altitude != nil {
					delta := *point.Altitude - *prev.Altitude
					if delta > 0 {
						stats.ElevationGain += delta
					} else {
						stats.ElevationLoss += -delta
					}
				}
			}
			prev = &points[i]
		}
	})
	return stats
}
