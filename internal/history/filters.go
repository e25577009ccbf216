// Package history holds the pure transformations applied to fetched
// location histories before they are handed to a map renderer: accuracy
// filtering, flattening and distance-based path grouping. Nothing here
// performs I/O or mutates its input.
package history

import (
	"sort"

	"github.com/tracknav/track-viewer/internal/models"
	"github.com/tracknav/track-viewer/pkg/geo"
)

// FilterByAccuracy returns a copy of the history without the points whose
// reported accuracy exceeds maxAccuracy. Per-series order is preserved. A
// nil threshold passes everything through; points without a reported
// accuracy always pass.
func FilterByAccuracy(h models.LocationHistory, maxAccuracy *float64) models.LocationHistory {
	filtered := make(models.LocationHistory, len(h))
	for user, devices := range h {
		filtered[user] = make(map[string][]models.LocationPoint, len(devices))
		for device, points := range devices {
			kept := make([]models.LocationPoint, 0, len(points))
			for _, point := range points {
				if !point.WithinAccuracy(maxAccuracy) {
					continue
				}
				kept = append(kept, point)
			}
			filtered[user][device] = kept
		}
	}
	return filtered
}

// FlattenToPoints collects the coordinates of every series into a single
// flat list, skipping points without usable coordinates. Series are
// visited in sorted user/device order so the output is deterministic.
func FlattenToPoints(h models.LocationHistory) []geo.LatLng {
	latLngs := []geo.LatLng{}
	walkSeries(h, func(_, _ string, points []models.LocationPoint) {
		for _, point := range points {
			if !point.HasCoordinates() {
				continue
			}
			latLngs = append(latLngs, geo.LatLng{Lat: point.Latitude, Lng: point.Longitude})
		}
	})
	return latLngs
}

// SegmentByDistance splits each (user, device) series into groups of
// coherent coordinates: a new group starts whenever the great-circle
// distance between two consecutive points exceeds maxDistance (meters).
// A maxDistance of zero or less disables splitting. Every series
// contributes at least one group, so device boundaries always stay
// separate groups and an empty series yields an empty group.
func SegmentByDistance(h models.LocationHistory, maxDistance float64) [][]geo.LatLng {
	groups := [][]geo.LatLng{}
	walkSeries(h, func(_, _ string, points []models.LocationPoint) {
		current := []geo.LatLng{}
		for _, point := range points {
			latLng := geo.LatLng{Lat: point.Latitude, Lng: point.Longitude}
			if maxDistance > 0 && len(current) > 0 {
				last := current[len(current)-1]
				if geo.Distance(last, latLng) > maxDistance {
					// Distance is too far, start a new group.
					groups = append(groups, current)
					current = []geo.LatLng{}
				}
			}
			current = append(current, latLng)
		}
		groups = append(groups, current)
	})
	return groups
}

// walkSeries visits every (user, device) series in sorted key order.
func walkSeries(h models.LocationHistory, visit func(user, device string, points []models.LocationPoint)) {
	users := make([]string, 0, len(h))
	for user := range h {
		users = append(users, user)
	}
	sort.Strings(users)

	for _, user := range users {
		devices := make([]string, 0, len(h[user]))
		for device := range h[user] {
			devices = append(devices, device)
		}
		sort.Strings(devices)

		for _, device := range devices {
			visit(user, device, h[user][device])
		}
	}
}
