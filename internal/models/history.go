package models

// LocationHistory maps user -> device -> chronologically ordered location
// points. Within each (user, device) series timestamps are non-decreasing
// once fetched; the series may be empty. Values are replaced wholesale,
// never mutated in place.
type LocationHistory map[string]map[string][]LocationPoint

// Count returns the total number of points across all series.
func (h LocationHistory) Count() int {
	total := 0
	for _, devices := range h {
		for _, points := range devices {
			total += len(points)
		}
	}
	return total
}

// DeviceRegistry maps each known user to their devices. Users keeps the
// order in which users were fetched; it is display order only, nothing
// depends on it semantically.
type DeviceRegistry struct {
	Users   []string            `json:"users"`
	Devices map[string][]string `json:"devices"`
}

// NewDeviceRegistry returns an empty registry ready for Add calls.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		Devices: make(map[string][]string),
	}
}

// Add records the devices of a user, replacing any previous entry.
func (r *DeviceRegistry) Add(user string, devices []string) {
	if _, seen := r.Devices[user]; !seen {
		r.Users = append(r.Users, user)
	}
	r.Devices[user] = devices
}

// DeviceCount returns the total number of registered devices.
func (r *DeviceRegistry) DeviceCount() int {
	total := 0
	for _, devices := range r.Devices {
		total += len(devices)
	}
	return total
}

// TimeRange is a caller-owned [start, end] window in ISO-8601 UTC, passed
// through to the recorder unmodified.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
