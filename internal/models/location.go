package models

// LocationPoint represents a single location publish as stored by the
// recorder. Field names follow the OwnTracks JSON wire format.
type LocationPoint struct {
	// Type is the payload discriminator; location publishes carry "location".
	Type string `json:"_type,omitempty"`

	// Latitude and Longitude in decimal degrees.
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`

	// Timestamp is the unix time (seconds) of the fix. It is the ordering
	// key for every history series.
	Timestamp int64 `json:"tst"`

	// Accuracy is the reported accuracy radius in meters, nil when the
	// publishing device did not include one.
	Accuracy *float64 `json:"acc,omitempty"`

	// Altitude above sea level in meters, if reported.
	Altitude *float64 `json:"alt,omitempty"`

	// Velocity in km/h, if reported.
	Velocity *float64 `json:"vel,omitempty"`

	// Battery level in percent, if reported.
	Battery *int `json:"batt,omitempty"`

	// TrackerID is the short identifier shown on map markers.
	TrackerID string `json:"tid,omitempty"`

	// Address is the reverse-geocoded address, when the recorder or this
	// viewer's geocoder resolved one.
	Address string `json:"addr,omitempty"`

	// Topic, Username and DeviceName identify the publish origin on
	// payloads from the /last endpoint and the live channel.
	Topic      string `json:"topic,omitempty"`
	Username   string `json:"username,omitempty"`
	DeviceName string `json:"device,omitempty"`
}

// HasCoordinates reports whether the point carries usable coordinates.
// A zero latitude or longitude counts as missing, matching how the
// recorder's stock frontend treats these payloads.
func (p LocationPoint) HasCoordinates() bool {
	return p.Latitude != 0 && p.Longitude != 0
}

// WithinAccuracy reports whether the point survives an accuracy threshold.
// A nil threshold disables filtering and points without a reported
// accuracy always survive.
func (p LocationPoint) WithinAccuracy(maxAccuracy *float64) bool {
	if maxAccuracy == nil || p.Accuracy == nil {
		return true
	}
	return *p.Accuracy <= *maxAccuracy
}
