package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tracknav/track-viewer/internal/models"
)

// Recorder API paths.
const (
	versionPath   = "/api/0/version"
	listPath      = "/api/0/list"
	locationsPath = "/api/0/locations"
	lastPath      = "/api/last"

	// LivePath is the websocket endpoint for last-location pushes.
	LivePath = "/ws/last"
)

// ErrNoResponse indicates that the recorder did not produce a usable
// response (transport failure, cancellation or bad status).
var ErrNoResponse = errors.New("no response from recorder")

// RecorderClient is the consumer-facing surface of the recorder API,
// extracted so services can be tested against a mock.
type RecorderClient interface {
	Version(ctx context.Context) (string, error)
	Users(ctx context.Context) ([]string, error)
	UserDevices(ctx context.Context, user string) ([]string, error)
	LastLocations(ctx context.Context) ([]models.LocationPoint, error)
	UserDeviceHistory(ctx context.Context, user, device string, tr models.TimeRange) ([]models.LocationPoint, error)
	WebsocketURL(path string) string
}

// make sure Client keeps satisfying the interface
var _ RecorderClient = (*Client)(nil)

// Version returns the recorder's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp := c.FetchResource(ctx, versionPath, nil, nil)
	if resp == nil {
		return "", ErrNoResponse
	}
	defer resp.Body.Close()

	var body struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding version response: %w", err)
	}

	c.logger.Debug().Str("version", body.Version).Msg("Fetched recorder version")
	return body.Version, nil
}

// Users returns all usernames known to the recorder.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	users, err := c.list(ctx, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(users)).Msg("Fetched users")
	return users, nil
}

// UserDevices returns the device names of one user.
func (c *Client) UserDevices(ctx context.Context, user string) ([]string, error) {
	return c.list(ctx, map[string]string{"user": user})
}

// list fetches the /list endpoint and decodes its results field.
func (c *Client) list(ctx context.Context, params map[string]string) ([]string, error) {
	resp := c.FetchResource(ctx, listPath, params, nil)
	if resp == nil {
		return nil, ErrNoResponse
	}
	defer resp.Body.Close()

	var body struct {
		Results []string `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding list response: %w", err)
	}
	return body.Results, nil
}

// LastLocations returns the most recent location per device. A missing or
// malformed response yields an empty slice, never an error: the map simply
// stays empty.
func (c *Client) LastLocations(ctx context.Context) ([]models.LocationPoint, error) {
	resp := c.FetchResource(ctx, lastPath, nil, nil)
	if resp == nil {
		return []models.LocationPoint{}, nil
	}
	defer resp.Body.Close()

	var points []models.LocationPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		c.logger.Warn().Err(err).Msg("Last locations response is not an array, treating as empty")
		return []models.LocationPoint{}, nil
	}
	if points == nil {
		points = []models.LocationPoint{}
	}

	c.logger.Debug().Int("count", len(points)).Msg("Fetched last locations")
	return points, nil
}

// UserDeviceHistory returns the location history of one (user, device)
// pair within the given range, sorted ascending by timestamp. The recorder
// returns entries in storage order, which is not chronological; drawing
// unsorted points produces visibly wrong path segments, so the sort here
// is mandatory and stable.
func (c *Client) UserDeviceHistory(ctx context.Context, user, device string, tr models.TimeRange) ([]models.LocationPoint, error) {
	params := map[string]string{
		"from":   tr.Start,
		"to":     tr.End,
		"user":   user,
		"device": device,
		"format": "json",
	}

	resp := c.FetchResource(ctx, locationsPath, params, nil)
	if resp == nil {
		return nil, ErrNoResponse
	}
	defer resp.Body.Close()

	var body struct {
		Data []models.LocationPoint `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding history for %s/%s: %w", user, device, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("history response for %s/%s has no data field", user, device)
	}

	sort.SliceStable(body.Data, func(i, j int) bool {
		return body.Data[i].Timestamp < body.Data[j].Timestamp
	})

	c.logger.Debug().
		Str("user", user).
		Str("device", device).
		Int("count", len(body.Data)).
		Msg("Fetched location history")
	return body.Data, nil
}
