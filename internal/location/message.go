package location

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"travel_tracker/internal/travel"
)

// DeviceErrorPermissionDenied is sent by a device whose OS revoked location access.
const DeviceErrorPermissionDenied = "permission_denied"

// FixMessage is the JSON a guest's device sends for each position report.
// Timestamp is handled by the custom UnmarshalJSON.
type FixMessage struct {
	ProfileID string    `json:"profile_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// UnmarshalJSON accepts RFC3339 timestamps with or without a zone suffix
// (zoneless values are read as UTC). A missing timestamp stays zero.
func (m *FixMessage) UnmarshalJSON(data []byte) error {
	type alias FixMessage
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := strings.TrimSpace(aux.Timestamp)
	if ts == "" {
		m.Timestamp = time.Time{}
		return nil
	}
	if !hasZone(ts) {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	m.Timestamp = t.UTC()
	return nil
}

func hasZone(ts string) bool {
	if strings.HasSuffix(ts, "Z") || strings.HasSuffix(ts, "z") {
		return true
	}
	if len(ts) < 6 {
		return false
	}
	return strings.ContainsAny(ts[len(ts)-6:], "+-")
}

func (m FixMessage) Fix() travel.Fix {
	return travel.Fix{
		Lat:       m.Latitude,
		Lon:       m.Longitude,
		Accuracy:  m.Accuracy,
		Altitude:  m.Altitude,
		Speed:     m.Speed,
		Heading:   m.Heading,
		Timestamp: m.Timestamp,
	}
}

// StreamError maps a device-reported error onto the error that ends the stream.
// It returns nil when the message carries no error.
func (m FixMessage) StreamError() error {
	switch strings.TrimSpace(m.Error) {
	case "":
		return nil
	case DeviceErrorPermissionDenied:
		return travel.ErrPermissionDenied
	default:
		return fmt.Errorf("%w: device reported %q", travel.ErrPermissionDenied, m.Error)
	}
}
