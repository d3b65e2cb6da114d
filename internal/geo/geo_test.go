package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		want      float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Lat: 51.47, Lon: -0.4543},
			b:         Point{Lat: 51.47, Lon: -0.4543},
			want:      0,
			tolerance: 1e-9,
		},
		{
			name:      "london to paris",
			a:         Point{Lat: 51.5074, Lon: -0.1278},
			b:         Point{Lat: 48.8566, Lon: 2.3522},
			want:      343_560,
			tolerance: 1_000,
		},
		{
			name:      "one millidegree of latitude",
			a:         Point{Lat: 0, Lon: 0},
			b:         Point{Lat: 0.001, Lon: 0},
			want:      111.19,
			tolerance: 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tolerance)
			assert.InDelta(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a), 1e-6, "distance must be symmetric")
		})
	}
}

func TestBearing(t *testing.T) {
	origin := Point{Lat: 0, Lon: 0}
	assert.InDelta(t, 0, Bearing(origin, Point{Lat: 1, Lon: 0}), 1e-6)
	assert.InDelta(t, 90, Bearing(origin, Point{Lat: 0, Lon: 1}), 1e-6)
	assert.InDelta(t, 180, Bearing(origin, Point{Lat: -1, Lon: 0}), 1e-6)
	assert.InDelta(t, 270, Bearing(origin, Point{Lat: 0, Lon: -1}), 1e-6)
}

func TestIntermediate(t *testing.T) {
	a := Point{Lat: 51.4700, Lon: -0.4543}
	b := Point{Lat: 51.5074, Lon: -0.1278}

	assert.Equal(t, a, Intermediate(a, b, 0))
	assert.Equal(t, b, Intermediate(a, b, 1))

	mid := Intermediate(a, b, 0.5)
	total := Distance(a, b)
	assert.InDelta(t, total/2, Distance(a, mid), 1)
	assert.InDelta(t, total/2, Distance(mid, b), 1)
}

func TestGeofenceContains(t *testing.T) {
	fence := Geofence{Center: Point{Lat: 0, Lon: 0}, RadiusMeters: 200}

	assert.True(t, fence.Contains(Point{Lat: 0, Lon: 0}))
	assert.True(t, fence.Contains(Point{Lat: 150.0 / 111_195.0, Lon: 0}))
	assert.False(t, fence.Contains(Point{Lat: 250.0 / 111_195.0, Lon: 0}))
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: -90, Lon: 180}.Valid())
	assert.False(t, Point{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: -180.5}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: math.Inf(1)}.Valid())
}

func TestTrackFeatureCollection(t *testing.T) {
	track := []Point{{Lat: 51.47, Lon: -0.45}, {Lat: 51.48, Lon: -0.44}}
	markers := []Marker{{
		Point:      Point{Lat: 51.5, Lon: -0.12},
		Properties: map[string]interface{}{"checkpoint_type": "hotel_arrival"},
	}}

	raw, err := TrackFeatureCollection(track, map[string]interface{}{"kind": "track"}, markers)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "LineString", doc.Features[0].Geometry.Type)
	assert.JSONEq(t, `[[-0.45,51.47],[-0.44,51.48]]`, string(doc.Features[0].Geometry.Coordinates))
	assert.Equal(t, "Point", doc.Features[1].Geometry.Type)
	assert.Equal(t, "hotel_arrival", doc.Features[1].Properties["checkpoint_type"])
}

func TestTrackFeatureCollection_SingleFix(t *testing.T) {
	raw, err := TrackFeatureCollection([]Point{{Lat: 1, Lon: 2}}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Point"`)
	assert.NotContains(t, string(raw), `"LineString"`)
}
