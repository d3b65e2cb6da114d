package geo

import (
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

// Marker is a single point feature with free-form properties (e.g. a checkpoint geofence).
type Marker struct {
	Point      Point
	Properties map[string]interface{}
}

// TrackFeatureCollection renders a travelled track plus markers as a GeoJSON
// FeatureCollection. A track with a single fix is rendered as a Point; an empty
// track is omitted.
func TrackFeatureCollection(track []Point, trackProps map[string]interface{}, markers []Marker) ([]byte, error) {
	fc := gjson.FeatureCollection{Features: make([]*gjson.Feature, 0, len(markers)+1)}

	switch len(track) {
	case 0:
	case 1:
		pt, err := geom.NewPoint(geom.XY).SetCoords(toCoord(track[0]))
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &gjson.Feature{Geometry: pt, Properties: trackProps})
	default:
		coords := make([]geom.Coord, 0, len(track))
		for _, p := range track {
			coords = append(coords, toCoord(p))
		}
		ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &gjson.Feature{Geometry: ls, Properties: trackProps})
	}

	for _, m := range markers {
		pt, err := geom.NewPoint(geom.XY).SetCoords(toCoord(m.Point))
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &gjson.Feature{Geometry: pt, Properties: m.Properties})
	}

	return fc.MarshalJSON()
}

// GeoJSON uses lon/lat order.
func toCoord(p Point) geom.Coord {
	return geom.Coord{p.Lon, p.Lat}
}
