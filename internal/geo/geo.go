// Package geo holds the great-circle helpers used for checkpoint proximity.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by every calculation here.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p is a finite coordinate inside the WGS84 ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance calculates the haversine distance between two points in meters.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing calculates the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	deltaLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(deltaLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// Intermediate returns the point at fraction f (0..1) along the great circle from a to b.
func Intermediate(a, b Point, f float64) Point {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	d := Distance(a, b) / EarthRadiusMeters
	if d == 0 {
		return a
	}
	lat1, lon1 := toRadians(a.Lat), toRadians(a.Lon)
	lat2, lon2 := toRadians(b.Lat), toRadians(b.Lon)

	s := math.Sin(d)
	ka := math.Sin((1-f)*d) / s
	kb := math.Sin(f*d) / s

	x := ka*math.Cos(lat1)*math.Cos(lon1) + kb*math.Cos(lat2)*math.Cos(lon2)
	y := ka*math.Cos(lat1)*math.Sin(lon1) + kb*math.Cos(lat2)*math.Sin(lon2)
	z := ka*math.Sin(lat1) + kb*math.Sin(lat2)

	return Point{
		Lat: toDegrees(math.Atan2(z, math.Sqrt(x*x+y*y))),
		Lon: toDegrees(math.Atan2(y, x)),
	}
}

// Geofence is a circular region around Center.
type Geofence struct {
	Center       Point
	RadiusMeters float64
}

// Contains reports whether p lies within the fence (boundary inclusive).
func (g Geofence) Contains(p Point) bool {
	return Distance(g.Center, p) <= g.RadiusMeters
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
