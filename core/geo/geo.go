package geo

import "math"

// earthRadiusKm is the mean earth radius used by the haversine formula.
const earthRadiusKm = 6371

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance in kilometers between a and b
// using the haversine formula.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Midpoint returns the arithmetic midpoint of a and b. It is a flat-earth
// approximation, good enough for the short overlap distances this service
// deals with.
func Midpoint(a, b Point) Point {
	return Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

func toRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
