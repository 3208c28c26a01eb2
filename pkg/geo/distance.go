package geo

import orbgeo "github.com/paulmach/orb/geo"

// HaversineMeters returns the great-circle distance between two points in meters
func HaversineMeters(a, b Coordinates) float64 {
	return orbgeo.DistanceHaversine(toPoint(a), toPoint(b))
}

// PathLengthMeters returns the summed great-circle length of a path
func PathLengthMeters(coords []Coordinates) float64 {
	if len(coords) < 2 {
		return 0
	}
	return orbgeo.LengthHaversine(toLineString(coords))
}
