package geo

import "github.com/paulmach/orb"

// DefaultCenter is used when there is nothing to frame (Mexico City, Zócalo)
var DefaultCenter = Coordinates{Latitude: 19.432608, Longitude: -99.133209}

// defaultSpan is the half-size in degrees of DefaultBounds
const defaultSpan = 0.1

// DefaultBounds returns the box framed when no coordinates are available
func DefaultBounds() Bounds {
	return Bounds{
		NorthEast: Coordinates{Latitude: DefaultCenter.Latitude + defaultSpan, Longitude: DefaultCenter.Longitude + defaultSpan},
		SouthWest: Coordinates{Latitude: DefaultCenter.Latitude - defaultSpan, Longitude: DefaultCenter.Longitude - defaultSpan},
	}
}

// CalculateRouteBounds returns the min/max lat/lng box around coords,
// or DefaultBounds for empty input.
func CalculateRouteBounds(coords []Coordinates) Bounds {
	if len(coords) == 0 {
		return DefaultBounds()
	}

	b := toMultiPoint(coords).Bound()
	return Bounds{
		NorthEast: Coordinates{Latitude: b.Max.Lat(), Longitude: b.Max.Lon()},
		SouthWest: Coordinates{Latitude: b.Min.Lat(), Longitude: b.Min.Lon()},
	}
}

// Contains reports whether c lies inside the box (edges included)
func (b Bounds) Contains(c Coordinates) bool {
	return b.bound().Contains(toPoint(c))
}

// Center returns the midpoint of the box
func (b Bounds) Center() Coordinates {
	p := b.bound().Center()
	return Coordinates{Latitude: p.Lat(), Longitude: p.Lon()}
}

func (b Bounds) bound() orb.Bound {
	return orb.Bound{
		Min: toPoint(b.SouthWest),
		Max: toPoint(b.NorthEast),
	}
}

func toPoint(c Coordinates) orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

func toMultiPoint(coords []Coordinates) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(coords))
	for i, c := range coords {
		mp[i] = toPoint(c)
	}
	return mp
}

func toLineString(coords []Coordinates) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = toPoint(c)
	}
	return ls
}
