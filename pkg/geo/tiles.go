package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level tile helpers accept
const MaxZoom = 20

// Tile is a Web Mercator slippy-map tile index
type Tile struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
	Z uint32 `json:"z"`
}

// String returns the tile in z/x/y form
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Valid reports whether x and y are inside the grid for zoom z
func (t Tile) Valid() bool {
	if t.Z > MaxZoom {
		return false
	}
	n := uint32(1) << t.Z
	return t.X < n && t.Y < n
}

// TileAt returns the tile containing c at the given zoom:
//
//	x = floor((lng+180)/360 * 2^z)
//	y = floor((1 - ln(tan(lat) + sec(lat))/π) / 2 * 2^z)
func TileAt(c Coordinates, zoom uint32) Tile {
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	c.Longitude = math.Max(-180, math.Min(180, c.Longitude))

	t := maptile.At(toPoint(c), maptile.Zoom(zoom))
	// lng=180 and the southern mercator edge land one past the last index
	last := uint32(1)<<zoom - 1
	return Tile{X: min(t.X, last), Y: min(t.Y, last), Z: uint32(t.Z)}
}

// TilesForBounds lists every tile covering b at the given zoom, row by row
// from the north-west corner. A box whose west edge is east of its east edge
// crosses the antimeridian and wraps through x=0. At most limit tiles are
// returned (0 = no limit).
func TilesForBounds(b Bounds, zoom uint32, limit int) []Tile {
	nw := TileAt(Coordinates{Latitude: b.NorthEast.Latitude, Longitude: b.SouthWest.Longitude}, zoom)
	se := TileAt(Coordinates{Latitude: b.SouthWest.Latitude, Longitude: b.NorthEast.Longitude}, zoom)

	spans := [][2]uint32{{nw.X, se.X}}
	if b.SouthWest.Longitude > b.NorthEast.Longitude {
		last := uint32(1)<<nw.Z - 1
		if nw.X <= se.X {
			spans = [][2]uint32{{0, last}}
		} else {
			spans = [][2]uint32{{nw.X, last}, {0, se.X}}
		}
	}

	tiles := []Tile{}
	for y := nw.Y; y <= se.Y; y++ {
		for _, span := range spans {
			for x := span[0]; x <= span[1]; x++ {
				if limit > 0 && len(tiles) >= limit {
					return tiles
				}
				tiles = append(tiles, Tile{X: x, Y: y, Z: nw.Z})
			}
		}
	}
	return tiles
}
