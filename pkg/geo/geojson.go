package geo

import (
	"github.com/paulmach/orb/geojson"
)

// RouteToGeoJSON builds a feature collection with the route path as a
// LineString and one Point per waypoint. props are attached to the path.
func RouteToGeoJSON(coords []Coordinates, waypoints []Waypoint, props map[string]any) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	if len(coords) > 0 {
		path := geojson.NewFeature(toLineString(coords))
		path.Properties["kind"] = "route"
		for k, v := range props {
			path.Properties[k] = v
		}
		fc.Append(path)
	}

	for _, wp := range waypoints {
		point := geojson.NewFeature(toPoint(Coordinates{Latitude: wp.Lat, Longitude: wp.Lng}))
		point.Properties["kind"] = "waypoint"
		point.Properties["optimized_index"] = wp.OptimizedIndex
		if wp.Address != "" {
			point.Properties["address"] = wp.Address
		}
		fc.Append(point)
	}

	return fc.MarshalJSON()
}
