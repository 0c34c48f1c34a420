// Package convert translates features between the service's
// attribute/geometry encoding and GeoJSON. Geometry type and coordinate
// structure survive a round trip; attribute and property keys pass through
// unchanged.
package convert

import (
	"fmt"

	"github.com/terrabridge/feature-bridge/pkg/geo"
)

// Codec implements both conversion directions. It is stateless.
type Codec struct{}

// ToGeoJSON converts a service feature to a GeoJSON feature. A feature
// without geometry converts to a feature with nil geometry; a geometry of an
// unrecognized shape is an error.
func (Codec) ToGeoJSON(sf geo.ServiceFeature) (geo.Feature, error) {
	out := geo.Feature{
		Type:       "Feature",
		Properties: copyMap(sf.Attributes),
	}

	geom, ok := sf.Geometry.(map[string]any)
	if !ok || len(geom) == 0 {
		if sf.Geometry == nil {
			return out, nil
		}
		return geo.Feature{}, fmt.Errorf("service geometry is not an object")
	}

	switch {
	case hasKey(geom, "x") && hasKey(geom, "y"):
		x, xOk := asFloat(geom["x"])
		y, yOk := asFloat(geom["y"])
		if !xOk || !yOk {
			return geo.Feature{}, fmt.Errorf("point geometry has non-numeric x/y")
		}
		out.Geometry = map[string]any{
			"type":        "Point",
			"coordinates": []float64{x, y},
		}
	case hasKey(geom, "points"):
		points, ok := asPath(geom["points"])
		if !ok {
			return geo.Feature{}, fmt.Errorf("multipoint geometry has malformed points")
		}
		out.Geometry = map[string]any{
			"type":        "MultiPoint",
			"coordinates": points,
		}
	case hasKey(geom, "paths"):
		paths, ok := asPathList(geom["paths"])
		if !ok || len(paths) == 0 {
			return geo.Feature{}, fmt.Errorf("polyline geometry has malformed paths")
		}
		if len(paths) == 1 {
			out.Geometry = map[string]any{
				"type":        "LineString",
				"coordinates": paths[0],
			}
		} else {
			out.Geometry = map[string]any{
				"type":        "MultiLineString",
				"coordinates": paths,
			}
		}
	case hasKey(geom, "rings"):
		rings, ok := asPathList(geom["rings"])
		if !ok || len(rings) == 0 {
			return geo.Feature{}, fmt.Errorf("polygon geometry has malformed rings")
		}
		for i, ring := range rings {
			rings[i] = closeRing(ring)
		}
		out.Geometry = map[string]any{
			"type":        "Polygon",
			"coordinates": rings,
		}
	default:
		return geo.Feature{}, fmt.Errorf("unsupported service geometry shape")
	}

	return out, nil
}

// ToService converts a GeoJSON feature to the service encoding.
func (Codec) ToService(f geo.Feature) (geo.ServiceFeature, error) {
	out := geo.ServiceFeature{
		Attributes: copyMap(f.Properties),
	}
	if f.Geometry == nil {
		return out, nil
	}

	geom, ok := f.Geometry.(map[string]any)
	if !ok {
		return geo.ServiceFeature{}, fmt.Errorf("geojson geometry is not an object")
	}
	geomType, _ := geom["type"].(string)
	coords := geom["coordinates"]

	switch geomType {
	case "Point":
		pos, ok := asPosition(coords)
		if !ok {
			return geo.ServiceFeature{}, fmt.Errorf("point coordinates are malformed")
		}
		out.Geometry = map[string]any{"x": pos[0], "y": pos[1]}
	case "MultiPoint":
		points, ok := asPath(coords)
		if !ok {
			return geo.ServiceFeature{}, fmt.Errorf("multipoint coordinates are malformed")
		}
		out.Geometry = map[string]any{"points": points}
	case "LineString":
		path, ok := asPath(coords)
		if !ok {
			return geo.ServiceFeature{}, fmt.Errorf("linestring coordinates are malformed")
		}
		out.Geometry = map[string]any{"paths": [][][]float64{path}}
	case "MultiLineString":
		paths, ok := asPathList(coords)
		if !ok {
			return geo.ServiceFeature{}, fmt.Errorf("multilinestring coordinates are malformed")
		}
		out.Geometry = map[string]any{"paths": paths}
	case "Polygon":
		rings, ok := asPathList(coords)
		if !ok {
			return geo.ServiceFeature{}, fmt.Errorf("polygon coordinates are malformed")
		}
		out.Geometry = map[string]any{"rings": rings}
	default:
		return geo.ServiceFeature{}, fmt.Errorf("unsupported geojson geometry type %q", geomType)
	}

	return out, nil
}

// closeRing appends the first vertex when a ring is left open. The service
// tolerates open rings; GeoJSON does not.
func closeRing(ring [][]float64) [][]float64 {
	if len(ring) == 0 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		ring = append(ring, []float64{first[0], first[1]})
	}
	return ring
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// asPosition accepts either a decoded JSON position ([]any) or one built in
// process ([]float64) and returns at least x and y.
func asPosition(v any) ([]float64, bool) {
	switch pos := v.(type) {
	case []float64:
		if len(pos) < 2 {
			return nil, false
		}
		return pos, true
	case []any:
		if len(pos) < 2 {
			return nil, false
		}
		out := make([]float64, 0, len(pos))
		for _, c := range pos {
			f, ok := asFloat(c)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

func asPath(v any) ([][]float64, bool) {
	switch path := v.(type) {
	case [][]float64:
		return path, true
	case []any:
		out := make([][]float64, 0, len(path))
		for _, p := range path {
			pos, ok := asPosition(p)
			if !ok {
				return nil, false
			}
			out = append(out, pos)
		}
		return out, true
	}
	return nil, false
}

func asPathList(v any) ([][][]float64, bool) {
	switch paths := v.(type) {
	case [][][]float64:
		return paths, true
	case []any:
		out := make([][][]float64, 0, len(paths))
		for _, p := range paths {
			path, ok := asPath(p)
			if !ok {
				return nil, false
			}
			out = append(out, path)
		}
		return out, true
	}
	return nil, false
}
