package convert

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/terrabridge/feature-bridge/pkg/geo"
)

func TestToGeoJSONPoint(t *testing.T) {
	sf := geo.ServiceFeature{
		Attributes: map[string]any{"name": "station-7", "objectid": float64(7)},
		Geometry:   map[string]any{"x": 90.41, "y": 23.81},
	}

	f, err := Codec{}.ToGeoJSON(sf)
	if err != nil {
		t.Fatalf("ToGeoJSON: %v", err)
	}
	if f.Type != "Feature" {
		t.Fatalf("type = %q, want Feature", f.Type)
	}
	if f.Properties["name"] != "station-7" {
		t.Fatalf("properties not carried over: %v", f.Properties)
	}
	geom := f.Geometry.(map[string]any)
	if geom["type"] != "Point" {
		t.Fatalf("geometry type = %v, want Point", geom["type"])
	}
	if coords := geom["coordinates"].([]float64); coords[0] != 90.41 || coords[1] != 23.81 {
		t.Fatalf("coordinates = %v", coords)
	}
}

func TestToGeoJSONDecodedWireFormat(t *testing.T) {
	// Geometry as it arrives from encoding/json: []any nesting, not typed slices.
	raw := `{"attributes":{"id":1},"geometry":{"paths":[[[0,0],[1,1],[2,0]]]}}`
	var sf geo.ServiceFeature
	if err := json.Unmarshal([]byte(raw), &sf); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	f, err := Codec{}.ToGeoJSON(sf)
	if err != nil {
		t.Fatalf("ToGeoJSON: %v", err)
	}
	geom := f.Geometry.(map[string]any)
	if geom["type"] != "LineString" {
		t.Fatalf("geometry type = %v, want LineString", geom["type"])
	}
	want := [][]float64{{0, 0}, {1, 1}, {2, 0}}
	if !reflect.DeepEqual(geom["coordinates"], want) {
		t.Fatalf("coordinates = %v, want %v", geom["coordinates"], want)
	}
}

func TestToGeoJSONClosesOpenRings(t *testing.T) {
	sf := geo.ServiceFeature{
		Geometry: map[string]any{
			"rings": [][][]float64{{{0, 0}, {0, 1}, {1, 1}}},
		},
	}

	f, err := Codec{}.ToGeoJSON(sf)
	if err != nil {
		t.Fatalf("ToGeoJSON: %v", err)
	}
	rings := f.Geometry.(map[string]any)["coordinates"].([][][]float64)
	ring := rings[0]
	if len(ring) != 4 {
		t.Fatalf("ring length = %d, want 4 (closed)", len(ring))
	}
	if ring[0][0] != ring[3][0] || ring[0][1] != ring[3][1] {
		t.Fatalf("ring not closed: %v", ring)
	}
}

func TestToServiceRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		geometry map[string]any
		wantKey  string
	}{
		{
			name:     "point",
			geometry: map[string]any{"type": "Point", "coordinates": []float64{10, 20}},
			wantKey:  "x",
		},
		{
			name:     "multipoint",
			geometry: map[string]any{"type": "MultiPoint", "coordinates": [][]float64{{1, 2}, {3, 4}}},
			wantKey:  "points",
		},
		{
			name:     "linestring",
			geometry: map[string]any{"type": "LineString", "coordinates": [][]float64{{0, 0}, {5, 5}}},
			wantKey:  "paths",
		},
		{
			name: "polygon",
			geometry: map[string]any{
				"type":        "Polygon",
				"coordinates": [][][]float64{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}},
			},
			wantKey: "rings",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sf, err := Codec{}.ToService(geo.Feature{
				Type:       "Feature",
				Properties: map[string]any{"k": "v"},
				Geometry:   tc.geometry,
			})
			if err != nil {
				t.Fatalf("ToService: %v", err)
			}
			geom := sf.Geometry.(map[string]any)
			if _, ok := geom[tc.wantKey]; !ok {
				t.Fatalf("service geometry missing %q: %v", tc.wantKey, geom)
			}
			if sf.Attributes["k"] != "v" {
				t.Fatalf("attributes not carried over: %v", sf.Attributes)
			}

			back, err := Codec{}.ToGeoJSON(sf)
			if err != nil {
				t.Fatalf("round trip ToGeoJSON: %v", err)
			}
			gotType := back.Geometry.(map[string]any)["type"]
			if gotType != tc.geometry["type"] {
				t.Fatalf("round trip geometry type = %v, want %v", gotType, tc.geometry["type"])
			}
		})
	}
}

func TestToServiceUnsupportedType(t *testing.T) {
	_, err := Codec{}.ToService(geo.Feature{
		Type:     "Feature",
		Geometry: map[string]any{"type": "GeometryCollection"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported geometry type")
	}
}

func TestNilGeometryPassesThrough(t *testing.T) {
	f, err := Codec{}.ToGeoJSON(geo.ServiceFeature{Attributes: map[string]any{"a": float64(1)}})
	if err != nil {
		t.Fatalf("ToGeoJSON: %v", err)
	}
	if f.Geometry != nil {
		t.Fatalf("geometry = %v, want nil", f.Geometry)
	}

	sf, err := Codec{}.ToService(geo.Feature{Type: "Feature"})
	if err != nil {
		t.Fatalf("ToService: %v", err)
	}
	if sf.Geometry != nil {
		t.Fatalf("service geometry = %v, want nil", sf.Geometry)
	}
}
