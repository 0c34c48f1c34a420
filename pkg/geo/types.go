// Package geo holds the feature types shared between the GeoJSON side and
// the feature service side of the bridge.
package geo

// Feature represents a single geographic record in GeoJSON form.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   any            `json:"geometry"`
}

// FeatureCollection is an ordered set of GeoJSON features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// ServiceFeature represents the same record in the feature service's
// attribute/geometry encoding. Geometry is kept loose because the service
// emits different shapes per geometry type (x/y, points, paths, rings).
type ServiceFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   any            `json:"geometry"`
}

// NewFeatureCollection wraps features in a collection, preserving order.
func NewFeatureCollection(features []Feature) *FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
