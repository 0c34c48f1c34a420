package publishers

import (
	"time"

	"github.com/terrabridge/feature-bridge/pkg/geo"
)

// Change classifies what happened to a feature between two sync passes.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Event represents the payload published downstream when a mirrored layer
// changes. Feature is nil for removals.
type Event struct {
	LayerID    string       `json:"layer_id"`
	LayerName  string       `json:"layer_name"`
	Change     string       `json:"change"`
	FeatureID  string       `json:"feature_id"`
	Feature    *geo.Feature `json:"feature,omitempty"`
	ObservedAt time.Time    `json:"observed_at"`
}

// NewEvent constructs an Event for the given layer + feature change.
func NewEvent(layerID, layerName, change, featureID string, feature *geo.Feature) Event {
	return Event{
		LayerID:    layerID,
		LayerName:  layerName,
		Change:     change,
		FeatureID:  featureID,
		Feature:    feature,
		ObservedAt: time.Now().UTC(),
	}
}
