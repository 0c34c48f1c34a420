package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/terrabridge/feature-bridge/pkg/featureservice"
	"github.com/terrabridge/feature-bridge/pkg/geo"
	"github.com/terrabridge/feature-bridge/pkg/layers"
	"github.com/terrabridge/feature-bridge/pkg/publishers"
)

type fakeSource struct {
	fc  *geo.FeatureCollection
	err error

	lastParams featureservice.Params
}

func (f *fakeSource) Query(_ context.Context, params featureservice.Params) (*geo.FeatureCollection, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.fc, nil
}

type capturePublisher struct {
	events []publishers.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.events = append(c.events, evt)
	return 1, nil
}

type memStore struct {
	revs map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{revs: make(map[string]map[string]string)}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) LayerRevisions(layerID string) (map[string]string, error) {
	out := make(map[string]string, len(m.revs[layerID]))
	for k, v := range m.revs[layerID] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) PutRevision(layerID, featureID, revision string) error {
	if m.revs[layerID] == nil {
		m.revs[layerID] = make(map[string]string)
	}
	m.revs[layerID][featureID] = revision
	return nil
}

func (m *memStore) DeleteRevision(layerID, featureID string) error {
	delete(m.revs[layerID], featureID)
	return nil
}

func pointFeature(id float64, name string) geo.Feature {
	return geo.Feature{
		Type: "Feature",
		Properties: map[string]any{
			"objectid": id,
			"name":     name,
		},
		Geometry: map[string]any{
			"type":        "Point",
			"coordinates": []float64{-3.7, 40.4},
		},
	}
}

func testLayer() layers.LayerConfig {
	return layers.LayerConfig{
		ID:      "hydrants",
		Name:    "City hydrants",
		URL:     "https://gis.example.com/rest/services/hydrants/FeatureServer/0",
		IDField: "objectid",
		Where:   "status = 'active'",
	}
}

func TestRunFirstPassPublishesCreated(t *testing.T) {
	src := &fakeSource{fc: geo.NewFeatureCollection([]geo.Feature{
		pointFeature(1, "north"),
		pointFeature(2, "south"),
	})}
	pub := &capturePublisher{}
	store := newMemStore()

	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, pub, nil, store)
	if err := svc.Run(context.Background(), []layers.LayerConfig{testLayer()}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if src.lastParams["where"] != "status = 'active'" {
		t.Fatalf("where clause not forwarded: %v", src.lastParams)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	for _, evt := range pub.events {
		if evt.Change != publishers.ChangeCreated {
			t.Fatalf("expected created change, got %q", evt.Change)
		}
		if evt.LayerID != "hydrants" || evt.Feature == nil {
			t.Fatalf("event = %#v", evt)
		}
	}
	revs, _ := store.LayerRevisions("hydrants")
	if len(revs) != 2 {
		t.Fatalf("expected 2 stored revisions, got %v", revs)
	}
}

func TestRunSecondPassIsQuietWhenNothingChanged(t *testing.T) {
	src := &fakeSource{fc: geo.NewFeatureCollection([]geo.Feature{pointFeature(1, "north")})}
	pub := &capturePublisher{}
	store := newMemStore()
	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, pub, nil, store)

	cfgs := []layers.LayerConfig{testLayer()}
	if err := svc.Run(context.Background(), cfgs); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	pub.events = nil

	if err := svc.Run(context.Background(), cfgs); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events on unchanged pass, got %#v", pub.events)
	}
}

func TestRunDetectsUpdatesAndRemovals(t *testing.T) {
	src := &fakeSource{fc: geo.NewFeatureCollection([]geo.Feature{
		pointFeature(1, "north"),
		pointFeature(2, "south"),
	})}
	pub := &capturePublisher{}
	store := newMemStore()
	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, pub, nil, store)
	cfgs := []layers.LayerConfig{testLayer()}

	if err := svc.Run(context.Background(), cfgs); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	pub.events = nil

	// Feature 1 changes a property, feature 2 disappears.
	src.fc = geo.NewFeatureCollection([]geo.Feature{pointFeature(1, "north-renamed")})
	if err := svc.Run(context.Background(), cfgs); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	changes := map[string]string{}
	for _, evt := range pub.events {
		changes[evt.FeatureID] = evt.Change
	}
	if changes["1"] != publishers.ChangeUpdated {
		t.Fatalf("feature 1 change = %q, events %#v", changes["1"], pub.events)
	}
	if changes["2"] != publishers.ChangeRemoved {
		t.Fatalf("feature 2 change = %q, events %#v", changes["2"], pub.events)
	}

	revs, _ := store.LayerRevisions("hydrants")
	if _, ok := revs["2"]; ok {
		t.Fatalf("removed feature still has a revision: %v", revs)
	}
}

func TestRunKeepsRevisionWhenPublishFails(t *testing.T) {
	src := &fakeSource{fc: geo.NewFeatureCollection([]geo.Feature{pointFeature(1, "north")})}
	pub := &capturePublisher{err: errors.New("broker down")}
	store := newMemStore()
	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, pub, nil, store)

	err := svc.Run(context.Background(), []layers.LayerConfig{testLayer()})
	if err == nil {
		t.Fatalf("expected error when publishing fails")
	}
	revs, _ := store.LayerRevisions("hydrants")
	if len(revs) != 0 {
		t.Fatalf("revision advanced despite failed publish: %v", revs)
	}
}

func TestRunSkipsFeaturesWithoutIdentifier(t *testing.T) {
	anonymous := geo.Feature{
		Type:       "Feature",
		Properties: map[string]any{"name": "no id"},
	}
	src := &fakeSource{fc: geo.NewFeatureCollection([]geo.Feature{anonymous, pointFeature(5, "east")})}
	pub := &capturePublisher{}
	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, pub, nil, newMemStore())

	if err := svc.Run(context.Background(), []layers.LayerConfig{testLayer()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].FeatureID != "5" {
		t.Fatalf("events = %#v", pub.events)
	}
}

func TestRunSurfacesQueryErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("service unreachable")}
	svc := NewService(func(layers.LayerConfig) FeatureSource { return src }, &capturePublisher{}, nil, newMemStore())

	err := svc.Run(context.Background(), []layers.LayerConfig{testLayer()})
	if err == nil {
		t.Fatalf("expected query error to surface")
	}
}

func TestRunRequiresLayers(t *testing.T) {
	svc := NewService(func(layers.LayerConfig) FeatureSource { return nil }, nil, nil, newMemStore())
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty layer list")
	}
}

func TestFeatureIDFormatsWholeFloats(t *testing.T) {
	f := pointFeature(42, "x")
	id, ok := featureID(f, "objectid")
	if !ok || id != "42" {
		t.Fatalf("featureID = %q, %v", id, ok)
	}
}
