// Package mirror diffs mirrored feature layers against their last-seen
// state and publishes change events downstream.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/terrabridge/feature-bridge/internal/logger"
	"github.com/terrabridge/feature-bridge/internal/storage"
	"github.com/terrabridge/feature-bridge/pkg/featureservice"
	"github.com/terrabridge/feature-bridge/pkg/geo"
	"github.com/terrabridge/feature-bridge/pkg/layers"
	"github.com/terrabridge/feature-bridge/pkg/publishers"
)

// FeatureSource is the query surface the mirror needs from a layer client.
type FeatureSource interface {
	Query(ctx context.Context, params featureservice.Params) (*geo.FeatureCollection, error)
}

// SourceFactory builds the client for one configured layer.
type SourceFactory func(cfg layers.LayerConfig) FeatureSource

// EventPublisher publishes detected changes downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Service coordinates sync passes across multiple layers.
type Service struct {
	newSource SourceFactory
	fanout    EventPublisher
	log       logger.Logger
	store     storage.Store
}

// NewService wires a mirror service with the layer client factory.
func NewService(newSource SourceFactory, fanout EventPublisher, log logger.Logger, store storage.Store) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		newSource: newSource,
		fanout:    fanout,
		log:       log,
		store:     store,
	}
}

// Run executes a sync pass for all configured layers.
func (s *Service) Run(ctx context.Context, cfgs []layers.LayerConfig) error {
	if s == nil || s.newSource == nil {
		return fmt.Errorf("mirror service is not initialized")
	}
	if len(cfgs) == 0 {
		return fmt.Errorf("no layers configured for mirroring")
	}

	var errs []error
	for _, cfg := range cfgs {
		if err := s.syncLayer(ctx, cfg); err != nil {
			errs = append(errs, fmt.Errorf("sync layer %s: %w", cfg.ID, err))
			s.log.ErrorObj("layer sync failed", "layer_error", map[string]any{
				"layer_id": cfg.ID,
				"error":    err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

// syncLayer queries one layer, diffs it against the stored revisions, and
// publishes created/updated/removed events. Revisions are only advanced for
// events every publisher accepted, so failed deliveries are retried on the
// next pass.
func (s *Service) syncLayer(ctx context.Context, cfg layers.LayerConfig) error {
	src := s.newSource(cfg)
	fc, err := src.Query(ctx, featureservice.Params{"where": cfg.Where})
	if err != nil {
		return fmt.Errorf("query features: %w", err)
	}

	prev, err := s.store.LayerRevisions(cfg.ID)
	if err != nil {
		return fmt.Errorf("load revisions: %w", err)
	}

	var errs []error
	created, updated, removed := 0, 0, 0
	current := make(map[string]struct{}, len(fc.Features))

	for i := range fc.Features {
		f := fc.Features[i]
		id, ok := featureID(f, cfg.IDField)
		if !ok {
			s.log.WarnObj("feature missing identifier, skipped", "layer_feature", map[string]any{
				"layer_id": cfg.ID,
				"id_field": cfg.IDField,
			})
			continue
		}
		current[id] = struct{}{}

		rev, err := revisionHash(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("hash feature %s: %w", id, err))
			continue
		}
		seen, existed := prev[id]
		if existed && seen == rev {
			continue
		}

		change := publishers.ChangeCreated
		if existed {
			change = publishers.ChangeUpdated
		}
		evt := publishers.NewEvent(cfg.ID, cfg.Name, change, id, &f)
		if err := s.deliver(ctx, evt); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.store.PutRevision(cfg.ID, id, rev); err != nil {
			errs = append(errs, fmt.Errorf("store revision %s: %w", id, err))
			continue
		}
		if existed {
			updated++
		} else {
			created++
		}
	}

	for id := range prev {
		if _, stillThere := current[id]; stillThere {
			continue
		}
		evt := publishers.NewEvent(cfg.ID, cfg.Name, publishers.ChangeRemoved, id, nil)
		if err := s.deliver(ctx, evt); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.store.DeleteRevision(cfg.ID, id); err != nil {
			errs = append(errs, fmt.Errorf("drop revision %s: %w", id, err))
			continue
		}
		removed++
	}

	s.log.InfoObj("layer sync completed", "layer_result", map[string]any{
		"layer_id": cfg.ID,
		"features": len(fc.Features),
		"created":  created,
		"updated":  updated,
		"removed":  removed,
	})
	return errors.Join(errs...)
}

func (s *Service) deliver(ctx context.Context, evt publishers.Event) error {
	if s.fanout == nil {
		return nil
	}
	if _, err := s.fanout.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", evt.Change, evt.FeatureID, err)
	}
	return nil
}

// featureID extracts the identifier property as a stable string key.
func featureID(f geo.Feature, idField string) (string, bool) {
	v, ok := f.Properties[idField]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	default:
		return fmt.Sprint(id), true
	}
}

// revisionHash fingerprints a feature's serialized form. encoding/json
// emits map keys in sorted order, so equal features hash equally.
func revisionHash(f geo.Feature) (string, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(payload), 16), nil
}
