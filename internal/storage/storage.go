// Package storage provides the local revision cache tracking the last-seen
// state of mirrored features.
package storage

import (
	"fmt"
	"strings"
)

// Store tracks the last-seen revision hash of each mirrored feature, keyed
// by layer and feature identifier.
type Store interface {
	Close() error
	LayerRevisions(layerID string) (map[string]string, error)
	PutRevision(layerID, featureID, revision string) error
	DeleteRevision(layerID, featureID string) error
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// noopStore reports every feature as never seen, which makes the mirror
// republish everything each pass. Useful for one-shot runs.
type noopStore struct{}

func (noopStore) Close() error                                     { return nil }
func (noopStore) LayerRevisions(string) (map[string]string, error) { return nil, nil }
func (noopStore) PutRevision(string, string, string) error         { return nil }
func (noopStore) DeleteRevision(string, string) error              { return nil }
