package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const revisionsBucket = "revisions"

// boltStore implements a Store backed by BoltDB. Each layer gets a nested
// bucket holding featureID -> revision hash.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(revisionsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// LayerRevisions returns the stored featureID -> revision map for a layer.
// A layer never synced before yields an empty map.
func (b *boltStore) LayerRevisions(layerID string) (map[string]string, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	out := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		layer := b.layerBucket(tx, layerID)
		if layer == nil {
			return nil
		}
		return layer.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutRevision records the revision hash for a feature.
func (b *boltStore) PutRevision(layerID, featureID, revision string) error {
	if b == nil || b.db == nil {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(revisionsBucket))
		if root == nil {
			return fmt.Errorf("revisions bucket missing")
		}
		layer, err := root.CreateBucketIfNotExists([]byte(layerID))
		if err != nil {
			return err
		}
		return layer.Put([]byte(featureID), []byte(revision))
	})
}

// DeleteRevision forgets a feature that no longer exists on the service.
func (b *boltStore) DeleteRevision(layerID, featureID string) error {
	if b == nil || b.db == nil {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		layer := b.layerBucket(tx, layerID)
		if layer == nil {
			return nil
		}
		return layer.Delete([]byte(featureID))
	})
}

func (b *boltStore) layerBucket(tx *bolt.Tx, layerID string) *bolt.Bucket {
	root := tx.Bucket([]byte(revisionsBucket))
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(layerID))
}
