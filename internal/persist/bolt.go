package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/narrative"
)

const artifactBucket = "artifact"

// BoltStore provides a BoltDB-backed artifact store.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens a BoltDB-backed store at the provided path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &BoltStore{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists an artifact record.
func (s *BoltStore) Put(ctx context.Context, artifact *narrative.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if artifact == nil || artifact.Identity.Scene == "" {
		return fmt.Errorf("artifact identity is required")
	}

	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactBucket))
		if bucket == nil {
			return fmt.Errorf("artifact bucket is missing")
		}
		return bucket.Put(artifactKey(artifact.Identity), payload)
	})
}

// Get fetches an artifact record by identity.
func (s *BoltStore) Get(ctx context.Context, id narrative.ContentIdentity) (*narrative.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if id.Scene == "" {
		return nil, fmt.Errorf("artifact identity is required")
	}

	var artifact narrative.Artifact
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactBucket))
		if bucket == nil {
			return fmt.Errorf("artifact bucket is missing")
		}
		payload := bucket.Get(artifactKey(id))
		if payload == nil {
			return errors.NewNotFoundError("artifact", id.String())
		}
		if err := json.Unmarshal(payload, &artifact); err != nil {
			return fmt.Errorf("unmarshal artifact: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &artifact, nil
}

// Delete removes the artifact stored for the identity, if any.
func (s *BoltStore) Delete(ctx context.Context, id narrative.ContentIdentity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactBucket))
		if bucket == nil {
			return fmt.Errorf("artifact bucket is missing")
		}
		return bucket.Delete(artifactKey(id))
	})
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(artifactBucket))
		if err != nil {
			return fmt.Errorf("create artifact bucket: %w", err)
		}
		return nil
	})
}

func artifactKey(id narrative.ContentIdentity) []byte {
	return []byte(id.String())
}
