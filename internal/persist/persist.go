// Package persist stores committed artifacts durably. Once a scene has
// survived validation it is written here; later requests for the same
// identity are served from disk without spending a generation slot.
package persist

import (
	"context"
	"sync"

	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/narrative"
)

// ErrNotFound indicates no artifact is stored for the identity. It is
// the pipeline's ErrArtifactNotFound sentinel under the name callers of
// this package look for.
var ErrNotFound = errors.ErrArtifactNotFound

// Store is the durable artifact store. Implementations are safe for
// concurrent use.
type Store interface {
	// Put persists an artifact under its identity, overwriting any
	// previous value.
	Put(ctx context.Context, artifact *narrative.Artifact) error
	// Get fetches the artifact for the identity, or ErrNotFound.
	Get(ctx context.Context, id narrative.ContentIdentity) (*narrative.Artifact, error)
	// Delete removes the artifact for the identity. Deleting an absent
	// identity is not an error.
	Delete(ctx context.Context, id narrative.ContentIdentity) error
	// Close releases underlying resources.
	Close() error
}

// MemStore is an in-memory Store for tests and embeddings that do not
// need durability.
type MemStore struct {
	mu        sync.RWMutex
	artifacts map[string]*narrative.Artifact
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{artifacts: make(map[string]*narrative.Artifact)}
}

// Put implements Store.
func (m *MemStore) Put(ctx context.Context, artifact *narrative.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[artifact.Identity.String()] = artifact
	return nil
}

// Get implements Store.
func (m *MemStore) Get(ctx context.Context, id narrative.ContentIdentity) (*narrative.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id.String()]
	if !ok {
		return nil, errors.NewNotFoundError("artifact", id.String())
	}
	return a, nil
}

// Delete implements Store.
func (m *MemStore) Delete(ctx context.Context, id narrative.ContentIdentity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id.String())
	return nil
}

// Close implements Store. A MemStore has nothing to release.
func (m *MemStore) Close() error { return nil }

// Len reports the number of stored artifacts.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}
