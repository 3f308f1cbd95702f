/*
Package store provides in-memory storage for generated page artifacts.

Generated bytes are kept with a TTL matching the owning job's lifetime so the
download path can assemble archives without a database, while expired pages
are reclaimed the same way expired job state is.
*/
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// artifactEntry is stored bytes plus expiration
type artifactEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e *artifactEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Store is the artifact storage interface
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// InMemoryStore implements an in-memory artifact store with TTL support
type InMemoryStore struct {
	entries map[string]*artifactEntry
	mutex   sync.RWMutex
	ttl     time.Duration
}

// NewInMemoryStore creates an in-memory store with the given default TTL
func NewInMemoryStore(defaultTTL time.Duration) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]*artifactEntry),
		ttl:     defaultTTL,
	}

	go s.startCleanup()

	return s
}

// Get retrieves artifact bytes by key
func (s *InMemoryStore) Get(key string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, exists := s.entries[key]
	if !exists || e.expired() {
		return nil, false
	}
	return e.data, true
}

// Set stores artifact bytes under the key
func (s *InMemoryStore) Set(key string, data []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.ttl
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[key] = &artifactEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes an artifact
func (s *InMemoryStore) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, key)
	return nil
}

// Clear removes all artifacts
func (s *InMemoryStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = make(map[string]*artifactEntry)
	return nil
}

// startCleanup periodically removes expired artifacts
func (s *InMemoryStore) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *InMemoryStore) cleanup() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, e := range s.entries {
		if e.expired() {
			delete(s.entries, key)
		}
	}
}

// ArtifactManager wraps a Store with logging and a fixed per-job TTL policy
type ArtifactManager struct {
	store  Store
	logger *logrus.Logger
	ttl    time.Duration
}

// NewArtifactManager creates an artifact manager
func NewArtifactManager(store Store, logger *logrus.Logger, ttl time.Duration) *ArtifactManager {
	return &ArtifactManager{
		store:  store,
		logger: logger,
		ttl:    ttl,
	}
}

// Put stores generated page bytes under the given reference
func (m *ArtifactManager) Put(ref string, data []byte) error {
	if err := m.store.Set(ref, data, m.ttl); err != nil {
		m.logger.WithFields(logrus.Fields{
			"output_ref": ref,
			"size_bytes": len(data),
			"error":      err.Error(),
		}).Error("Failed to store generated page")
		return fmt.Errorf("store page %s: %w", ref, err)
	}
	return nil
}

// Fetch returns the bytes stored under the reference
func (m *ArtifactManager) Fetch(ref string) ([]byte, bool) {
	data, found := m.store.Get(ref)
	if !found {
		m.logger.WithField("output_ref", ref).Debug("Artifact miss")
	}
	return data, found
}

// Remove deletes the artifact under the reference
func (m *ArtifactManager) Remove(ref string) error {
	return m.store.Delete(ref)
}
