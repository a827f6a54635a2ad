// Package handle issues ephemeral in-memory locators for encoded images,
// the Go counterpart of object URLs used to preview a photo before upload.
package handle

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every handle issued by a Store.
const Scheme = "blob:"

// ErrNotFound is returned when resolving a revoked or unknown handle.
var ErrNotFound = errors.New("handle: not found")

type entry struct {
	data     []byte
	mimeType string
}

// Store owns the bytes behind each live handle until it is revoked.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewStore creates an empty handle store
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Create registers data and returns a new handle for it
func (s *Store) Create(data []byte, mimeType string) string {
	h := Scheme + uuid.NewString()
	s.mu.Lock()
	s.entries[h] = entry{data: data, mimeType: mimeType}
	s.mu.Unlock()
	return h
}

// Resolve returns the bytes and MIME type behind a live handle
func (s *Store) Resolve(h string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return nil, "", ErrNotFound
	}
	return e.data, e.mimeType, nil
}

// Revoke releases a handle. Revoking an unknown handle is a no-op.
func (s *Store) Revoke(h string) {
	if h == "" {
		return
	}
	s.mu.Lock()
	delete(s.entries, h)
	s.mu.Unlock()
}

// Len reports the number of live handles
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// IsHandle reports whether ref looks like a handle issued by a Store
func IsHandle(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}
