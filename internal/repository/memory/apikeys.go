package memory

import (
	"context"
	"sync"

	"github.com/xenking/coursemart/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyStore)(nil)

// APIKeyStore holds API keys indexed by HMAC hash.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]auth.APIKeyInfo
}

// NewAPIKeyStore returns a store holding keys.
func NewAPIKeyStore(keys ...auth.APIKeyInfo) *APIKeyStore {
	s := &APIKeyStore{keys: make(map[string]auth.APIKeyInfo, len(keys))}
	for _, k := range keys {
		s.keys[k.KeyHash] = k
	}
	return s
}

func (s *APIKeyStore) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &info, nil
}
