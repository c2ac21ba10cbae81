// Package credentials holds the bearer credential the client presents to the
// backend. Minting credentials is the embedding application's job; the core
// only reads them and clears them when the backend rejects them.
package credentials

import (
	"errors"
	"sync"
)

var (
	// ErrMissing is returned when an operation needs a credential and none
	// is stored.
	ErrMissing = errors.New("no credential available")
	// ErrRejected marks errors caused by the backend refusing the stored
	// credential. The only recovery is obtaining a new one.
	ErrRejected = errors.New("credential rejected")
)

type Store interface {
	Get() (string, bool)
	Set(credential string) error
	Clear() error
}

type MemoryStore struct {
	credential string
	mu         sync.RWMutex
}

func NewMemoryStore(credential string) *MemoryStore {
	return &MemoryStore{credential: credential}
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential, s.credential != ""
}

func (s *MemoryStore) Set(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Clear() error {
	return s.Set("")
}
