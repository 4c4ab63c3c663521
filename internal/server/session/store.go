package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Store maps live session ids to account ids.
type Store interface {
	Get(sessionID string) (int64, bool)
	Set(sessionID string, accountID int64, ttl time.Duration)
	Delete(sessionID string)
}

// MemoryStore keeps sessions in process memory; they do not survive a
// restart. Expired entries are purged every cleanupInterval.
type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: cache.New(defaultTTL, cleanupInterval)}
}

func (s *MemoryStore) Get(sessionID string) (int64, bool) {
	v, ok := s.c.Get(sessionID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func (s *MemoryStore) Set(sessionID string, accountID int64, ttl time.Duration) {
	s.c.Set(sessionID, accountID, ttl)
}

func (s *MemoryStore) Delete(sessionID string) {
	s.c.Delete(sessionID)
}

// Len returns the number of unexpired sessions.
func (s *MemoryStore) Len() int {
	return s.c.ItemCount()
}
