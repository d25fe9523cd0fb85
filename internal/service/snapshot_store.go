package service

import (
	"sync"

	"github.com/Lumaria/Bot-Extended/internal/domain"
)

// SnapshotStore holds the latest top-of-book quote per market. The stream
// supervisor is the only writer; readers get copies. Replacement is
// wholesale and last-write-wins: the feed delivers in order on a single
// connection and no sequence check is applied.
type SnapshotStore struct {
	mu     sync.RWMutex
	quotes map[string]domain.MarketQuote
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		quotes: make(map[string]domain.MarketQuote),
	}
}

// Put unconditionally replaces the stored quote for the market.
func (s *SnapshotStore) Put(market string, quote domain.MarketQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[market] = quote
}

// Get returns the current quote, or ok=false when none is cached.
// It never triggers a refresh.
func (s *SnapshotStore) Get(market string) (domain.MarketQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[market]
	return quote, ok
}

// Remove deletes the entry; called on stream teardown so no stale quote
// survives a stop.
func (s *SnapshotStore) Remove(market string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.quotes, market)
}

// Len returns the number of cached quotes.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}
