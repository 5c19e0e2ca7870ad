package cart

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/book-store/internal/model"
)

type memCart struct {
	lines   map[uint64]uint32
	expires time.Time
}

// MemoryStore is the process-local Store used when Redis is unavailable.
// Carts do not survive a restart and are not shared between replicas.
type MemoryStore struct {
	mu        sync.Mutex
	carts     map[string]*memCart
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{carts: map[string]*memCart{}, ttl: ttl, now: time.Now}
}

// sweep drops every expired cart, at most once per TTL.  Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for id, c := range s.carts {
		if !now.Before(c.expires) {
			delete(s.carts, id)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

// get returns the live cart, dropping it when expired.  A create refreshes
// the expiry and sweeps abandoned carts.  Callers hold mu.
func (s *MemoryStore) get(cartID string, create bool) *memCart {
	now := s.now()
	if create {
		s.sweep(now)
	}
	c, ok := s.carts[cartID]
	if ok && !now.Before(c.expires) {
		delete(s.carts, cartID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		c = &memCart{lines: map[uint64]uint32{}}
		s.carts[cartID] = c
	}
	if create {
		c.expires = now.Add(s.ttl)
	}
	return c
}

func (s *MemoryStore) Lines(_ context.Context, cartID string) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(cartID, false)
	if c == nil {
		return []model.CartLine{}, nil
	}
	lines := make([]model.CartLine, 0, len(c.lines))
	for id, q := range c.lines {
		lines = append(lines, model.CartLine{BookID: id, Quantity: q})
	}
	return sortLines(lines), nil
}

func (s *MemoryStore) Quantity(_ context.Context, cartID string, bookID uint64) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.get(cartID, false); c != nil {
		return c.lines[bookID], nil
	}
	return 0, nil
}

func (s *MemoryStore) Add(_ context.Context, cartID string, bookID uint64, qty uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(cartID, true)
	c.lines[bookID] += qty
	return c.lines[bookID], nil
}

func (s *MemoryStore) Set(_ context.Context, cartID string, bookID uint64, qty uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(cartID, true)
	if qty == 0 {
		delete(c.lines, bookID)
		return nil
	}
	c.lines[bookID] = qty
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, cartID string, bookIDs ...uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.get(cartID, false); c != nil {
		for _, id := range bookIDs {
			delete(c.lines, id)
		}
		c.expires = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}
