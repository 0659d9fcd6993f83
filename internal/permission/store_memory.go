package permission

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore enforces the same one-row-per-experience rule as the
// Postgres unique index.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]Permission
	names  func(Permission) (experienceName, userName string)
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[int64]Permission)}
}

// WithNames sets the resolver used by ListAll to fill display names.
func (s *InMemoryStore) WithNames(fn func(Permission) (string, string)) *InMemoryStore {
	s.names = fn
	return s
}

func (s *InMemoryStore) GetByExperienceID(_ context.Context, experienceID int64) (*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[experienceID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *InMemoryStore) Add(_ context.Context, p *Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[p.ExperienceID]; exists {
		return ErrDuplicate
	}
	s.nextID++
	p.ID = s.nextID
	s.rows[p.ExperienceID] = *p
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, p *Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[p.ExperienceID]; !exists {
		return ErrNotRequested
	}
	s.rows[p.ExperienceID] = *p
	return nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Listing, 0, len(s.rows))
	for _, row := range s.rows {
		item := Listing{Permission: row}
		if s.names != nil {
			item.ExperienceName, item.UserName = s.names(row)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
