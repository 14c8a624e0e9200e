package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

// memory implements Journal using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu        sync.RWMutex
	exchanges map[string]model.Exchange
}

// NewMemory creates a new in-memory journal.
func NewMemory() Journal {
	return &memory{exchanges: make(map[string]model.Exchange)}
}

func (m *memory) Record(ctx context.Context, exchange model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.exchanges[exchange.ID]; exists {
		return ErrConflict
	}
	m.exchanges[exchange.ID] = exchange
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*model.Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.exchanges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memory) List(ctx context.Context, query model.ListExchangesQuery) (*model.ListExchangesResult, error) {
	after := ""
	if query.Cursor != "" {
		id, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, err
		}
		after = id
	}

	m.mu.RLock()
	filtered := make([]model.Exchange, 0, len(m.exchanges))
	for _, e := range m.exchanges {
		if query.Operation != "" && e.Operation != query.Operation {
			continue
		}
		if !query.Since.IsZero() && e.CompletedAt.Before(query.Since) {
			continue
		}
		if after != "" && e.ID >= after {
			continue
		}
		filtered = append(filtered, e)
	}
	m.mu.RUnlock()

	// Newest first
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID > filtered[j].ID })

	limit := pageSize(query.Limit)
	result := &model.ListExchangesResult{Exchanges: filtered}
	if len(filtered) > limit {
		result.Exchanges = filtered[:limit]
		result.NextCursor = encodeCursor(result.Exchanges[limit-1].ID)
	}
	return result, nil
}

func (m *memory) Backend() string { return "memory" }

func (m *memory) Close() {}
