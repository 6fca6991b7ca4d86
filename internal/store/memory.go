package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process ProductStore with the same upsert semantics as the
// Mongo store. It backs tests and the scrape CLI dry runs.
type Memory struct {
	mu    sync.RWMutex
	byURL map[string]*models.Product
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byURL: make(map[string]*models.Product),
		now:   time.Now,
	}
}

func (m *Memory) FindByURL(ctx context.Context, url string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.byURL {
		if p.ID == oid {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindByPath(ctx context.Context, getURL string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.byURL {
		if p.GetURL == getURL {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(ctx context.Context, limit int) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]*models.Product, 0, len(m.byURL))
	for _, p := range m.byURL {
		products = append(products, clone(p))
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].UpdatedAt.After(products[j].UpdatedAt)
	})

	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (m *Memory) Upsert(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stored := clone(p)
	stored.UpdatedAt = now

	if existing, ok := m.byURL[p.URL]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = primitive.NewObjectID()
		stored.CreatedAt = now
	}
	if stored.PriceHistory == nil {
		stored.PriceHistory = []models.PricePoint{}
	}

	m.byURL[p.URL] = stored
	return clone(stored), nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byURL)
}

func clone(p *models.Product) *models.Product {
	c := *p
	c.PriceHistory = append([]models.PricePoint(nil), p.PriceHistory...)
	return &c
}
