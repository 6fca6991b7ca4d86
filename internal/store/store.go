// Package store defines the product document store used by the tracker.
package store

import (
	"context"
	"errors"

	"github.com/maltedev/price-tracker/internal/models"
)

var (
	ErrNotFound  = errors.New("product not found")
	ErrInvalidID = errors.New("invalid product id")
)

// ProductStore persists Product documents keyed by url.
type ProductStore interface {
	FindByURL(ctx context.Context, url string) (*models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByPath(ctx context.Context, getURL string) (*models.Product, error)
	List(ctx context.Context, limit int) ([]*models.Product, error)
	// Upsert writes p keyed by p.URL in one atomic operation and returns the
	// stored document.
	Upsert(ctx context.Context, p *models.Product) (*models.Product, error)
	Ping(ctx context.Context) error
}
