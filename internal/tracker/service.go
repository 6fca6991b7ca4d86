// Package tracker wires scraping, shopping search and persistence into the
// operations exposed to the UI.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/maltedev/price-tracker/internal/xref"
)

// ErrRateLimited is returned by entry points that cannot degrade to a
// fallback when the client is over its search budget.
var ErrRateLimited = errors.New("rate limit exceeded")

type ProductScraper interface {
	ScrapeProduct(ctx context.Context, rawURL string) (*models.Product, error)
}

type ShoppingSearcher interface {
	Shopping(ctx context.Context, query string) ([]models.ShoppingResult, error)
}

type Limiter interface {
	Limit(ctx context.Context, key string) (ratelimit.Decision, error)
}

type Resolver interface {
	Resolve(ctx context.Context, clientKey, title string) xref.Resolution
}

type ShoppingStatus int

const (
	ShoppingOK ShoppingStatus = iota
	ShoppingRateLimited
	ShoppingFailed
)

func (s ShoppingStatus) String() string {
	switch s {
	case ShoppingOK:
		return "ok"
	case ShoppingRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// ShoppingOutcome is the result of a shopping search. Results is set only
// for ShoppingOK and Err only for ShoppingFailed.
type ShoppingOutcome struct {
	Status   ShoppingStatus
	Results  []models.ShoppingResult
	Decision ratelimit.Decision
	Err      error
}

type Service struct {
	scraper  ProductScraper
	shopping ShoppingSearcher
	limiter  Limiter
	resolver Resolver
	gateway  *Gateway
	store    store.ProductStore
	logger   *slog.Logger
	now      func() time.Time
}

type Deps struct {
	Scraper  ProductScraper
	Shopping ShoppingSearcher
	Limiter  Limiter
	Resolver Resolver
	Gateway  *Gateway
	Store    store.ProductStore
}

func NewService(deps Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		scraper:  deps.Scraper,
		shopping: deps.Shopping,
		limiter:  deps.Limiter,
		resolver: deps.Resolver,
		gateway:  deps.Gateway,
		store:    deps.Store,
		logger:   logger.With("component", "tracker"),
		now:      time.Now,
	}
}

// ScrapeAmazonProduct returns the scraped product without saving it.
func (s *Service) ScrapeAmazonProduct(ctx context.Context, rawURL string) (*models.Product, error) {
	return s.scraper.ScrapeProduct(ctx, rawURL)
}

// TrackURL scrapes rawURL and saves the result.
func (s *Service) TrackURL(ctx context.Context, rawURL string) (string, error) {
	product, err := s.scraper.ScrapeProduct(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return s.gateway.Save(ctx, product)
}

// ShoppingResults consults the limiter for clientKey before searching.
func (s *Service) ShoppingResults(ctx context.Context, clientKey, query string) ShoppingOutcome {
	decision, err := s.limiter.Limit(ctx, clientKey)
	if err != nil {
		return ShoppingOutcome{Status: ShoppingFailed, Err: err}
	}
	if !decision.Allowed {
		s.logger.Info("shopping search rate limited",
			"client", clientKey,
			"reset_at", decision.ResetAt)
		return ShoppingOutcome{Status: ShoppingRateLimited, Decision: decision}
	}

	results, err := s.shopping.Shopping(ctx, query)
	if err != nil {
		s.logger.Error("shopping search failed", "query", query, "error", err)
		return ShoppingOutcome{Status: ShoppingFailed, Decision: decision, Err: err}
	}

	s.logger.Info("shopping search", "query", query, "results", len(results))
	return ShoppingOutcome{Status: ShoppingOK, Results: results, Decision: decision}
}

// SaveShoppingResult resolves the item's cross-reference path, falling back
// to a timestamp segment, and saves the projected product.
func (s *Service) SaveShoppingResult(ctx context.Context, clientKey string, item models.ShoppingResult) (string, error) {
	if item.ProductLink == "" {
		return "", fmt.Errorf("%w: product_link is required", ErrInvalidProduct)
	}

	res := s.resolver.Resolve(ctx, clientKey, item.Title)
	if !res.OK() {
		s.logger.Info("using fallback path",
			"title", item.Title,
			"status", res.Status.String())
	}

	getURL := res.Segment(xref.FallbackSegment(s.now()))
	return s.gateway.Save(ctx, models.FromShoppingResult(item, getURL))
}

func (s *Service) Product(ctx context.Context, id string) (*models.Product, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) ProductByPath(ctx context.Context, getURL string) (*models.Product, error) {
	return s.store.FindByPath(ctx, getURL)
}

func (s *Service) Latest(ctx context.Context, limit int) ([]*models.Product, error) {
	return s.store.List(ctx, limit)
}
