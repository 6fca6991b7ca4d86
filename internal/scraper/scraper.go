package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/parser"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/urlnorm"
	"github.com/maltedev/price-tracker/internal/xref"
)

// MinPageSize is the smallest body accepted as a real product page.
const MinPageSize = 10000

var ErrInvalidURL = errors.New("invalid product URL")

var blockSignatures = [][]byte{
	[]byte("Robot Check"),
	[]byte("To discuss automated access"),
	[]byte("Enter the characters you see below"),
	[]byte("Sorry, we just need to make sure you're not a robot"),
}

type Resolver interface {
	Resolve(ctx context.Context, clientKey, title string) xref.Resolution
}

type Scraper struct {
	fetcher  fetch.Fetcher
	delayer  ratelimit.Delayer
	parser   parser.Parser
	resolver Resolver
	logger   *slog.Logger
}

func New(fetcher fetch.Fetcher, delayer ratelimit.Delayer, p parser.Parser, resolver Resolver, logger *slog.Logger) *Scraper {
	if p == nil {
		p = parser.NewAmazonParser()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scraper{
		fetcher:  fetcher,
		delayer:  delayer,
		parser:   p,
		resolver: resolver,
		logger:   logger.With("component", "scraper"),
	}
}

// ScrapeProduct fetches and parses one product page. The returned Product is
// not persisted. The rate-limit key for the cross-reference lookup is taken
// from ctx (see ratelimit.WithClientKey).
func (s *Scraper) ScrapeProduct(ctx context.Context, rawURL string) (*models.Product, error) {
	cleanURL, err := urlnorm.Normalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	log := s.logger
	if asin, err := urlnorm.ASIN(cleanURL); err == nil {
		log = log.With("asin", asin)
	}

	log.Info("scraping product", "url", rawURL, "clean_url", cleanURL)

	if s.delayer != nil {
		if err := s.delayer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	page, err := s.fetcher.Fetch(ctx, cleanURL)
	if err != nil {
		return nil, err
	}

	if err := DetectBlock(page.Body); err != nil {
		log.Warn("bot detection triggered", "url", cleanURL, "bytes", len(page.Body), "preview", preview(page.Body, 300))
		return nil, err
	}

	fields, err := s.parser.ParseProductPage(string(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrScrapeFailed, err)
	}

	log.Debug("extracted fields",
		"title", fields.Title != "",
		"current_price", fields.CurrentPrice,
		"current_price_source", fields.CurrentPriceSource,
		"original_price", fields.OriginalPrice,
		"original_price_source", fields.OriginalPriceSource,
		"images", len(fields.Images),
	)

	title := fields.Title
	if title == "" {
		title = "Product"
	}

	var getURL string
	if s.resolver != nil {
		res := s.resolver.Resolve(ctx, ratelimit.ClientKeyFromContext(ctx), title)
		if !res.OK() {
			log.Info("cross-reference not resolved", "status", res.Status, "error", res.Err)
		}
		getURL = res.Segment("")
	}

	product := Assemble(rawURL, getURL, fields)

	log.Info("scraped product", "url", rawURL, "title", product.Title,
		"price", product.CurrentPrice, "has_price", product.HasPrice(), "duration", time.Since(start))

	return product, nil
}

// DetectBlock reports ErrBlockedByUpstream when body is a bot challenge or
// too short to be a product page.
func DetectBlock(body []byte) error {
	for _, sig := range blockSignatures {
		if bytes.Contains(body, sig) {
			return fmt.Errorf("%w: matched %q", fetch.ErrBlockedByUpstream, sig)
		}
	}
	if len(body) < MinPageSize {
		return fmt.Errorf("%w: body too short (%d bytes)", fetch.ErrBlockedByUpstream, len(body))
	}
	return nil
}

// Assemble builds the Product candidate from extracted fields.
func Assemble(url, getURL string, fields *parser.Fields) *models.Product {
	p := models.NewProduct(url)
	p.GetURL = getURL
	p.Title = fields.Title
	p.IsOutOfStock = fields.OutOfStock
	p.DiscountRate = fields.DiscountRate
	p.Category = fields.Category
	p.ReviewsCount = fields.ReviewsCount
	p.Stars = fields.Stars
	p.Description = fields.Description

	if fields.Currency.Symbol != "" {
		p.Currency = fields.Currency.Symbol
	}
	if p.Category == "" {
		p.Category = models.DefaultCategory
	}
	if len(fields.Images) > 0 {
		p.Image = fields.Images[0]
	}

	p.SetPrices(fields.CurrentPrice, fields.OriginalPrice)
	return p
}

func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
