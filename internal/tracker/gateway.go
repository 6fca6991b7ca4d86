package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/price-tracker/internal/events"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/store"
)

var ErrInvalidProduct = errors.New("invalid product")

// StatsPolicy selects how lowest/highest/average are recomputed when an
// existing product is saved again.
type StatsPolicy int

const (
	// StatsFromHistory computes min, max and mean over the full price history.
	StatsFromHistory StatsPolicy = iota
	// StatsLatestOnly sets all three to the newly observed price.
	StatsLatestOnly
)

func (p StatsPolicy) String() string {
	if p == StatsLatestOnly {
		return "latest"
	}
	return "history"
}

func ParseStatsPolicy(s string) (StatsPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "history":
		return StatsFromHistory, nil
	case "latest":
		return StatsLatestOnly, nil
	default:
		return StatsFromHistory, fmt.Errorf("unknown stats policy %q", s)
	}
}

// Gateway upserts products keyed by url and announces the change.
type Gateway struct {
	store     store.ProductStore
	publisher events.Publisher
	policy    StatsPolicy
	logger    *slog.Logger
	now       func() time.Time
}

func NewGateway(s store.ProductStore, publisher events.Publisher, policy StatsPolicy, logger *slog.Logger) *Gateway {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		store:     s,
		publisher: publisher,
		policy:    policy,
		logger:    logger.With("component", "gateway"),
		now:       time.Now,
	}
}

// Save stores candidate and returns the document id.
//
// A new url is inserted as-is. For a known url the candidate's price is
// appended to the stored history and the price statistics are recomputed.
// The read and the upsert are separate operations, so two concurrent saves of
// the same url can drop one history entry.
func (g *Gateway) Save(ctx context.Context, candidate *models.Product) (string, error) {
	if candidate == nil || candidate.URL == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidProduct)
	}

	doc := *candidate

	existing, err := g.store.FindByURL(ctx, candidate.URL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if doc.PriceHistory == nil {
			doc.PriceHistory = make([]models.PricePoint, 0)
		}
	case err != nil:
		return "", fmt.Errorf("failed to look up product: %w", err)
	default:
		doc.PriceHistory = appendPrice(existing.PriceHistory, candidate.CurrentPrice, g.now().UTC())
		g.applyStats(&doc)
	}

	saved, err := g.store.Upsert(ctx, &doc)
	if err != nil {
		return "", fmt.Errorf("failed to save product: %w", err)
	}

	id := saved.ID.Hex()
	g.logger.Info("product saved",
		"id", id,
		"url", saved.URL,
		"history_len", len(saved.PriceHistory),
		"existing", existing != nil)

	if err := g.publisher.PublishInvalidation(ctx, events.ProductInvalidation(id, saved.URL)); err != nil {
		g.logger.Warn("failed to publish invalidation", "id", id, "error", err)
	}

	return id, nil
}

func (g *Gateway) applyStats(p *models.Product) {
	latest := p.CurrentPrice

	if g.policy == StatsLatestOnly {
		p.LowestPrice, p.HighestPrice, p.AveragePrice = latest, latest, latest
		return
	}

	low, high, avg, ok := historyStats(p.PriceHistory)
	if !ok {
		p.LowestPrice, p.HighestPrice, p.AveragePrice = latest, latest, latest
		return
	}
	p.LowestPrice, p.HighestPrice, p.AveragePrice = low, high, avg
}

// appendPrice copies history and adds price. Unknown (zero) prices are not
// recorded.
func appendPrice(history []models.PricePoint, price float64, at time.Time) []models.PricePoint {
	out := make([]models.PricePoint, len(history), len(history)+1)
	copy(out, history)
	if price > 0 {
		out = append(out, models.PricePoint{Price: price, Date: at})
	}
	return out
}

func historyStats(history []models.PricePoint) (low, high, avg float64, ok bool) {
	var sum float64
	var n int
	for _, point := range history {
		if point.Price <= 0 {
			continue
		}
		if n == 0 || point.Price < low {
			low = point.Price
		}
		if point.Price > high {
			high = point.Price
		}
		sum += point.Price
		n++
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	return low, high, sum / float64(n), true
}
