package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/maltedev/price-tracker/internal/xref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) ScrapeProduct(ctx context.Context, rawURL string) (*models.Product, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockShopping struct {
	mock.Mock
}

func (m *MockShopping) Shopping(ctx context.Context, query string) ([]models.ShoppingResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShoppingResult), args.Error(1)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Limit(ctx context.Context, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, clientKey, title string) xref.Resolution {
	return m.Called(ctx, clientKey, title).Get(0).(xref.Resolution)
}

type fixture struct {
	svc      *Service
	store    *store.Memory
	scraper  *MockScraper
	shopping *MockShopping
	limiter  *MockLimiter
	resolver *MockResolver
}

func newFixture() *fixture {
	f := &fixture{
		store:    store.NewMemory(),
		scraper:  new(MockScraper),
		shopping: new(MockShopping),
		limiter:  new(MockLimiter),
		resolver: new(MockResolver),
	}
	f.svc = NewService(Deps{
		Scraper:  f.scraper,
		Shopping: f.shopping,
		Limiter:  f.limiter,
		Resolver: f.resolver,
		Gateway:  NewGateway(f.store, nil, StatsFromHistory, nil),
		Store:    f.store,
	}, nil)
	f.svc.now = func() time.Time { return time.UnixMilli(1_700_000_000_123) }
	return f
}

func shoppingItem() models.ShoppingResult {
	return models.ShoppingResult{
		Position:       1,
		Title:          "Sony WH-1000XM4 Wireless Noise Canceling Headphones Black",
		ProductLink:    "https://www.google.com/shopping/product/123",
		ExtractedPrice: 19990,
		Rating:         4.6,
		Reviews:        1200,
		Thumbnail:      "https://img.example.com/1.jpg",
	}
}

func TestShoppingResults(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		f := newFixture()
		f.limiter.On("Limit", ctx, "1.2.3.4").Return(ratelimit.Decision{Allowed: true, Limit: 4, Remaining: 3}, nil)
		f.shopping.On("Shopping", ctx, "headphones").Return([]models.ShoppingResult{shoppingItem()}, nil)

		out := f.svc.ShoppingResults(ctx, "1.2.3.4", "headphones")
		assert.Equal(t, ShoppingOK, out.Status)
		assert.Len(t, out.Results, 1)
		assert.Equal(t, 3, out.Decision.Remaining)
	})

	t.Run("rate limited skips search", func(t *testing.T) {
		f := newFixture()
		f.limiter.On("Limit", ctx, "1.2.3.4").Return(ratelimit.Decision{Allowed: false, Limit: 4}, nil)

		out := f.svc.ShoppingResults(ctx, "1.2.3.4", "headphones")
		assert.Equal(t, ShoppingRateLimited, out.Status)
		assert.Nil(t, out.Results)
		f.shopping.AssertNotCalled(t, "Shopping", mock.Anything, mock.Anything)
	})

	t.Run("search failure", func(t *testing.T) {
		f := newFixture()
		f.limiter.On("Limit", ctx, "k").Return(ratelimit.Decision{Allowed: true}, nil)
		f.shopping.On("Shopping", ctx, "q").Return(nil, fetch.ErrUpstreamAuth)

		out := f.svc.ShoppingResults(ctx, "k", "q")
		assert.Equal(t, ShoppingFailed, out.Status)
		assert.ErrorIs(t, out.Err, fetch.ErrUpstreamAuth)
		assert.Equal(t, "failed", out.Status.String())
	})

	t.Run("limiter failure", func(t *testing.T) {
		f := newFixture()
		f.limiter.On("Limit", ctx, "k").Return(ratelimit.Decision{}, errors.New("redis down"))

		out := f.svc.ShoppingResults(ctx, "k", "q")
		assert.Equal(t, ShoppingFailed, out.Status)
		assert.Error(t, out.Err)
	})
}

func TestSaveShoppingResult(t *testing.T) {
	ctx := context.Background()

	t.Run("resolved path", func(t *testing.T) {
		f := newFixture()
		item := shoppingItem()
		f.resolver.On("Resolve", ctx, "k", item.Title).Return(xref.Resolution{
			Status: xref.StatusOK,
			Link:   "https://pricehistoryapp.com/product/sony-wh-1000xm4",
		})

		id, err := f.svc.SaveShoppingResult(ctx, "k", item)
		require.NoError(t, err)

		stored, err := f.svc.Product(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "sony-wh-1000xm4", stored.GetURL)
		assert.Equal(t, "₹", stored.Currency)
		assert.Equal(t, "Tech", stored.Category)
		assert.Equal(t, 19990.0, stored.CurrentPrice)
		assert.Equal(t, 18990.0, stored.LowestPrice)

		byPath, err := f.svc.ProductByPath(ctx, "sony-wh-1000xm4")
		require.NoError(t, err)
		assert.Equal(t, id, byPath.ID.Hex())
	})

	t.Run("no result falls back to timestamp segment", func(t *testing.T) {
		f := newFixture()
		item := shoppingItem()
		f.resolver.On("Resolve", ctx, "k", item.Title).Return(xref.Resolution{Status: xref.StatusNotFound})

		id, err := f.svc.SaveShoppingResult(ctx, "k", item)
		require.NoError(t, err)

		stored, err := f.svc.Product(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "products/1700000000123", stored.GetURL)
	})

	t.Run("second save appends history", func(t *testing.T) {
		f := newFixture()
		item := shoppingItem()
		f.resolver.On("Resolve", ctx, "k", item.Title).Return(xref.Resolution{Status: xref.StatusRateLimited})

		_, err := f.svc.SaveShoppingResult(ctx, "k", item)
		require.NoError(t, err)

		item.ExtractedPrice = 17990
		id, err := f.svc.SaveShoppingResult(ctx, "k", item)
		require.NoError(t, err)

		stored, err := f.svc.Product(ctx, id)
		require.NoError(t, err)
		require.Len(t, stored.PriceHistory, 1)
		assert.Equal(t, 17990.0, stored.PriceHistory[0].Price)
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("missing product link", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.SaveShoppingResult(ctx, "k", models.ShoppingResult{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidProduct)
		f.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTrackURL(t *testing.T) {
	ctx := context.Background()
	url := "https://www.amazon.in/Widget/dp/B0TRACK001/ref=sr_1_1"

	t.Run("scrape and save", func(t *testing.T) {
		f := newFixture()
		p := candidate(url, 499)
		f.scraper.On("ScrapeProduct", ctx, url).Return(p, nil)

		id, err := f.svc.TrackURL(ctx, url)
		require.NoError(t, err)

		latest, err := f.svc.Latest(ctx, 10)
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, id, latest[0].ID.Hex())
		assert.True(t, strings.HasSuffix(latest[0].URL, "ref=sr_1_1"))
	})

	t.Run("scrape failure is not saved", func(t *testing.T) {
		f := newFixture()
		f.scraper.On("ScrapeProduct", ctx, url).Return(nil, fetch.ErrBlockedByUpstream)

		_, err := f.svc.TrackURL(ctx, url)
		assert.ErrorIs(t, err, fetch.ErrBlockedByUpstream)
		assert.Equal(t, 0, f.store.Len())
	})
}

func TestScrapeAmazonProductDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.scraper.On("ScrapeProduct", ctx, "https://www.amazon.in/dp/B0SCRAPE01").
		Return(candidate("https://www.amazon.in/dp/B0SCRAPE01", 5), nil)

	p, err := f.svc.ScrapeAmazonProduct(ctx, "https://www.amazon.in/dp/B0SCRAPE01")
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.CurrentPrice)
	assert.Equal(t, 0, f.store.Len())
}
