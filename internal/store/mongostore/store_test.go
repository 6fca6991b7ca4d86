package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	cfg := DefaultConfig(uri)
	cfg.Database = fmt.Sprintf("pricetracker_test_%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s, err := Connect(ctx, cfg, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		s.collection.Database().Drop(ctx)
		s.Close(ctx)
	})
	return s
}

func TestConnectMissingURI(t *testing.T) {
	_, err := Connect(context.Background(), DefaultConfig(""), nil)
	assert.ErrorIs(t, err, ErrMissingURI)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("mongodb://localhost:27017")

	assert.Equal(t, "pricetracker", cfg.Database)
	assert.Equal(t, "products", cfg.Collection)
	assert.Equal(t, uint64(2), cfg.MinPoolSize)
	assert.Equal(t, uint64(10), cfg.MaxPoolSize)
	assert.Equal(t, 10*time.Second, cfg.ServerSelectionTimeout)
	assert.Equal(t, 45*time.Second, cfg.SocketTimeout)
}

func TestUpsertKeepsOneDocumentPerURL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := models.NewProduct("https://www.amazon.in/dp/B0UPSERT01")
	first.Title = "First title"
	first.GetURL = "first"
	first.SetPrices(100, 120)

	saved, err := s.Upsert(ctx, first)
	require.NoError(t, err)
	require.False(t, saved.ID.IsZero())
	assert.Empty(t, saved.PriceHistory)

	second := models.NewProduct(first.URL)
	second.Title = "Second title"
	second.GetURL = "second"
	second.SetPrices(90, 120)
	second.PriceHistory = []models.PricePoint{{Price: 90, Date: time.Now().UTC()}}

	updated, err := s.Upsert(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "Second title", updated.Title)
	assert.Equal(t, 90.0, updated.CurrentPrice)
	assert.Len(t, updated.PriceHistory, 1)
	assert.Equal(t, saved.CreatedAt.Unix(), updated.CreatedAt.Unix())

	products, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	byID, err := s.FindByID(ctx, saved.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, first.URL, byID.URL)

	byPath, err := s.FindByPath(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byPath.ID)
}

func TestFindMissing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.FindByURL(ctx, "https://www.amazon.in/dp/B0MISSING0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrInvalidID)
}
