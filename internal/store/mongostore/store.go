package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultDatabase   = "pricetracker"
	DefaultCollection = "products"
)

var ErrMissingURI = errors.New("MONGODB_URI is not defined")

type Config struct {
	URI                    string
	Database               string
	Collection             string
	MinPoolSize            uint64
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration
}

func DefaultConfig(uri string) Config {
	return Config{
		URI:                    uri,
		Database:               DefaultDatabase,
		Collection:             DefaultCollection,
		MinPoolSize:            2,
		MaxPoolSize:            10,
		ServerSelectionTimeout: 10 * time.Second,
		SocketTimeout:          45 * time.Second,
	}
}

// Store is the Mongo-backed ProductStore. It owns one client and its pool for
// the lifetime of the process.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// Connect opens the pool, verifies it with a ping and ensures indexes.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With("component", "mongostore"),
	}

	if err := s.Ping(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("connected to MongoDB", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "geturl", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) FindByURL(ctx context.Context, url string) (*models.Product, error) {
	return s.findOne(ctx, bson.M{"url": url})
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *Store) FindByPath(ctx context.Context, getURL string) (*models.Product, error) {
	return s.findOne(ctx, bson.M{"geturl": getURL})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var product models.Product
	if err := s.collection.FindOne(ctx, filter).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]*models.Product, 0, limit)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// Upsert replaces every field of the document with the same url, creating it
// when absent. The read-modify-write done by callers is not guarded: two
// concurrent saves of one url can drop a history entry.
func (s *Store) Upsert(ctx context.Context, p *models.Product) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	history := p.PriceHistory
	if history == nil {
		history = []models.PricePoint{}
	}

	update := bson.M{
		"$set": bson.M{
			"url":           p.URL,
			"geturl":        p.GetURL,
			"currency":      p.Currency,
			"image":         p.Image,
			"title":         p.Title,
			"currentPrice":  p.CurrentPrice,
			"originalPrice": p.OriginalPrice,
			"priceHistory":  history,
			"discountRate":  p.DiscountRate,
			"category":      p.Category,
			"reviewsCount":  p.ReviewsCount,
			"stars":         p.Stars,
			"isOutOfStock":  p.IsOutOfStock,
			"description":   p.Description,
			"lowestPrice":   p.LowestPrice,
			"highestPrice":  p.HighestPrice,
			"averagePrice":  p.AveragePrice,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.Product
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"url": p.URL}, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}

	s.logger.Debug("upserted product", "id", stored.ID.Hex(), "url", stored.URL, "history", len(stored.PriceHistory))
	return &stored, nil
}

var _ store.ProductStore = (*Store)(nil)
