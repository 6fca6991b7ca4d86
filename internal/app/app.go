// Package app assembles the tracker from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/api"
	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/events"
	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/scraper"
	"github.com/maltedev/price-tracker/internal/serp"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/maltedev/price-tracker/internal/store/mongostore"
	"github.com/maltedev/price-tracker/internal/tracker"
	"github.com/maltedev/price-tracker/internal/xref"
	"github.com/redis/go-redis/v9"
)

// Infra holds the stateful collaborators the tracker runs on.
type Infra struct {
	Store     store.ProductStore
	Counter   ratelimit.Counter
	Publisher events.Publisher
}

// App owns every long-lived connection of the server process.
type App struct {
	Tracker *tracker.Service
	Health  *api.Health
	Relay   *database.Relay

	closers []func()
	logger  *slog.Logger
}

// Connect opens Mongo, Redis and, in outbox mode, Postgres, then builds the
// tracker on top of them.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	mongoCfg := mongostore.DefaultConfig(cfg.Mongo.URI)
	mongoCfg.Database = cfg.Mongo.Database
	products, err := mongostore.Connect(ctx, mongoCfg, logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		products.Close(closeCtx)
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.onClose(func() { redisClient.Close() })

	if err := redisClient.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.Health = &api.Health{Store: products, Redis: redisPinger{redisClient}}

	var publisher events.Publisher
	switch cfg.Tracker.InvalidationMode {
	case config.InvalidationOutbox:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to outbox database: %w", err)
		}
		a.onClose(db.Close)

		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}

		publisher = events.NewOutboxPublisher(db, logger)
		a.Relay = database.NewRelay(database.NewOutboxRepository(db), redisClient, logger, database.RelayConfig{})
		a.Health.Outbox = a.Relay
	case config.InvalidationStream:
		publisher = events.NewStreamPublisher(redisClient, logger)
	default:
		publisher = events.Discard{}
	}

	svc, closeTracker, err := NewTracker(cfg, Infra{
		Store:     products,
		Counter:   ratelimit.NewRedisCounter(redisClient),
		Publisher: publisher,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(closeTracker)
	a.Tracker = svc

	return a, nil
}

// NewTracker builds the scrape, search and save pipeline over infra. The
// returned func releases the fetch backend.
func NewTracker(cfg *config.Config, infra Infra, logger *slog.Logger) (*tracker.Service, func(), error) {
	fetcher, closeFetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	policy, err := tracker.ParseStatsPolicy(cfg.Tracker.StatsPolicy)
	if err != nil {
		closeFetcher()
		return nil, nil, err
	}

	limiter := ratelimit.NewFixedWindow(infra.Counter, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	search := serp.NewClient(cfg.Search.APIKey, cfg.Search.URL, logger)
	resolver := xref.NewResolver(limiter, search, logger)
	jitter := ratelimit.NewJitter(cfg.Fetch.DelayMin, cfg.Fetch.DelayMax)

	svc := tracker.NewService(tracker.Deps{
		Scraper:  scraper.New(fetcher, jitter, nil, resolver, logger),
		Shopping: search,
		Limiter:  limiter,
		Resolver: resolver,
		Gateway:  tracker.NewGateway(infra.Store, infra.Publisher, policy, logger),
		Store:    infra.Store,
	}, logger)

	return svc, closeFetcher, nil
}

func newFetcher(cfg *config.Config, logger *slog.Logger) (fetch.Fetcher, func(), error) {
	if cfg.Fetch.Backend == config.BackendBrowser {
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Fetch.Timeout

		b, err := browser.New(opts, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		return b, func() { b.Close() }, nil
	}

	opts := fetch.DefaultProxyOptions()
	opts.APIKey = cfg.Fetch.ScraperAPIKey
	opts.BaseURL = cfg.Fetch.ScraperAPIURL
	opts.CountryCode = cfg.Fetch.CountryCode
	opts.Timeout = cfg.Fetch.Timeout
	return fetch.NewProxyFetcher(opts, logger), func() {}, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
