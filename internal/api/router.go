package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/ratelimit"
)

const (
	outboxPendingWarning   = 1000
	outboxDeadLetterFailed = 100
)

// Pinger is satisfied by the product store and by a Redis ping adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

type OutboxStats interface {
	Stats(ctx context.Context) (database.RelayStats, error)
}

// Health reports dependency status. Nil fields are skipped.
type Health struct {
	Store  Pinger
	Redis  Pinger
	Outbox OutboxStats
}

func (hc *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	health := map[string]any{"status": "ok"}
	checks := map[string]string{}

	ping := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			health["status"] = "error"
			status = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	ping("store", hc.Store)
	ping("redis", hc.Redis)
	health["checks"] = checks

	if hc.Outbox != nil {
		stats, err := hc.Outbox.Stats(ctx)
		switch {
		case err != nil:
			checks["outbox"] = err.Error()
		case stats.DeadLetter > outboxDeadLetterFailed:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case stats.Pending > outboxPendingWarning && status == http.StatusOK:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if err == nil {
			health["outbox"] = stats
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(health)
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, health *Health, cfg RouterConfig) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:*", "https://localhost:*"}
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 90 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(ratelimit.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Forwarded-For"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if health != nil {
		r.Method(http.MethodGet, "/health", health)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", h.Scrape)
		r.Post("/track", h.Track)

		r.Get("/shopping", h.Shopping)
		r.Post("/shopping/save", h.SaveShopping)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
	})

	r.Get("/p/*", h.RedirectPath)

	return r
}
