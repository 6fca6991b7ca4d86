package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/tracker"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Tracker interface {
	ScrapeAmazonProduct(ctx context.Context, rawURL string) (*models.Product, error)
	TrackURL(ctx context.Context, rawURL string) (string, error)
	ShoppingResults(ctx context.Context, clientKey, query string) tracker.ShoppingOutcome
	SaveShoppingResult(ctx context.Context, clientKey string, item models.ShoppingResult) (string, error)
	Product(ctx context.Context, id string) (*models.Product, error)
	ProductByPath(ctx context.Context, getURL string) (*models.Product, error)
	Latest(ctx context.Context, limit int) ([]*models.Product, error)
}

type Handlers struct {
	tracker Tracker
	logger  *slog.Logger
}

func NewHandlers(t Tracker, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		tracker: t,
		logger:  logger.With("component", "api"),
	}
}

type URLRequest struct {
	URL string `json:"url"`
}

type SavedResponse struct {
	ID       string `json:"id"`
	Redirect string `json:"redirect"`
}

func savedResponse(id string) SavedResponse {
	return SavedResponse{ID: id, Redirect: "/products/" + id}
}

// Scrape returns the product at the requested url without saving it.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	product, err := h.tracker.ScrapeAmazonProduct(r.Context(), req.URL)
	if err != nil {
		h.fail(w, r, "scrape failed", err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// Track scrapes and saves the product at the requested url.
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	id, err := h.tracker.TrackURL(r.Context(), req.URL)
	if err != nil {
		h.fail(w, r, "track failed", err)
		return
	}

	h.respondJSON(w, http.StatusOK, savedResponse(id))
}

func (h *Handlers) Shopping(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		WriteBadRequest(w, "q is required", r.URL.Path)
		return
	}

	out := h.tracker.ShoppingResults(r.Context(), ratelimit.ClientKeyFromContext(r.Context()), q)
	setRateLimitHeaders(w, out.Decision)

	switch out.Status {
	case tracker.ShoppingRateLimited:
		WriteDomainError(w, tracker.ErrRateLimited, r.URL.Path)
	case tracker.ShoppingFailed:
		h.fail(w, r, "shopping search failed", out.Err)
	default:
		h.respondJSON(w, http.StatusOK, out.Results)
	}
}

func (h *Handlers) SaveShopping(w http.ResponseWriter, r *http.Request) {
	var item models.ShoppingResult
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		WriteBadRequest(w, "invalid request body", r.URL.Path)
		return
	}

	id, err := h.tracker.SaveShoppingResult(r.Context(), ratelimit.ClientKeyFromContext(r.Context()), item)
	if err != nil {
		h.fail(w, r, "save failed", err)
		return
	}

	h.respondJSON(w, http.StatusOK, savedResponse(id))
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteBadRequest(w, "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = min(n, maxListLimit)
	}

	products, err := h.tracker.Latest(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list failed", err)
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.tracker.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "lookup failed", err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// RedirectPath sends /p/<geturl> to the product page of the matching document.
func (h *Handlers) RedirectPath(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")
	if path == "" {
		WriteBadRequest(w, "path is required", r.URL.Path)
		return
	}

	product, err := h.tracker.ProductByPath(r.Context(), path)
	if err != nil {
		h.fail(w, r, "lookup failed", err)
		return
	}

	http.Redirect(w, r, "/products/"+product.ID.Hex(), http.StatusFound)
}

func (h *Handlers) decodeURL(w http.ResponseWriter, r *http.Request) (URLRequest, bool) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body", r.URL.Path)
		return req, false
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		WriteBadRequest(w, "url is required", r.URL.Path)
		return req, false
	}
	return req, true
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Info(msg, "path", r.URL.Path, "status", status, "error", err)
	}
	WriteError(w, status, err.Error(), r.URL.Path)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		retry := int(time.Until(d.ResetAt).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
	}
}
