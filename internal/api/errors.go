package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/scraper"
	"github.com/maltedev/price-tracker/internal/serp"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/maltedev/price-tracker/internal/tracker"
)

// ProblemDetails follows RFC 7807.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	pd := &ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}

	json.NewEncoder(w).Encode(pd)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, detail, instance)
}

var statusTable = []struct {
	err    error
	status int
}{
	{fetch.ErrMissingCredential, http.StatusInternalServerError},
	{fetch.ErrBlockedByUpstream, http.StatusBadGateway},
	{fetch.ErrUpstreamAuth, http.StatusBadGateway},
	{fetch.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
	{fetch.ErrNetwork, http.StatusGatewayTimeout},
	{fetch.ErrScrapeFailed, http.StatusBadGateway},
	{serp.ErrSearchFailed, http.StatusBadGateway},
	{scraper.ErrInvalidURL, http.StatusBadRequest},
	{tracker.ErrInvalidProduct, http.StatusBadRequest},
	{store.ErrInvalidID, http.StatusBadRequest},
	{store.ErrNotFound, http.StatusNotFound},
	{tracker.ErrRateLimited, http.StatusTooManyRequests},
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

func WriteDomainError(w http.ResponseWriter, err error, instance string) {
	WriteError(w, StatusFor(err), err.Error(), instance)
}
