package xref

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/serp"
)

const (
	Site          = "pricehistoryapp.com"
	maxQueryWords = 7
)

type Status int

const (
	StatusOK Status = iota
	StatusRateLimited
	StatusNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRateLimited:
		return "rate_limited"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolution is the tagged outcome of Resolve. Link is set only for StatusOK,
// Err only for StatusFailed.
type Resolution struct {
	Status Status
	Link   string
	Err    error
}

func (r Resolution) OK() bool {
	return r.Status == StatusOK
}

// Segment returns the path segment of the resolved link, or the fallback when
// resolution did not succeed.
func (r Resolution) Segment(fallback string) string {
	if r.Status != StatusOK {
		return fallback
	}
	return PathSegment(r.Link)
}

type Limiter interface {
	Limit(ctx context.Context, key string) (ratelimit.Decision, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) (*serp.SearchResponse, error)
}

type Resolver struct {
	limiter  Limiter
	searcher Searcher
	logger   *slog.Logger
}

func NewResolver(limiter Limiter, searcher Searcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		limiter:  limiter,
		searcher: searcher,
		logger:   logger.With("component", "xref"),
	}
}

// Resolve looks up the cross-reference link for title. The rate limiter is
// consulted before any external call.
func (r *Resolver) Resolve(ctx context.Context, clientKey, title string) Resolution {
	decision, err := r.limiter.Limit(ctx, clientKey)
	if err != nil {
		r.logger.Error("rate limiter failed", "key", clientKey, "error", err)
		return Resolution{Status: StatusFailed, Err: err}
	}
	if !decision.Allowed {
		r.logger.Warn("rate limit exceeded for cross-reference lookup", "key", clientKey, "reset_at", decision.ResetAt)
		return Resolution{Status: StatusRateLimited}
	}

	query := SearchQuery(title)
	resp, err := r.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Error("cross-reference search failed", "query", query, "error", err)
		return Resolution{Status: StatusFailed, Err: fmt.Errorf("cross-reference search: %w", err)}
	}

	if resp != nil && len(resp.OrganicResults) > 0 && resp.OrganicResults[0].Link != "" {
		link := resp.OrganicResults[0].Link
		r.logger.Debug("cross-reference resolved", "query", query, "link", link)
		return Resolution{Status: StatusOK, Link: link}
	}

	r.logger.Warn("no organic results", "query", query)
	return Resolution{Status: StatusNotFound}
}

var (
	separatorPattern  = regexp.MustCompile(`[,|]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SearchQuery reduces title to its first seven space-separated words, drops
// commas and pipes, hyphenates the rest and restricts the query to Site.
func SearchQuery(title string) string {
	words := strings.Split(title, " ")
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}

	query := strings.Join(words, " ")
	query = separatorPattern.ReplaceAllString(query, "")
	query = whitespacePattern.ReplaceAllString(query, "-")

	return query + " site:" + Site
}

// PathSegment returns everything after the fourth "/" of link, or "" when the
// link has no such segment.
func PathSegment(link string) string {
	parts := strings.Split(link, "/")
	if len(parts) <= 4 {
		return ""
	}
	return strings.Join(parts[4:], "/")
}

// FallbackSegment is the synthetic path used when resolution did not succeed.
func FallbackSegment(now time.Time) string {
	return fmt.Sprintf("products/%d", now.UnixMilli())
}
