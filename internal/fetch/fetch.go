package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

var (
	ErrMissingCredential   = errors.New("missing upstream credential")
	ErrBlockedByUpstream   = errors.New("upstream detected bot activity")
	ErrUpstreamAuth        = errors.New("upstream rejected credentials")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrNetwork             = errors.New("network error")
	ErrScrapeFailed        = errors.New("failed to fetch product page")
)

// Page is a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, target string) (*Page, error)
}

// Classify maps a transport failure to one of the package sentinels. status is
// the upstream HTTP status, or 0 when no response was received.
func Classify(status int, err error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUpstreamAuth, status)
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, status)
	}

	if isNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if status != 0 {
		return fmt.Errorf("%w: status %d: %v", ErrScrapeFailed, status, err)
	}
	return fmt.Errorf("%w: %v", ErrScrapeFailed, err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
