package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
)

const (
	DefaultBaseURL = "https://serpapi.com/search.json"
	DefaultTimeout = 30 * time.Second

	shoppingLocation = "India"
	shoppingLanguage = "en"
	shoppingCountry  = "in"
	shoppingNum      = 30
)

var ErrSearchFailed = errors.New("search request failed")

type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
}

type SearchResponse struct {
	OrganicResults []OrganicResult `json:"organic_results"`
}

type shoppingResponse struct {
	ShoppingResults []models.ShoppingResult `json:"shopping_results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger.With("component", "serp"),
	}
}

// Shopping runs a shopping search localized to India.
func (c *Client) Shopping(ctx context.Context, query string) ([]models.ShoppingResult, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("location", shoppingLocation)
	params.Set("hl", shoppingLanguage)
	params.Set("gl", shoppingCountry)
	params.Set("num", strconv.Itoa(shoppingNum))

	var resp shoppingResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	if resp.ShoppingResults == nil {
		return []models.ShoppingResult{}, nil
	}
	return resp.ShoppingResults, nil
}

// Search runs a general web search and returns its organic results.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)

	var resp SearchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: set SERPAPI_API_KEY or API_KEY", fetch.ErrMissingCredential)
	}

	engine := params.Get("engine")
	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("search request failed", "engine", engine, "error", err)
		return fetch.Classify(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrSearchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		c.logger.Warn("search returned non-OK status", "engine", engine, "status", resp.StatusCode, "error", apiErr.Error)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", fetch.ErrUpstreamAuth, apiErr.Error)
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			return fmt.Errorf("%w: status %d", fetch.ErrUpstreamUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode, apiErr.Error)
	}

	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		// zero results are reported through the error field with a 200
		if isEmptyResultsError(apiErr.Error) {
			c.logger.Debug("search returned no results", "engine", engine)
			return json.Unmarshal([]byte("{}"), out)
		}
		return fmt.Errorf("%w: %s", ErrSearchFailed, apiErr.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrSearchFailed, err)
	}

	c.logger.Debug("search completed", "engine", engine, "duration", time.Since(start))
	return nil
}

func isEmptyResultsError(msg string) bool {
	return msg == "Google hasn't returned any results for this query."
}
