package scrape

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/pokedan/cardwatch/backend/internal/config"
	"github.com/pokedan/cardwatch/backend/internal/metrics"
)

const offersPath = "/offers"

// ListingClient fetches the seller collection listing over HTTP. Retries and
// the request timeout are handled here; an error from FetchDocument means the
// retry budget is exhausted and the run cannot proceed.
type ListingClient struct {
	client *resty.Client
	cfg    config.ListingConfig
	logger zerolog.Logger
}

// NewListingClient creates a listing client from config.
func NewListingClient(cfg config.ListingConfig, logger zerolog.Logger) *ListingClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &ListingClient{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "listing_client").Logger(),
	}
}

// FetchDocument retrieves the full listing page for the configured seller.
func (c *ListingClient) FetchDocument(ctx context.Context) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(c.queryParams()).
		Get(offersPath)
	if err != nil {
		return "", fmt.Errorf("fetch listing: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch listing: status %d", resp.StatusCode())
	}

	metrics.ListingPagesFetched.Inc()
	return resp.String(), nil
}

// FetchFragment retrieves one paged listing fragment. The source serves
// additional offer rows through the same endpoint with internal paging; a
// fragment with no offer rows marks the end of the collection.
func (c *ListingClient) FetchFragment(ctx context.Context, page int) (string, error) {
	params := c.queryParams()
	params["internal"] = "true"
	params["page"] = strconv.Itoa(page)

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(offersPath)
	if err != nil {
		return "", fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch listing page %d: status %d", page, resp.StatusCode())
	}

	metrics.ListingPagesFetched.Inc()
	return resp.String(), nil
}

func (c *ListingClient) queryParams() map[string]string {
	return map[string]string{
		"status":   c.cfg.Status,
		"seller":   c.cfg.Seller,
		"sort":     c.cfg.Sort,
		"category": c.cfg.Category,
	}
}

// BaseURL exposes the configured marketplace base for detail-page fetches.
func (c *ListingClient) BaseURL() string {
	return c.cfg.BaseURL
}
