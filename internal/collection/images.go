package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/pokedan/cardwatch/backend/internal/config"
	"github.com/pokedan/cardwatch/backend/internal/metrics"
)

// ImageResolver looks up a best-effort high-resolution image URL for a card
// detail-page reference. An empty result with nil error means no image could
// be located; that is never a pipeline failure.
type ImageResolver interface {
	Resolve(ctx context.Context, detailRef string) (string, error)
}

// HTTPImageResolver fetches the detail page and locates an image element by
// a JPEG src heuristic, falling back to semantic id/class attributes.
// Results, including misses, are cached by detail ref so repeated cards never
// trigger a second fetch.
type HTTPImageResolver struct {
	client *resty.Client
	cache  *lru.Cache[string, string]
	logger zerolog.Logger
}

// NewHTTPImageResolver creates a resolver rooted at the marketplace base URL.
func NewHTTPImageResolver(baseURL string, cfg config.ImagesConfig, logger zerolog.Logger) (*HTTPImageResolver, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPImageResolver{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		cache:  cache,
		logger: logger.With().Str("component", "image_resolver").Logger(),
	}, nil
}

// Resolve fetches {base}{detailRef} and returns the located image URL, or ""
// when the page has no recognizable image.
func (r *HTTPImageResolver) Resolve(ctx context.Context, detailRef string) (string, error) {
	if detailRef == "" {
		return "", nil
	}

	if cached, ok := r.cache.Get(detailRef); ok {
		metrics.ImageResolutionsTotal.WithLabelValues("cached").Inc()
		return cached, nil
	}

	resp, err := r.client.R().SetContext(ctx).Get(detailRef)
	if err != nil {
		metrics.ImageResolutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("fetch detail page: %w", err)
	}
	if resp.IsError() {
		metrics.ImageResolutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("fetch detail page: status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		metrics.ImageResolutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("parse detail page: %w", err)
	}

	imageURL := findImage(doc)
	r.cache.Add(detailRef, imageURL)

	if imageURL == "" {
		metrics.ImageResolutionsTotal.WithLabelValues("missing").Inc()
	} else {
		metrics.ImageResolutionsTotal.WithLabelValues("resolved").Inc()
	}
	return imageURL, nil
}

func findImage(doc *goquery.Document) string {
	var found string

	// JPEG src heuristic first, then semantic id/class fallbacks.
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		lower := strings.ToLower(src)
		if strings.Contains(lower, ".jpg") || strings.Contains(lower, ".jpeg") {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	return doc.Find("img#product_image, img.cover").First().AttrOr("src", "")
}
