package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pokedan/cardwatch/backend/internal/config"
)

func listingConfig(baseURL string) config.ListingConfig {
	return config.ListingConfig{
		BaseURL:        baseURL,
		Seller:         "yx5zdzzvnnhyvjeffskx64pus4",
		Sort:           "name",
		Category:       "all",
		Status:         "collection",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     0,
		MaxPages:       10,
	}
}

func TestFetchDocumentQueryParams(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`<table id="games_table"></table>`))
	}))
	defer server.Close()

	client := NewListingClient(listingConfig(server.URL), zerolog.Nop())
	body, err := client.FetchDocument(context.Background())
	if err != nil {
		t.Fatalf("FetchDocument returned error: %v", err)
	}
	if body == "" {
		t.Error("Expected non-empty body")
	}

	want := map[string]string{
		"status":   "collection",
		"seller":   "yx5zdzzvnnhyvjeffskx64pus4",
		"sort":     "name",
		"category": "all",
	}
	for key, value := range want {
		if got := gotQuery[key]; len(got) != 1 || got[0] != value {
			t.Errorf("Expected query %s=%s, got %v", key, value, got)
		}
	}
	if _, ok := gotQuery["internal"]; ok {
		t.Error("Full document fetch must not set the internal paging flag")
	}
}

func TestFetchFragmentPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("internal") != "true" {
			t.Errorf("Expected internal=true, got %q", r.URL.Query().Get("internal"))
		}
		if r.URL.Query().Get("page") != "3" {
			t.Errorf("Expected page=3, got %q", r.URL.Query().Get("page"))
		}
		w.Write([]byte(`<tr class="offer"></tr>`))
	}))
	defer server.Close()

	client := NewListingClient(listingConfig(server.URL), zerolog.Nop())
	if _, err := client.FetchFragment(context.Background(), 3); err != nil {
		t.Fatalf("FetchFragment returned error: %v", err)
	}
}

func TestFetchDocumentServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewListingClient(listingConfig(server.URL), zerolog.Nop())
	if _, err := client.FetchDocument(context.Background()); err == nil {
		t.Error("Expected error for 502 response")
	}
}

func TestFetchDocumentRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`<table id="games_table"></table>`))
	}))
	defer server.Close()

	cfg := listingConfig(server.URL)
	cfg.MaxRetries = 3
	client := NewListingClient(cfg, zerolog.Nop())

	if _, err := client.FetchDocument(context.Background()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}
