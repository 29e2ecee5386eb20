package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pokedan/cardwatch/backend/internal/config"
	"github.com/pokedan/cardwatch/backend/internal/models"
)

func TestNewProvidersOrdering(t *testing.T) {
	cfg := config.RatesConfig{
		ExchangeRateAPIURL: "https://v6.exchangerate-api.com/v6",
		APIKeys:            []string{"key-one", "key-two"},
		OpenERAPIURL:       "https://open.er-api.com/v6",
		RequestTimeout:     time.Second,
	}

	providers := NewProviders(cfg)
	if len(providers) != 3 {
		t.Fatalf("Expected 3 providers, got %d", len(providers))
	}

	want := []string{"exchangerate-api-1", "exchangerate-api-2", "open-erapi"}
	for i, name := range want {
		if providers[i].Name() != name {
			t.Errorf("Expected provider %d to be %s, got %s", i, name, providers[i].Name())
		}
	}
}

func TestExchangeRateAPIProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/testkey/latest/USD" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","conversion_rates":{"AUD":1.52,"JPY":149.85,"EUR":0.91}}`))
	}))
	defer server.Close()

	provider := &ExchangeRateAPIProvider{
		client:  server.Client(),
		baseURL: server.URL,
		apiKey:  "testkey",
		name:    "exchangerate-api-1",
	}

	quotes, err := provider.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("FetchRates returned error: %v", err)
	}
	if !quotes[models.PairUSDAUD].Equal(decimal.NewFromFloat(1.52)) {
		t.Errorf("Expected AUD 1.52, got %s", quotes[models.PairUSDAUD])
	}
	if !quotes[models.PairUSDJPY].Equal(decimal.NewFromFloat(149.85)) {
		t.Errorf("Expected JPY 149.85, got %s", quotes[models.PairUSDJPY])
	}
}

func TestExchangeRateAPIProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error result", http.StatusOK, `{"result":"error","error-type":"invalid-key"}`},
		{"missing required quote", http.StatusOK, `{"result":"success","conversion_rates":{"AUD":1.52}}`},
		{"non-positive quote", http.StatusOK, `{"result":"success","conversion_rates":{"AUD":1.52,"JPY":0}}`},
		{"server error", http.StatusInternalServerError, ``},
		{"malformed body", http.StatusOK, `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := &ExchangeRateAPIProvider{
				client:  server.Client(),
				baseURL: server.URL,
				apiKey:  "testkey",
				name:    "exchangerate-api-1",
			}
			if _, err := provider.FetchRates(context.Background()); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestOpenERAPIProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/USD" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","rates":{"AUD":1.49,"JPY":151.2}}`))
	}))
	defer server.Close()

	provider := &OpenERAPIProvider{client: server.Client(), baseURL: server.URL}

	quotes, err := provider.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("FetchRates returned error: %v", err)
	}
	if !quotes[models.PairUSDAUD].Equal(decimal.NewFromFloat(1.49)) {
		t.Errorf("Expected AUD 1.49, got %s", quotes[models.PairUSDAUD])
	}
}

func TestOpenERAPIProviderUnsuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error"}`))
	}))
	defer server.Close()

	provider := &OpenERAPIProvider{client: server.Client(), baseURL: server.URL}
	if _, err := provider.FetchRates(context.Background()); err == nil {
		t.Error("Expected error for unsuccessful result")
	}
}
