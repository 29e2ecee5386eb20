package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pokedan/cardwatch/backend/internal/config"
	"github.com/pokedan/cardwatch/backend/internal/models"
)

const providerDefaultTimeout = 10 * time.Second

// Provider fetches a full USD-based rate set from one external source. A
// response missing any required pair is an error; the cache then moves on to
// the next provider in its list.
type Provider interface {
	Name() string
	FetchRates(ctx context.Context) (map[models.RatePair]decimal.Decimal, error)
}

// NewProviders builds the ordered provider list from config: one keyed
// exchangerate-api client per configured key, then the keyless open ER-API
// endpoint as the final fallback.
func NewProviders(cfg config.RatesConfig) []Provider {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = providerDefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var providers []Provider
	for i, key := range cfg.APIKeys {
		providers = append(providers, &ExchangeRateAPIProvider{
			client:  client,
			baseURL: cfg.ExchangeRateAPIURL,
			apiKey:  key,
			name:    fmt.Sprintf("exchangerate-api-%d", i+1),
		})
	}
	if cfg.OpenERAPIURL != "" {
		providers = append(providers, &OpenERAPIProvider{
			client:  client,
			baseURL: cfg.OpenERAPIURL,
		})
	}
	return providers
}

// ExchangeRateAPIProvider queries the keyed exchangerate-api v6 endpoint.
type ExchangeRateAPIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	name    string
}

type exchangeRateAPIResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type,omitempty"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

func (p *ExchangeRateAPIProvider) Name() string {
	return p.name
}

func (p *ExchangeRateAPIProvider) FetchRates(ctx context.Context) (map[models.RatePair]decimal.Decimal, error) {
	reqURL := fmt.Sprintf("%s/%s/latest/USD", p.baseURL, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchangerate-api returned status %d", resp.StatusCode)
	}

	var rateResp exchangeRateAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rateResp.Result != "success" {
		if rateResp.ErrorType != "" {
			return nil, fmt.Errorf("exchangerate-api error: %s", rateResp.ErrorType)
		}
		return nil, fmt.Errorf("exchangerate-api returned unsuccessful response")
	}

	return ratesFromQuotes(rateResp.ConversionRates)
}

// OpenERAPIProvider queries the keyless open.er-api.com endpoint.
type OpenERAPIProvider struct {
	client  *http.Client
	baseURL string
}

type openERAPIResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (p *OpenERAPIProvider) Name() string {
	return "open-erapi"
}

func (p *OpenERAPIProvider) FetchRates(ctx context.Context) (map[models.RatePair]decimal.Decimal, error) {
	reqURL := fmt.Sprintf("%s/latest/USD", p.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open er-api returned status %d", resp.StatusCode)
	}

	var rateResp openERAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rateResp.Result != "success" {
		return nil, fmt.Errorf("open er-api returned unsuccessful response")
	}

	return ratesFromQuotes(rateResp.Rates)
}

// ratesFromQuotes validates a USD-based quote map against the required pairs.
// Partial rate sets are rejected outright so the cache falls through to the
// next provider instead of mixing sources.
func ratesFromQuotes(quotes map[string]float64) (map[models.RatePair]decimal.Decimal, error) {
	result := make(map[models.RatePair]decimal.Decimal, len(models.RequiredPairs))
	for _, pair := range models.RequiredPairs {
		quote, ok := quotes[pair.Quote]
		if !ok {
			return nil, fmt.Errorf("rate set missing %s quote", pair.Quote)
		}
		if quote <= 0 {
			return nil, fmt.Errorf("non-positive %s quote %v", pair.Quote, quote)
		}
		result[pair] = decimal.NewFromFloat(quote)
	}
	return result, nil
}
