package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
)

var (
	// ErrRateUnavailable covers non-success responses and malformed payloads
	// from the exchange-rate service.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrRateLimited is returned on HTTP 429 and while the cool-down window
	// after a 429 is still open.
	ErrRateLimited = errors.New("exchange rate API rate limited")
)

// RateFetcher is the capability the currency enricher depends on. Tests
// substitute a deterministic fake; production wires the HTTP client through
// the cached provider.
type RateFetcher interface {
	FetchRate(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error)
}

// HTTPRateClient calls the external exchange-rate API. It paces its own
// requests with a client-side limiter and honors the documented cool-down
// after a 429: within the window no live call is attempted at all.
type HTTPRateClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cooldown   time.Duration

	mu            sync.Mutex
	rateLimitedAt time.Time

	now func() time.Time
}

// NewHTTPRateClient builds a client for the given API base URL.
// requestInterval paces outgoing calls; cooldown is the documented reset
// window after a 429 (20 minutes for this provider).
func NewHTTPRateClient(baseURL, apiKey string, requestInterval, cooldown time.Duration) *HTTPRateClient {
	return &HTTPRateClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// inCooldown reports whether a 429 was seen less than one cool-down ago.
func (c *HTTPRateClient) inCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.rateLimitedAt.IsZero() && c.now().Sub(c.rateLimitedAt) < c.cooldown
}

func (c *HTTPRateClient) markRateLimited() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitedAt = c.now()
}

// FetchRate requests the USD conversion rate for one currency and date.
func (c *HTTPRateClient) FetchRate(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
	if c.inCooldown() {
		return models.ExchangeRate{}, ErrRateLimited
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	reqURL := fmt.Sprintf("%s/rates?base=%s&date=%s&symbols=USD",
		c.baseURL, url.QueryEscape(currency), date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Exchange rate API request failed", "url", reqURL, "error", err)
		return models.ExchangeRate{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.markRateLimited()
		logger.L.Warn("Exchange rate API rate limited, entering cool-down", "currency", currency, "cooldown", c.cooldown.String())
		return models.ExchangeRate{}, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		logger.L.Warn("Exchange rate API returned non-OK status", "status", resp.Status, "currency", currency)
		return models.ExchangeRate{}, fmt.Errorf("%w: status %s", ErrRateUnavailable, resp.Status)
	}

	var payload models.RateAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.L.Warn("Failed to decode exchange rate API response", "currency", currency, "error", err)
		return models.ExchangeRate{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	usdRate, ok := payload.Rates["USD"]
	if !ok || usdRate.IsZero() {
		return models.ExchangeRate{}, fmt.Errorf("%w: no USD rate in response for %s", ErrRateUnavailable, currency)
	}

	return models.ExchangeRate{
		BaseCurrency: currency,
		AsOfDate:     date,
		Rate:         usdRate,
		FetchedAt:    c.now(),
		Source:       models.RateSourceLive,
	}, nil
}

// RateCache memoizes (currency, as-of-date) lookups for one run, including
// negative caching of failed lookups so a dead API is not hammered once per
// record. It also remembers the most recent live rate per currency for the
// fallback policy.
type RateCache struct {
	store *cache.Cache
}

// NewRateCache creates an empty per-run cache. Entries never expire; the
// cache lives only as long as the run.
func NewRateCache() *RateCache {
	return &RateCache{store: cache.New(cache.NoExpiration, cache.NoExpiration)}
}

func rateKey(currency string, date time.Time) string {
	return fmt.Sprintf("rate-%s-%s", currency, date.Format("2006-01-02"))
}

func missKey(currency string, date time.Time) string {
	return fmt.Sprintf("miss-%s-%s", currency, date.Format("2006-01-02"))
}

func lastLiveKey(currency string) string {
	return fmt.Sprintf("last-live-%s", currency)
}

// Get returns the cached rate for (currency, date) if one exists.
func (rc *RateCache) Get(currency string, date time.Time) (models.ExchangeRate, bool) {
	if v, found := rc.store.Get(rateKey(currency, date)); found {
		return v.(models.ExchangeRate), true
	}
	return models.ExchangeRate{}, false
}

// Set stores a successful lookup. Live rates also update the per-currency
// fallback entry.
func (rc *RateCache) Set(r models.ExchangeRate) {
	rc.store.Set(rateKey(r.BaseCurrency, r.AsOfDate), r, cache.NoExpiration)
	if r.Source == models.RateSourceLive {
		rc.store.Set(lastLiveKey(r.BaseCurrency), r, cache.NoExpiration)
	}
}

// SetNegative records a failed lookup for (currency, date).
func (rc *RateCache) SetNegative(currency string, date time.Time) {
	rc.store.Set(missKey(currency, date), true, cache.NoExpiration)
}

// IsNegative reports whether (currency, date) already failed this run.
func (rc *RateCache) IsNegative(currency string, date time.Time) bool {
	_, found := rc.store.Get(missKey(currency, date))
	return found
}

// LastLive returns the most recent live rate fetched for the currency in
// this run, if any.
func (rc *RateCache) LastLive(currency string) (models.ExchangeRate, bool) {
	if v, found := rc.store.Get(lastLiveKey(currency)); found {
		return v.(models.ExchangeRate), true
	}
	return models.ExchangeRate{}, false
}

// CachedRateProvider combines the run-scoped cache with a RateFetcher and
// implements the fallback policy: on rate limiting (or any other
// unavailability) the most recent live rate for the currency is reused and
// marked as a fallback; with no prior live rate the lookup fails and the
// record is quarantined upstream. A stale or default rate is never used
// silently.
type CachedRateProvider struct {
	cache   *RateCache
	fetcher RateFetcher
	now     func() time.Time
}

// NewCachedRateProvider wires a fetcher behind a fresh per-run cache.
func NewCachedRateProvider(fetcher RateFetcher) *CachedRateProvider {
	return &CachedRateProvider{cache: NewRateCache(), fetcher: fetcher, now: time.Now}
}

// GetExchangeRate retrieves the USD rate for (currency, date), consulting
// the cache first. USD itself converts at identity without a lookup.
func (p *CachedRateProvider) GetExchangeRate(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
	if currency == "USD" {
		return models.ExchangeRate{
			BaseCurrency: "USD",
			AsOfDate:     date,
			Rate:         decimal.NewFromInt(1),
			FetchedAt:    p.now(),
			Source:       models.RateSourceLive,
		}, nil
	}

	if r, found := p.cache.Get(currency, date); found {
		return r, nil
	}

	// A lookup that already failed this run goes straight to fallback
	// instead of re-calling the API.
	if p.cache.IsNegative(currency, date) {
		return p.fallback(currency, date)
	}

	r, err := p.fetcher.FetchRate(ctx, currency, date)
	if err != nil {
		p.cache.SetNegative(currency, date)
		return p.fallback(currency, date)
	}

	p.cache.Set(r)
	return r, nil
}

// fallback reuses the most recent live rate fetched for the currency in this
// run, marked as such for auditability.
func (p *CachedRateProvider) fallback(currency string, date time.Time) (models.ExchangeRate, error) {
	last, ok := p.cache.LastLive(currency)
	if !ok {
		return models.ExchangeRate{}, fmt.Errorf("%w: no fallback rate for %s", ErrRateUnavailable, currency)
	}
	logger.L.Warn("Using fallback exchange rate", "currency", currency, "fetchedAt", last.FetchedAt)
	fb := models.ExchangeRate{
		BaseCurrency: currency,
		AsOfDate:     date,
		Rate:         last.Rate,
		FetchedAt:    last.FetchedAt,
		Source:       models.RateSourceFallback,
	}
	p.cache.Set(fb)
	return fb, nil
}
