package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/logger"

	"golang.org/x/time/rate"
)

// ErrPriceUnavailable means the provider returned no quote for the symbol.
var ErrPriceUnavailable = errors.New("price unavailable")

type AlphaVantageResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// Client fetches current prices from Alpha Vantage's GLOBAL_QUOTE endpoint.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	cache          PriceCache
	cacheTTL       time.Duration
	log            *logger.Logger
}

// NewClient builds a client. cache may be nil.
func NewClient(cfg config.Market, cache PriceCache, log *logger.Logger) *Client {
	perMinute := cfg.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: timeout},
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		cache:          cache,
		cacheTTL:       cfg.CacheTTL,
		log:            log,
	}
}

// Quote returns the latest price for symbol, consulting the cache first.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, ErrPriceUnavailable
	}

	if c.cache != nil {
		if price, ok := c.cache.Get(ctx, symbol); ok {
			return price, nil
		}
	}

	if err := c.requestLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("fetch quote for %s: status %d: %s", symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result AlphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode quote for %s: %w", symbol, err)
	}

	if result.GlobalQuote.Price == "" {
		if msg := result.Note + result.Information; msg != "" {
			c.log.Warn("Alpha Vantage returned no quote", logger.StringField("symbol", symbol), logger.StringField("message", msg))
		}
		return 0, ErrPriceUnavailable
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q for %s: %w", result.GlobalQuote.Price, symbol, err)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, symbol, price, c.cacheTTL); err != nil {
			c.log.Warn("Failed to cache price", logger.ErrorField(err), logger.StringField("symbol", symbol))
		}
	}
	return price, nil
}

// CurrentPrice adapts Quote for valuation: any failure is reported as an
// unavailable price and logged.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	price, err := c.Quote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, ErrPriceUnavailable) {
			c.log.Error("Failed to fetch stock data", logger.ErrorField(err), logger.StringField("symbol", symbol))
		}
		return 0, false
	}
	return price, true
}
