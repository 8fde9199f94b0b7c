package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	searchCacheTTL = 5 * time.Minute
	maxSearchLimit = 50
	oauthScope     = "https://api.ebay.com/oauth/api_scope"
)

// Config holds marketplace credentials from environment variables.
type Config struct {
	ClientID     string
	ClientSecret string
	Environment  string // "production" or "sandbox"
	// BaseURL and TokenURL override the environment's endpoints.
	BaseURL  string
	TokenURL string
}

func (c Config) endpoints() (base, token string) {
	base, token = "https://api.ebay.com", "https://api.ebay.com/identity/v1/oauth2/token"
	if c.Environment == "sandbox" {
		base, token = "https://api.sandbox.ebay.com", "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	}
	if c.BaseURL != "" {
		base = strings.TrimRight(c.BaseURL, "/")
	}
	if c.TokenURL != "" {
		token = c.TokenURL
	}
	return base, token
}

type cachedSearch struct {
	products []Product
	at       time.Time
}

// EbayClient reads listings from the eBay Browse API using an application
// token. Search results are cached briefly per query.
type EbayClient struct {
	configured bool
	client     *http.Client
	baseURL    string
	backoff    func() retry.Backoff

	mu    sync.RWMutex
	cache map[string]cachedSearch
}

func NewEbayClient(cfg Config) *EbayClient {
	base, tokenURL := cfg.endpoints()
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{oauthScope},
	}
	httpClient := cc.Client(context.Background())
	httpClient.Timeout = 10 * time.Second

	return &EbayClient{
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		client:     httpClient,
		baseURL:    base,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		},
		cache: make(map[string]cachedSearch),
	}
}

func (c *EbayClient) Configured() bool { return c.configured }

// Search returns up to limit listings matching query.
func (c *EbayClient) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = 10
	}
	key := strconv.Itoa(limit) + ":" + query

	c.mu.RLock()
	hit, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(hit.at) < searchCacheTTL {
		return hit.products, nil
	}

	q := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	body, err := c.get(ctx, "search", "/buy/browse/v1/item_summary/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	products := []Product{}
	gjson.GetBytes(body, "itemSummaries").ForEach(func(_, item gjson.Result) bool {
		products = append(products, parseProduct(item))
		return true
	})

	c.mu.Lock()
	c.cache[key] = cachedSearch{products: products, at: time.Now()}
	c.mu.Unlock()
	return products, nil
}

// Item resolves a single listing. It returns nil, nil when the marketplace
// does not know the item.
func (c *EbayClient) Item(ctx context.Context, itemID string) (*Product, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	body, err := c.get(ctx, "item", "/buy/browse/v1/item/"+url.PathEscape(itemID))
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	p := parseProduct(gjson.ParseBytes(body))
	if p.ItemID == "" {
		p.ItemID = itemID
	}
	return &p, nil
}

// get performs a GET, retrying transport failures, throttling and server
// errors.
func (c *EbayClient) get(ctx context.Context, op, path string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("marketplace %s: %w", op, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read %s response: %w", op, err))
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}
		body = data
		return nil
	})
	return body, err
}

func errorMessage(body []byte, fallback string) string {
	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return msg.String()
	}
	return fallback
}

func parseProduct(r gjson.Result) Product {
	p := Product{
		ItemID:        r.Get("itemId").String(),
		Title:         r.Get("title").String(),
		PriceCurrency: r.Get("price.currency").String(),
		ImageURL:      r.Get("image.imageUrl").String(),
	}
	if v := r.Get("price.value"); v.Exists() {
		if d, err := decimal.NewFromString(v.String()); err == nil {
			p.PriceValue = decimal.NewNullDecimal(d)
		}
	}
	for _, path := range []string{"rating", "reviewRating.averageRating", "product.averageRating"} {
		if v := r.Get(path); v.Exists() {
			p.Rating = v.String()
			break
		}
	}
	return p
}
