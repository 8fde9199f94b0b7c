package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/roadpoints/internal/model"
)

const searchPayload = `{
	"total": 2,
	"itemSummaries": [
		{
			"itemId": "v1|110001|0",
			"title": "Insulated Travel Mug",
			"price": {"value": "19.99", "currency": "USD"},
			"image": {"imageUrl": "https://i.ebayimg.com/mug.jpg"}
		},
		{
			"itemId": "v1|110002|0",
			"title": "Trucker Hat",
			"price": {"value": "12.50", "currency": "USD"}
		}
	]
}`

const itemPayload = `{
	"itemId": "v1|110001|0",
	"title": "Insulated Travel Mug",
	"price": {"value": "19.99", "currency": "USD"},
	"image": {"imageUrl": "https://i.ebayimg.com/mug.jpg"},
	"reviewRating": {"averageRating": "4.7"}
}`

type fakeMarketplace struct {
	srv      *httptest.Server
	searches atomic.Int32
	tokens   atomic.Int32
	failures atomic.Int32
}

func newFakeMarketplace(t *testing.T) *fakeMarketplace {
	t.Helper()
	f := &fakeMarketplace{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"app-token","token_type":"Bearer","expires_in":7200}`)
	})
	mux.HandleFunc("GET /buy/browse/v1/item_summary/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer app-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") == "flaky" && f.failures.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.searches.Add(1)
		io.WriteString(w, searchPayload)
	})
	mux.HandleFunc("GET /buy/browse/v1/item/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "v1|110001|0":
			io.WriteString(w, itemPayload)
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"errors":[{"message":"Insufficient permissions"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeMarketplace) client() *EbayClient {
	c := NewEbayClient(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      f.srv.URL,
		TokenURL:     f.srv.URL + "/token",
	})
	c.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return c
}

func TestSearch(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client()

	products, err := c.Search(context.Background(), "mug", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("len = %d, want 2", len(products))
	}
	if products[0].ItemID != "v1|110001|0" {
		t.Errorf("item id = %q, want %q", products[0].ItemID, "v1|110001|0")
	}
	if !products[0].PriceValue.Valid || products[0].PriceValue.Decimal.String() != "19.99" {
		t.Errorf("price = %v, want 19.99", products[0].PriceValue)
	}
	if products[1].ImageURL != "" {
		t.Errorf("image = %q, want empty", products[1].ImageURL)
	}

	// Second identical search is served from cache.
	if _, err := c.Search(context.Background(), "mug", 10); err != nil {
		t.Fatalf("search: %v", err)
	}
	if n := fm.searches.Load(); n != 1 {
		t.Errorf("upstream searches = %d, want 1", n)
	}
	if n := fm.tokens.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	fm := newFakeMarketplace(t)

	products, err := fm.client().Search(context.Background(), "flaky", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("len = %d, want 2", len(products))
	}
	if n := fm.failures.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestItem(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client()
	ctx := context.Background()

	p, err := c.Item(ctx, "v1|110001|0")
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if p.Title != "Insulated Travel Mug" {
		t.Errorf("title = %q, want %q", p.Title, "Insulated Travel Mug")
	}
	if p.Rating != "4.7" {
		t.Errorf("rating = %q, want %q", p.Rating, "4.7")
	}

	p, err = c.Item(ctx, "unknown")
	if err != nil {
		t.Fatalf("item unknown: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for unknown item, got %+v", p)
	}

	_, err = c.Item(ctx, "forbidden")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Message != "Insufficient permissions" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewEbayClient(Config{})
	if c.Configured() {
		t.Error("Configured() = true, want false")
	}
	if _, err := c.Search(context.Background(), "mug", 10); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

type memorySink struct{ entries []model.APIErrorLog }

func (m *memorySink) Record(_ context.Context, e model.APIErrorLog) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestAuditedRecordsFailures(t *testing.T) {
	fm := newFakeMarketplace(t)
	sink := &memorySink{}
	a := NewAudited(fm.client(), sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := a.Item(context.Background(), 7, "forbidden"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, err := a.Search(context.Background(), 7, "mug", 10); err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(sink.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(sink.entries))
	}
	e := sink.entries[0]
	if e.SponsorID == nil || *e.SponsorID != 7 {
		t.Errorf("sponsor = %v, want 7", e.SponsorID)
	}
	if e.StatusCode != http.StatusForbidden || e.Operation != "item" {
		t.Errorf("entry = %+v", e)
	}
}
