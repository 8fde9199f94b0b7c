// Package catalog looks up products on the marketplace that sponsors
// curate their catalogs from.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when no marketplace credentials are set.
var ErrNotConfigured = errors.New("marketplace not configured")

// Product is a marketplace listing as seen at lookup time.
type Product struct {
	ItemID        string              `json:"item_id"`
	Title         string              `json:"title"`
	PriceValue    decimal.NullDecimal `json:"price_value"`
	PriceCurrency string              `json:"price_currency,omitempty"`
	ImageURL      string              `json:"image_url,omitempty"`
	Rating        string              `json:"rating,omitempty"`
}

// Source searches the marketplace and resolves single listings.
type Source interface {
	Search(ctx context.Context, query string, limit int) ([]Product, error)
	Item(ctx context.Context, itemID string) (*Product, error)
}

// APIError is a non-success response from the marketplace.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace %s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0 if it has none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
