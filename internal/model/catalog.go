package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CatalogItem struct {
	ID            int64               `json:"id"`
	SponsorID     int64               `json:"sponsor_id"`
	ItemID        string              `json:"item_id"`
	Title         string              `json:"title"`
	PriceValue    decimal.NullDecimal `json:"price_value"`
	PriceCurrency string              `json:"price_currency,omitempty"`
	ImageURL      string              `json:"image_url,omitempty"`
	Rating        string              `json:"rating,omitempty"`
	StockQuantity int64               `json:"stock_quantity"`
	PointsCost    int64               `json:"points_cost"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCancelled OrderStatus = "cancelled"
	OrderFulfilled OrderStatus = "fulfilled"
)

// Order is a redemption record. ItemTitle and PointsCost are snapshots taken
// at purchase time and never follow later catalog edits.
type Order struct {
	ID         int64       `json:"order_id"`
	DriverID   int64       `json:"driver_id"`
	SponsorID  int64       `json:"sponsor_id"`
	ItemID     string      `json:"item_id"`
	ItemTitle  string      `json:"item_title"`
	PointsCost int64       `json:"points_cost"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
