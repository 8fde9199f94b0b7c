package points

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

// CatalogItemInput is a sponsor's item as fetched from the marketplace plus
// the sponsor's redemption terms. A zero PointsCost is derived from the
// price and the sponsor's point value.
type CatalogItemInput struct {
	ItemID        string              `json:"item_id"`
	Title         string              `json:"title"`
	PriceValue    decimal.NullDecimal `json:"price_value"`
	PriceCurrency string              `json:"price_currency"`
	ImageURL      string              `json:"image_url"`
	Rating        string              `json:"rating"`
	StockQuantity int64               `json:"stock_quantity"`
	PointsCost    int64               `json:"points_cost"`
}

// PointsForPrice converts a price into a whole number of points, rounding up.
func PointsForPrice(price, pointValue decimal.Decimal) int64 {
	if !pointValue.IsPositive() {
		pointValue = model.DefaultPointValue
	}
	return price.Div(pointValue).Ceil().IntPart()
}

// UpsertCatalogItem adds an item to the sponsor's catalog, or updates it in
// place when the sponsor already lists the same marketplace item.
func (e *Engine) UpsertCatalogItem(ctx context.Context, c Caller, in CatalogItemInput) (*model.CatalogItem, error) {
	s, err := requireSponsor(c)
	if err != nil {
		return nil, err
	}
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.ItemID == "":
		return nil, invalid("item id is required")
	case in.Title == "":
		return nil, invalid("title is required")
	case in.StockQuantity < 0:
		return nil, invalid("stock quantity cannot be negative")
	case in.PointsCost < 0:
		return nil, invalid("points cost must be positive")
	case in.PriceValue.Valid && in.PriceValue.Decimal.IsNegative():
		return nil, invalid("price cannot be negative")
	}

	var item *model.CatalogItem
	err = e.inTx(ctx, "upsert catalog item", func(tx *sql.Tx) error {
		cost := in.PointsCost
		if cost == 0 {
			if !in.PriceValue.Valid {
				return invalid("points cost is required when the item has no price")
			}
			policy, err := store.LoadPolicy(ctx, tx, s.SponsorID)
			if err != nil {
				return err
			}
			cost = PointsForPrice(in.PriceValue.Decimal, policy.PointValue)
			if cost <= 0 {
				return invalid("points cost must be positive")
			}
		}

		now := e.timestamp()
		row := tx.QueryRowContext(ctx,
			`INSERT INTO catalog_items
				(sponsor_id, item_id, title, price_value, price_currency, image_url, rating,
				 stock_quantity, points_cost, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (sponsor_id, item_id) DO UPDATE SET
				title = excluded.title,
				price_value = excluded.price_value,
				price_currency = excluded.price_currency,
				image_url = excluded.image_url,
				rating = excluded.rating,
				stock_quantity = excluded.stock_quantity,
				points_cost = excluded.points_cost,
				updated_at = excluded.updated_at
			RETURNING `+store.CatalogItemCols,
			s.SponsorID, in.ItemID, in.Title, in.PriceValue, nullString(in.PriceCurrency),
			nullString(in.ImageURL), nullString(in.Rating), in.StockQuantity, cost, now, now,
		)
		var err error
		item, err = store.ScanCatalogItem(row)
		if err != nil {
			return fmt.Errorf("upsert catalog item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("catalog item saved", "sponsor_id", s.SponsorID, "item_id", item.ItemID,
		"points_cost", item.PointsCost, "stock", item.StockQuantity)
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
