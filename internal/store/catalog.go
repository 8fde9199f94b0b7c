package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
)

type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func scanCatalogItem(scanner interface{ Scan(...any) error }) (*model.CatalogItem, error) {
	var item model.CatalogItem
	var currency, imageURL, rating sql.NullString
	err := scanner.Scan(
		&item.ID, &item.SponsorID, &item.ItemID, &item.Title,
		&item.PriceValue, &currency, &imageURL, &rating,
		&item.StockQuantity, &item.PointsCost, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.PriceCurrency = currency.String
	item.ImageURL = imageURL.String
	item.Rating = rating.String
	return &item, nil
}

// CatalogItemCols is exported for writers that return rows with RETURNING.
const CatalogItemCols = `id, sponsor_id, item_id, title, price_value, price_currency, image_url, rating, stock_quantity, points_cost, created_at, updated_at`

// ScanCatalogItem scans a row selected with CatalogItemCols.
func ScanCatalogItem(scanner interface{ Scan(...any) error }) (*model.CatalogItem, error) {
	return scanCatalogItem(scanner)
}

// LoadCatalogItem returns a sponsor's item by marketplace id, or nil.
func LoadCatalogItem(ctx context.Context, q Querier, sponsorID int64, itemID string) (*model.CatalogItem, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+CatalogItemCols+` FROM catalog_items WHERE sponsor_id = ? AND item_id = ?`,
		sponsorID, itemID,
	)
	item, err := scanCatalogItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return item, nil
}

func (s *CatalogStore) Get(ctx context.Context, sponsorID int64, itemID string) (*model.CatalogItem, error) {
	return LoadCatalogItem(ctx, s.db, sponsorID, itemID)
}

func (s *CatalogStore) ListBySponsor(ctx context.Context, sponsorID int64) ([]model.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+CatalogItemCols+` FROM catalog_items WHERE sponsor_id = ? ORDER BY created_at DESC, id DESC`,
		sponsorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Delete removes a sponsor's item and reports whether a row existed.
// Orders keep their own snapshot of the item.
func (s *CatalogStore) Delete(ctx context.Context, sponsorID int64, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM catalog_items WHERE sponsor_id = ? AND item_id = ?`, sponsorID, itemID)
	if err != nil {
		return false, fmt.Errorf("delete catalog item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
