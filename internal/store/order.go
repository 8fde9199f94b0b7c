package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
)

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func scanOrder(scanner interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	err := scanner.Scan(
		&o.ID, &o.DriverID, &o.SponsorID, &o.ItemID, &o.ItemTitle,
		&o.PointsCost, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderCols is exported for writers that return rows with RETURNING.
const OrderCols = `id, driver_id, sponsor_id, item_id, item_title, points_cost, status, created_at, updated_at`

// ScanOrder scans a row selected with OrderCols.
func ScanOrder(scanner interface{ Scan(...any) error }) (*model.Order, error) {
	return scanOrder(scanner)
}

func LoadOrder(ctx context.Context, q Querier, id int64) (*model.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+OrderCols+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return LoadOrder(ctx, s.db, id)
}

func (s *OrderStore) ListByDriver(ctx context.Context, driverID int64) ([]model.Order, error) {
	return s.list(ctx, `WHERE driver_id = ?`, driverID)
}

// ListBySponsor returns the sponsor's orders, optionally narrowed to one status.
func (s *OrderStore) ListBySponsor(ctx context.Context, sponsorID int64, status model.OrderStatus) ([]model.Order, error) {
	if status == "" {
		return s.list(ctx, `WHERE sponsor_id = ?`, sponsorID)
	}
	return s.list(ctx, `WHERE sponsor_id = ? AND status = ?`, sponsorID, status)
}

func (s *OrderStore) list(ctx context.Context, where string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+OrderCols+` FROM orders `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
