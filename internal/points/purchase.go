package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

type PurchaseResult struct {
	Order   *model.Order `json:"order"`
	Balance int64        `json:"new_balance"`
	Stock   int64        `json:"new_stock"`
}

type BalanceResult struct {
	SponsorID int64 `json:"sponsor_id"`
	DriverID  int64 `json:"driver_id"`
	Delta     int64 `json:"points_changed"`
	Balance   int64 `json:"new_balance"`
}

// Purchase redeems one unit of a catalog item from the driver's sponsor.
// Stock, balance and the new order commit together or not at all; a
// purchase never takes the balance below zero whatever the sponsor's
// policy.
func (e *Engine) Purchase(ctx context.Context, c Caller, itemID string) (*PurchaseResult, error) {
	d, err := requireDriver(c)
	if err != nil {
		return nil, err
	}
	if itemID == "" {
		return nil, invalid("item id is required")
	}

	var res PurchaseResult
	err = e.inTx(ctx, "purchase", func(tx *sql.Tx) error {
		m, err := store.LoadMembership(ctx, tx, d.UserID)
		if err != nil {
			return err
		}
		if m == nil {
			return notFound("driver %d has no sponsor", d.UserID)
		}

		item, err := store.LoadCatalogItem(ctx, tx, m.SponsorID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item %s is not in the catalog", itemID)
		}
		if m.TotalPoints < item.PointsCost {
			return &InsufficientFundsError{Balance: m.TotalPoints, Required: item.PointsCost}
		}
		if item.StockQuantity <= 0 {
			return &OutOfStockError{ItemID: itemID, Stock: item.StockQuantity}
		}

		now := e.timestamp()
		err = tx.QueryRowContext(ctx,
			`UPDATE catalog_items SET stock_quantity = stock_quantity - 1, updated_at = ?
			WHERE id = ? AND stock_quantity > 0 RETURNING stock_quantity`,
			now, item.ID,
		).Scan(&res.Stock)
		if errors.Is(err, sql.ErrNoRows) {
			return &OutOfStockError{ItemID: itemID}
		}
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		res.Balance, err = recordChange(ctx, tx, change{
			SponsorID: m.SponsorID,
			DriverID:  d.UserID,
			Delta:     -item.PointsCost,
			Reason:    "Redeemed: " + item.Title,
			ActorID:   d.ActorID(),
			Floor:     floor(0),
		}, now)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx,
			`INSERT INTO orders (driver_id, sponsor_id, item_id, item_title, points_cost, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+store.OrderCols,
			d.UserID, m.SponsorID, item.ItemID, item.Title, item.PointsCost, string(model.OrderPending), now, now,
		)
		res.Order, err = store.ScanOrder(row)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o := res.Order
	e.logger.Info("order placed", "order_id", o.ID, "driver_id", o.DriverID, "sponsor_id", o.SponsorID,
		"item_id", o.ItemID, "points_cost", o.PointsCost, "balance", res.Balance)
	e.emit(ctx,
		Event{Type: EventOrderCreated, SponsorID: o.SponsorID, DriverID: o.DriverID, OrderID: o.ID,
			Delta: -o.PointsCost, Balance: res.Balance, ItemTitle: o.ItemTitle, At: o.CreatedAt},
		Event{Type: EventPointsChanged, SponsorID: o.SponsorID, DriverID: o.DriverID, OrderID: o.ID,
			Delta: -o.PointsCost, Balance: res.Balance, Reason: "Redeemed: " + o.ItemTitle, At: o.CreatedAt},
	)
	return &res, nil
}

// CancelOrder reverses a pending order exactly: the refund and restock come
// from the order's own snapshot, not the live catalog item.
func (e *Engine) CancelOrder(ctx context.Context, c Caller, orderID int64) (*BalanceResult, error) {
	d, err := requireDriver(c)
	if err != nil {
		return nil, err
	}

	var (
		res   BalanceResult
		order *model.Order
	)
	err = e.inTx(ctx, "cancel order", func(tx *sql.Tx) error {
		o, err := store.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return notFound("order %d", orderID)
		}
		if o.DriverID != d.UserID {
			return forbidden("order %d belongs to another driver", orderID)
		}
		if o.Status != model.OrderPending {
			return &InvalidStateError{OrderID: o.ID, Status: o.Status}
		}

		now := e.timestamp()
		row := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ? RETURNING `+store.OrderCols,
			string(model.OrderCancelled), now, o.ID, string(model.OrderPending),
		)
		order, err = store.ScanOrder(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &InvalidStateError{OrderID: o.ID, Status: o.Status}
		}
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		restock, err := tx.ExecContext(ctx,
			`UPDATE catalog_items SET stock_quantity = stock_quantity + 1, updated_at = ?
			WHERE sponsor_id = ? AND item_id = ?`,
			now, o.SponsorID, o.ItemID,
		)
		if err != nil {
			return fmt.Errorf("restock item: %w", err)
		}
		if n, err := rowsAffected(restock); err != nil {
			return err
		} else if n == 0 {
			e.logger.Warn("cancelled order item no longer in catalog, stock not restored",
				"order_id", o.ID, "sponsor_id", o.SponsorID, "item_id", o.ItemID)
		}

		res.SponsorID, res.DriverID, res.Delta = o.SponsorID, o.DriverID, o.PointsCost
		res.Balance, err = recordChange(ctx, tx, change{
			SponsorID: o.SponsorID,
			DriverID:  o.DriverID,
			Delta:     o.PointsCost,
			Reason:    fmt.Sprintf("Cancelled order #%d: %s", o.ID, o.ItemTitle),
			ActorID:   d.ActorID(),
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order cancelled", "order_id", order.ID, "driver_id", order.DriverID,
		"refund", order.PointsCost, "balance", res.Balance)
	e.emit(ctx,
		Event{Type: EventOrderCancelled, SponsorID: order.SponsorID, DriverID: order.DriverID, OrderID: order.ID,
			Delta: order.PointsCost, Balance: res.Balance, ItemTitle: order.ItemTitle, At: order.UpdatedAt},
		Event{Type: EventPointsChanged, SponsorID: order.SponsorID, DriverID: order.DriverID, OrderID: order.ID,
			Delta: order.PointsCost, Balance: res.Balance,
			Reason: fmt.Sprintf("Cancelled order #%d: %s", order.ID, order.ItemTitle), At: order.UpdatedAt},
	)
	return &res, nil
}

// FulfillOrder marks a pending order delivered. Only the order's sponsor
// may fulfil it.
func (e *Engine) FulfillOrder(ctx context.Context, c Caller, orderID int64) (*model.Order, error) {
	s, err := requireSponsor(c)
	if err != nil {
		return nil, err
	}

	var order *model.Order
	err = e.inTx(ctx, "fulfill order", func(tx *sql.Tx) error {
		o, err := store.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return notFound("order %d", orderID)
		}
		if o.SponsorID != s.SponsorID {
			return forbidden("order %d belongs to another sponsor", orderID)
		}
		if o.Status != model.OrderPending {
			return &InvalidStateError{OrderID: o.ID, Status: o.Status}
		}

		row := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ? RETURNING `+store.OrderCols,
			string(model.OrderFulfilled), e.timestamp(), o.ID, string(model.OrderPending),
		)
		order, err = store.ScanOrder(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &InvalidStateError{OrderID: o.ID, Status: o.Status}
		}
		if err != nil {
			return fmt.Errorf("fulfill order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order fulfilled", "order_id", order.ID, "sponsor_id", order.SponsorID)
	e.emit(ctx, Event{Type: EventOrderFulfilled, SponsorID: order.SponsorID, DriverID: order.DriverID,
		OrderID: order.ID, ItemTitle: order.ItemTitle, At: order.UpdatedAt})
	return order, nil
}
