package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/roadpoints/internal/model"
)

// change is one signed point movement for a sponsor/driver pair.
type change struct {
	SponsorID int64
	DriverID  int64
	Delta     int64
	Reason    string
	ActorID   int64
	// Floor, when set, rejects the change if the new balance would drop
	// below it.
	Floor *int64
}

func floor(n int64) *int64 { return &n }

// recordChange is the only write path to total_points. It moves the cached
// balance and appends the matching ledger entry inside tx and returns the
// new balance. The balance update is a single conditional statement, so a
// concurrent change can never be lost or let the balance cross the floor.
func recordChange(ctx context.Context, tx *sql.Tx, c change, at time.Time) (int64, error) {
	if c.Delta == 0 {
		return 0, invalid("points change must be nonzero")
	}
	if c.Reason == "" {
		return 0, invalid("reason is required")
	}

	query := `UPDATE sponsor_drivers SET total_points = total_points + ?
		WHERE sponsor_id = ? AND driver_id = ?`
	args := []any{c.Delta, c.SponsorID, c.DriverID}
	if c.Floor != nil {
		query += ` AND total_points + ? >= ?`
		args = append(args, c.Delta, *c.Floor)
	}
	query += ` RETURNING total_points`

	var balance int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rejectedChange(ctx, tx, c)
	}
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (category, created_at, sponsor_id, driver_id, points_changed, reason, changed_by_user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		model.CategoryPointChange, at.UTC(), c.SponsorID, c.DriverID, c.Delta, c.Reason, c.ActorID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return balance, nil
}

// rejectedChange explains why the conditional update matched no row.
func rejectedChange(ctx context.Context, tx *sql.Tx, c change) error {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT total_points FROM sponsor_drivers WHERE sponsor_id = ? AND driver_id = ?`,
		c.SponsorID, c.DriverID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("driver %d is not enrolled with sponsor %d", c.DriverID, c.SponsorID)
	}
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	var min int64
	if c.Floor != nil {
		min = *c.Floor
	}
	return &InsufficientFundsError{Balance: balance - min, Required: -c.Delta}
}

// Ledger is the read side of the point ledger. Reads retry briefly when the
// database is locked by a writer.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	backoff func() retry.Backoff
}

func NewLedger(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
		},
	}
}

func (l *Ledger) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isBusy(err) {
			l.logger.Debug("ledger read busy, retrying", "op", op, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && !isDomain(err) {
		return storeErr(op, err)
	}
	return err
}

// Balance returns the cached balance of a pair.
func (l *Ledger) Balance(ctx context.Context, sponsorID, driverID int64) (int64, error) {
	var balance int64
	err := l.read(ctx, "get balance", func(ctx context.Context) error {
		err := l.db.QueryRowContext(ctx,
			`SELECT total_points FROM sponsor_drivers WHERE sponsor_id = ? AND driver_id = ?`,
			sponsorID, driverID,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("driver %d is not enrolled with sponsor %d", driverID, sponsorID)
		}
		return err
	})
	return balance, err
}

// History returns the pair's balance and ledger entries, newest first. A
// non-empty month ("2006-01") limits the entries to that calendar month.
func (l *Ledger) History(ctx context.Context, sponsorID, driverID int64, month string) (*model.PointStatement, error) {
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, invalid("month must be YYYY-MM, got %q", month)
		}
	}
	balance, err := l.Balance(ctx, sponsorID, driverID)
	if err != nil {
		return nil, err
	}

	st := &model.PointStatement{
		SponsorID:     sponsorID,
		DriverID:      driverID,
		CurrentPoints: balance,
		History:       []model.LedgerEntry{},
	}
	err = l.read(ctx, "get history", func(ctx context.Context) error {
		query := `SELECT id, category, created_at, sponsor_id, driver_id, points_changed, reason, changed_by_user_id
			FROM audit_log WHERE sponsor_id = ? AND driver_id = ?`
		args := []any{sponsorID, driverID}
		if month != "" {
			query += ` AND substr(created_at, 1, 7) = ?`
			args = append(args, month)
		}
		query += ` ORDER BY created_at DESC, id DESC`

		rows, err := l.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		entries := []model.LedgerEntry{}
		for rows.Next() {
			var e model.LedgerEntry
			if err := rows.Scan(&e.ID, &e.Category, &e.Timestamp, &e.SponsorID, &e.DriverID,
				&e.PointsChanged, &e.Reason, &e.ChangedBy); err != nil {
				return fmt.Errorf("scan ledger entry: %w", err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		st.History = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// MonthlySummary groups the pair's ledger by calendar month, newest first.
func (l *Ledger) MonthlySummary(ctx context.Context, sponsorID, driverID int64) ([]model.MonthlySummary, error) {
	if _, err := l.Balance(ctx, sponsorID, driverID); err != nil {
		return nil, err
	}

	var out []model.MonthlySummary
	err := l.read(ctx, "get monthly summary", func(ctx context.Context) error {
		rows, err := l.db.QueryContext(ctx,
			`SELECT substr(created_at, 1, 7) AS month,
				COALESCE(SUM(CASE WHEN points_changed > 0 THEN points_changed END), 0),
				COALESCE(SUM(CASE WHEN points_changed < 0 THEN -points_changed END), 0),
				SUM(points_changed),
				COUNT(*)
			FROM audit_log WHERE sponsor_id = ? AND driver_id = ?
			GROUP BY month ORDER BY month DESC`,
			sponsorID, driverID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		months := []model.MonthlySummary{}
		for rows.Next() {
			var m model.MonthlySummary
			if err := rows.Scan(&m.Month, &m.PointsEarned, &m.PointsDeducted, &m.NetChange, &m.TransactionCount); err != nil {
				return fmt.Errorf("scan monthly summary: %w", err)
			}
			if t, err := time.Parse("2006-01", m.Month); err == nil {
				m.MonthName = t.Format("January 2006")
			}
			months = append(months, m)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = months
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Verify returns every pair whose cached balance differs from the sum of
// its ledger entries. An empty result means the ledger is consistent.
func (l *Ledger) Verify(ctx context.Context) ([]model.BalanceDrift, error) {
	var drifts []model.BalanceDrift
	err := l.read(ctx, "verify ledger", func(ctx context.Context) error {
		rows, err := l.db.QueryContext(ctx,
			`SELECT sd.sponsor_id, sd.driver_id, sd.total_points, COALESCE(SUM(a.points_changed), 0) AS ledger_sum
			FROM sponsor_drivers sd
			LEFT JOIN audit_log a ON a.sponsor_id = sd.sponsor_id AND a.driver_id = sd.driver_id
			GROUP BY sd.sponsor_id, sd.driver_id
			HAVING sd.total_points <> ledger_sum
			ORDER BY sd.sponsor_id, sd.driver_id`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		found := []model.BalanceDrift{}
		for rows.Next() {
			var d model.BalanceDrift
			if err := rows.Scan(&d.SponsorID, &d.DriverID, &d.TotalPoints, &d.LedgerSum); err != nil {
				return fmt.Errorf("scan balance drift: %w", err)
			}
			found = append(found, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		drifts = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}
