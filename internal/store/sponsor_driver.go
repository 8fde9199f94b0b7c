package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
)

type SponsorDriverStore struct {
	db *sql.DB
}

func NewSponsorDriverStore(db *sql.DB) *SponsorDriverStore {
	return &SponsorDriverStore{db: db}
}

func scanSponsorDriver(scanner interface{ Scan(...any) error }) (*model.SponsorDriver, error) {
	var sd model.SponsorDriver
	var username sql.NullString
	err := scanner.Scan(&sd.SponsorID, &sd.DriverID, &username, &sd.TotalPoints, &sd.CreatedAt)
	if err != nil {
		return nil, err
	}
	sd.Username = username.String
	return &sd, nil
}

const sponsorDriverCols = `sd.sponsor_id, sd.driver_id, u.username, sd.total_points, sd.created_at`

const sponsorDriverFrom = ` FROM sponsor_drivers sd LEFT JOIN users u ON u.id = sd.driver_id`

// LoadMembership returns the sponsor relationship of a driver, or nil if the
// driver has not been enrolled by any sponsor.
func LoadMembership(ctx context.Context, q Querier, driverID int64) (*model.SponsorDriver, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+sponsorDriverCols+sponsorDriverFrom+` WHERE sd.driver_id = ?`, driverID)
	sd, err := scanSponsorDriver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return sd, nil
}

func (s *SponsorDriverStore) GetByDriver(ctx context.Context, driverID int64) (*model.SponsorDriver, error) {
	return LoadMembership(ctx, s.db, driverID)
}

func (s *SponsorDriverStore) ListBySponsor(ctx context.Context, sponsorID int64) ([]model.SponsorDriver, error) {
	return s.list(ctx, ` WHERE sd.sponsor_id = ? ORDER BY u.username, sd.driver_id`, sponsorID)
}

// ListAll returns every membership ordered by sponsor, for batch jobs.
func (s *SponsorDriverStore) ListAll(ctx context.Context) ([]model.SponsorDriver, error) {
	return s.list(ctx, ` ORDER BY sd.sponsor_id, sd.driver_id`)
}

func (s *SponsorDriverStore) list(ctx context.Context, where string, args ...any) ([]model.SponsorDriver, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sponsorDriverCols+sponsorDriverFrom+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list sponsor drivers: %w", err)
	}
	defer rows.Close()

	var drivers []model.SponsorDriver
	for rows.Next() {
		sd, err := scanSponsorDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sponsor driver: %w", err)
		}
		drivers = append(drivers, *sd)
	}
	return drivers, rows.Err()
}

// Enroll creates a driver's membership with a zero balance.
func (s *SponsorDriverStore) Enroll(ctx context.Context, sponsorID, driverID int64) (*model.SponsorDriver, error) {
	if err := enroll(ctx, s.db, sponsorID, driverID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.GetByDriver(ctx, driverID)
}

func enroll(ctx context.Context, q Querier, sponsorID, driverID int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO sponsor_drivers (sponsor_id, driver_id, total_points, created_at) VALUES (?, ?, 0, ?)`,
		sponsorID, driverID, at,
	)
	if err != nil {
		return fmt.Errorf("insert sponsor driver: %w", err)
	}
	return nil
}
