package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
)

var (
	// ErrPendingApplication is returned when a driver already has a pending
	// application with the sponsor.
	ErrPendingApplication = errors.New("application already pending")
	// ErrAlreadyEnrolled is returned when the driver already belongs to a sponsor.
	ErrAlreadyEnrolled = errors.New("driver already belongs to a sponsor")
	// ErrApplicationClosed is returned when deciding a non-pending application.
	ErrApplicationClosed = errors.New("application is not pending")
)

type ApplicationStore struct {
	db *sql.DB
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

func scanApplication(scanner interface{ Scan(...any) error }) (*model.DriverApplication, error) {
	var a model.DriverApplication
	var username, email, category, reason sql.NullString
	err := scanner.Scan(
		&a.ID, &a.DriverID, &a.SponsorID, &username, &email, &a.Status,
		&a.LicenseNumber, &a.Vehicle, &category, &reason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Username = username.String
	a.Email = email.String
	if category.Valid {
		a.RejectionCategory = &category.String
	}
	if reason.Valid {
		a.RejectionReason = &reason.String
	}
	return &a, nil
}

const applicationSelect = `SELECT a.id, a.driver_id, a.sponsor_id, u.username, u.email, a.status,
	a.license_number, a.vehicle, a.rejection_category, a.rejection_reason, a.created_at, a.updated_at
	FROM driver_applications a LEFT JOIN users u ON u.id = a.driver_id`

func (s *ApplicationStore) Create(ctx context.Context, driverID, sponsorID int64, licenseNumber, vehicle string) (*model.DriverApplication, error) {
	member, err := LoadMembership(ctx, s.db, driverID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return nil, ErrAlreadyEnrolled
	}

	var pending int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM driver_applications WHERE driver_id = ? AND sponsor_id = ? AND status = 'pending'`,
		driverID, sponsorID,
	).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("count pending applications: %w", err)
	}
	if pending > 0 {
		return nil, ErrPendingApplication
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO driver_applications (driver_id, sponsor_id, license_number, vehicle, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		driverID, sponsorID, licenseNumber, vehicle, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ApplicationStore) GetByID(ctx context.Context, id int64) (*model.DriverApplication, error) {
	return loadApplication(ctx, s.db, id)
}

func loadApplication(ctx context.Context, q Querier, id int64) (*model.DriverApplication, error) {
	row := q.QueryRowContext(ctx, applicationSelect+` WHERE a.id = ?`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

// ListBySponsor returns the sponsor's applications, optionally narrowed to one status.
func (s *ApplicationStore) ListBySponsor(ctx context.Context, sponsorID int64, status model.ApplicationStatus) ([]model.DriverApplication, error) {
	if status == "" {
		return s.list(ctx, ` WHERE a.sponsor_id = ?`, sponsorID)
	}
	return s.list(ctx, ` WHERE a.sponsor_id = ? AND a.status = ?`, sponsorID, string(status))
}

func (s *ApplicationStore) ListByDriver(ctx context.Context, driverID int64) ([]model.DriverApplication, error) {
	return s.list(ctx, ` WHERE a.driver_id = ?`, driverID)
}

func (s *ApplicationStore) list(ctx context.Context, where string, args ...any) ([]model.DriverApplication, error) {
	rows, err := s.db.QueryContext(ctx, applicationSelect+where+` ORDER BY a.created_at DESC, a.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []model.DriverApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// Approve marks the application approved and enrolls the driver with a zero
// balance in one transaction. It returns nil, nil when the application does
// not exist.
func (s *ApplicationStore) Approve(ctx context.Context, id int64) (*model.DriverApplication, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var driverID, sponsorID int64
	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`UPDATE driver_applications SET status = 'approved', updated_at = ?
		WHERE id = ? AND status = 'pending' RETURNING driver_id, sponsor_id`,
		now, id,
	).Scan(&driverID, &sponsorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, closedOrMissing(ctx, tx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("approve application: %w", err)
	}

	member, err := LoadMembership(ctx, tx, driverID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return nil, ErrAlreadyEnrolled
	}
	if err := enroll(ctx, tx, sponsorID, driverID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ApplicationStore) Reject(ctx context.Context, id int64, category, reason string) (*model.DriverApplication, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE driver_applications
		SET status = 'rejected', rejection_category = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		category, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("reject application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, closedOrMissing(ctx, s.db, id)
	}
	return s.GetByID(ctx, id)
}

// closedOrMissing explains a decision that matched no pending row. A missing
// application yields nil, matching the lookup convention.
func closedOrMissing(ctx context.Context, q Querier, id int64) error {
	a, err := loadApplication(ctx, q, id)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	return ErrApplicationClosed
}
