package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/roadpoints/internal/model"
)

type PolicyStore struct {
	db *sql.DB
}

func NewPolicyStore(db *sql.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

func scanPolicy(scanner interface{ Scan(...any) error }) (*model.SponsorPolicy, error) {
	var (
		p         model.SponsorPolicy
		company   sql.NullString
		allowNeg  sql.NullBool
		daily     sql.NullInt64
		value     decimal.NullDecimal
		months    sql.NullInt64
		autoExp   sql.NullBool
		updatedBy sql.NullInt64
		updatedAt sql.NullTime
	)
	err := scanner.Scan(&p.SponsorID, &company, &allowNeg, &daily, &value, &months, &autoExp, &updatedBy, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.CompanyName = company.String
	p.AllowNegativePoints = allowNeg.Bool
	p.DailyPointsAwarded = model.DefaultDailyPoints
	if daily.Valid {
		p.DailyPointsAwarded = daily.Int64
	}
	p.PointValue = model.DefaultPointValue
	if value.Valid && value.Decimal.IsPositive() {
		p.PointValue = value.Decimal
	}
	p.ExpirationMonths = int(months.Int64)
	p.AutoExpireEnabled = autoExp.Bool
	p.UpdatedBy = int64Ptr(updatedBy)
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

// Policies are read through sponsors so a sponsor with no policy row
// still yields its defaults.
const policySelect = `SELECT s.id, s.company_name, p.allow_negative_points, p.daily_points_awarded,
	p.point_value, p.expiration_months, p.auto_expire_enabled, p.updated_by, p.updated_at
	FROM sponsors s LEFT JOIN sponsor_policies p ON p.sponsor_id = s.id`

// LoadPolicy returns the sponsor's policy with defaults filled in. A sponsor
// that does not exist still gets the default policy.
func LoadPolicy(ctx context.Context, q Querier, sponsorID int64) (model.SponsorPolicy, error) {
	row := q.QueryRowContext(ctx, policySelect+` WHERE s.id = ?`, sponsorID)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPolicy(sponsorID), nil
	}
	if err != nil {
		return model.SponsorPolicy{}, fmt.Errorf("get sponsor policy: %w", err)
	}
	return *p, nil
}

func (s *PolicyStore) Get(ctx context.Context, sponsorID int64) (model.SponsorPolicy, error) {
	return LoadPolicy(ctx, s.db, sponsorID)
}

// List returns the policy of every sponsor.
func (s *PolicyStore) List(ctx context.Context) ([]model.SponsorPolicy, error) {
	rows, err := s.db.QueryContext(ctx, policySelect+` ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("list sponsor policies: %w", err)
	}
	defer rows.Close()

	var policies []model.SponsorPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sponsor policy: %w", err)
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// SponsorSettings holds the sponsor-editable policy fields. Nil fields are
// left unchanged.
type SponsorSettings struct {
	AllowNegativePoints *bool
	DailyPointsAwarded  *int64
	PointValue          *decimal.Decimal
}

func (s *PolicyStore) SetSponsorSettings(ctx context.Context, sponsorID int64, in SponsorSettings, updatedBy int64) (model.SponsorPolicy, error) {
	cur, err := s.Get(ctx, sponsorID)
	if err != nil {
		return model.SponsorPolicy{}, err
	}
	if in.AllowNegativePoints != nil {
		cur.AllowNegativePoints = *in.AllowNegativePoints
	}
	if in.DailyPointsAwarded != nil {
		cur.DailyPointsAwarded = *in.DailyPointsAwarded
	}
	if in.PointValue != nil {
		cur.PointValue = *in.PointValue
	}
	if err := s.upsert(ctx, cur, updatedBy); err != nil {
		return model.SponsorPolicy{}, err
	}
	return s.Get(ctx, sponsorID)
}

func (s *PolicyStore) SetExpiration(ctx context.Context, sponsorID int64, months int, enabled bool, updatedBy int64) (model.SponsorPolicy, error) {
	cur, err := s.Get(ctx, sponsorID)
	if err != nil {
		return model.SponsorPolicy{}, err
	}
	cur.ExpirationMonths = months
	cur.AutoExpireEnabled = enabled
	if err := s.upsert(ctx, cur, updatedBy); err != nil {
		return model.SponsorPolicy{}, err
	}
	return s.Get(ctx, sponsorID)
}

func (s *PolicyStore) upsert(ctx context.Context, p model.SponsorPolicy, updatedBy int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sponsor_policies
			(sponsor_id, allow_negative_points, daily_points_awarded, point_value,
			 expiration_months, auto_expire_enabled, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sponsor_id) DO UPDATE SET
			allow_negative_points = excluded.allow_negative_points,
			daily_points_awarded = excluded.daily_points_awarded,
			point_value = excluded.point_value,
			expiration_months = excluded.expiration_months,
			auto_expire_enabled = excluded.auto_expire_enabled,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		p.SponsorID, boolInt(p.AllowNegativePoints), p.DailyPointsAwarded, p.PointValue.String(),
		p.ExpirationMonths, boolInt(p.AutoExpireEnabled), updatedBy, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert sponsor policy: %w", err)
	}
	return nil
}
