package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDailyPoints applies when a sponsor never set daily_points_awarded.
const DefaultDailyPoints = 10

// DefaultPointValue is the dollar value of one point.
var DefaultPointValue = decimal.RequireFromString("0.01")

type Sponsor struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"company_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type SponsorPolicy struct {
	SponsorID           int64           `json:"sponsor_id"`
	CompanyName         string          `json:"company_name,omitempty"`
	AllowNegativePoints bool            `json:"allow_negative_points"`
	DailyPointsAwarded  int64           `json:"daily_points_awarded"`
	PointValue          decimal.Decimal `json:"point_value"`
	ExpirationMonths    int             `json:"expiration_months"`
	AutoExpireEnabled   bool            `json:"auto_expire_enabled"`
	UpdatedBy           *int64          `json:"updated_by,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DefaultPolicy is the policy of a sponsor with no sponsor_policies row.
func DefaultPolicy(sponsorID int64) SponsorPolicy {
	return SponsorPolicy{
		SponsorID:          sponsorID,
		DailyPointsAwarded: DefaultDailyPoints,
		PointValue:         DefaultPointValue,
	}
}
