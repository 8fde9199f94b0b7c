package model

import "time"

// CategoryPointChange is the only audit_log category written by the ledger.
const CategoryPointChange = "point_change"

// SystemActorID marks ledger entries written by scheduled jobs.
const SystemActorID int64 = 0

// SponsorDriver is a driver's membership under a sponsor. TotalPoints is a
// cache of the sum of the pair's ledger entries.
type SponsorDriver struct {
	SponsorID   int64     `json:"sponsor_id"`
	DriverID    int64     `json:"driver_id"`
	Username    string    `json:"username,omitempty"`
	TotalPoints int64     `json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
}

// LedgerEntry is one immutable signed point change.
type LedgerEntry struct {
	ID            int64     `json:"id"`
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"date"`
	SponsorID     int64     `json:"sponsor_id"`
	DriverID      int64     `json:"driver_id"`
	PointsChanged int64     `json:"points_changed"`
	Reason        string    `json:"reason"`
	ChangedBy     int64     `json:"changed_by_user_id"`
}

// PointStatement is a driver's current balance with its ledger history.
type PointStatement struct {
	SponsorID     int64         `json:"sponsor_id"`
	DriverID      int64         `json:"driver_id"`
	CurrentPoints int64         `json:"current_points"`
	History       []LedgerEntry `json:"history"`
}

// MonthlySummary groups a driver's ledger entries by calendar month.
type MonthlySummary struct {
	Month            string `json:"month"`
	MonthName        string `json:"month_name"`
	PointsEarned     int64  `json:"points_earned"`
	PointsDeducted   int64  `json:"points_deducted"`
	NetChange        int64  `json:"net_change"`
	TransactionCount int    `json:"transaction_count"`
}

// BalanceDrift reports a pair whose cached balance disagrees with its ledger.
type BalanceDrift struct {
	SponsorID   int64 `json:"sponsor_id"`
	DriverID    int64 `json:"driver_id"`
	TotalPoints int64 `json:"total_points"`
	LedgerSum   int64 `json:"ledger_sum"`
}
