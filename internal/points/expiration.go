package points

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

type ExpiredPoints struct {
	SponsorID     int64 `json:"sponsor_id"`
	DriverID      int64 `json:"driver_id"`
	PointsExpired int64 `json:"points_expired"`
}

type ExpirationReport struct {
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	SponsorsProcessed int             `json:"sponsors_processed"`
	Expired           []ExpiredPoints `json:"details"`
	Failures          []JobFailure    `json:"failures"`
}

// ExpiredCount is the number of drivers that lost points.
func (r *ExpirationReport) ExpiredCount() int { return len(r.Expired) }

// expirationCutoff counts a month as 30 days.
func expirationCutoff(now time.Time, months int) time.Time {
	return now.AddDate(0, 0, -30*months)
}

func expirationReason(months int) string {
	return fmt.Sprintf("Automatic expiration - points older than %d months", months)
}

// RunExpiration expires aged credits for every sponsor with automatic
// expiration enabled, or only for sponsorID when it is non-zero.
//
// The amount expired for a driver is the sum of their credits older than
// the cutoff, capped at the current balance. Entries are not marked as
// consumed, so a later run recomputes from the full history and relies on
// the balance cap to avoid expiring the same credits twice.
func (e *Engine) RunExpiration(ctx context.Context, c Caller, sponsorID int64) (*ExpirationReport, error) {
	if err := requireOperator(c); err != nil {
		return nil, err
	}
	report := &ExpirationReport{
		StartedAt: e.timestamp(),
		Expired:   []ExpiredPoints{},
		Failures:  []JobFailure{},
	}

	policies, err := store.NewPolicyStore(e.db).List(ctx)
	if err != nil {
		return nil, storeErr("expiration", err)
	}

	for _, p := range policies {
		if sponsorID != 0 && p.SponsorID != sponsorID {
			continue
		}
		if !p.AutoExpireEnabled || p.ExpirationMonths <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			report.FinishedAt = e.timestamp()
			return report, storeErr("expiration interrupted", err)
		}
		report.SponsorsProcessed++
		if err := e.expireSponsor(ctx, c, p, report); err != nil {
			return report, err
		}
	}

	report.FinishedAt = e.timestamp()
	e.logger.Info("point expiration complete", "sponsors", report.SponsorsProcessed,
		"expired", len(report.Expired), "failed", len(report.Failures))
	return report, nil
}

type expiryCandidate struct {
	DriverID int64
	Expired  int64
}

func (e *Engine) expireSponsor(ctx context.Context, c Caller, p model.SponsorPolicy, report *ExpirationReport) error {
	cutoff := expirationCutoff(e.timestamp(), p.ExpirationMonths)

	rows, err := e.db.QueryContext(ctx,
		`SELECT sd.driver_id, SUM(a.points_changed) AS expired
		FROM sponsor_drivers sd
		JOIN audit_log a ON a.sponsor_id = sd.sponsor_id AND a.driver_id = sd.driver_id
		WHERE sd.sponsor_id = ? AND sd.total_points > 0
			AND a.points_changed > 0 AND a.created_at < ?
		GROUP BY sd.driver_id
		HAVING expired > 0
		ORDER BY sd.driver_id`,
		p.SponsorID, cutoff,
	)
	if err != nil {
		return storeErr("find expired points", err)
	}
	var candidates []expiryCandidate
	for rows.Next() {
		var ec expiryCandidate
		if err := rows.Scan(&ec.DriverID, &ec.Expired); err != nil {
			rows.Close()
			return storeErr("scan expired points", err)
		}
		candidates = append(candidates, ec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("find expired points", err)
	}

	reason := expirationReason(p.ExpirationMonths)
	for _, ec := range candidates {
		var deducted, balance int64
		err := e.inTx(ctx, "expire points", func(tx *sql.Tx) error {
			m, err := store.LoadMembership(ctx, tx, ec.DriverID)
			if err != nil {
				return err
			}
			if m == nil || m.SponsorID != p.SponsorID || m.TotalPoints <= 0 {
				return nil
			}
			deducted = min(ec.Expired, m.TotalPoints)
			balance, err = recordChange(ctx, tx, change{
				SponsorID: p.SponsorID,
				DriverID:  ec.DriverID,
				Delta:     -deducted,
				Reason:    reason,
				ActorID:   c.ActorID(),
				Floor:     floor(0),
			}, e.timestamp())
			return err
		})
		if err != nil {
			e.logger.Warn("point expiration failed for driver",
				"sponsor_id", p.SponsorID, "driver_id", ec.DriverID, "error", err)
			report.Failures = append(report.Failures, JobFailure{
				SponsorID: p.SponsorID, DriverID: ec.DriverID, Error: err.Error(),
			})
			continue
		}
		if deducted == 0 {
			continue
		}
		report.Expired = append(report.Expired, ExpiredPoints{
			SponsorID: p.SponsorID, DriverID: ec.DriverID, PointsExpired: deducted,
		})
		e.emit(ctx, Event{Type: EventPointsChanged, SponsorID: p.SponsorID, DriverID: ec.DriverID,
			Delta: -deducted, Balance: balance, Reason: reason, At: e.timestamp()})
	}
	return nil
}
