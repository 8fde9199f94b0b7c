package points

import (
	"context"
	"database/sql"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

// AccrualReason is the ledger reason of scheduled daily credits.
const AccrualReason = "Daily recurring points"

// JobFailure is one row a batch job could not process.
type JobFailure struct {
	SponsorID int64  `json:"sponsor_id"`
	DriverID  int64  `json:"driver_id"`
	Error     string `json:"error"`
}

type AccrualReport struct {
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Credited      int          `json:"credited"`
	Skipped       int          `json:"skipped"`
	PointsAwarded int64        `json:"points_awarded"`
	Failures      []JobFailure `json:"failures"`
}

// sponsorPolicies loads every sponsor's policy keyed by sponsor id.
func (e *Engine) sponsorPolicies(ctx context.Context) (map[int64]model.SponsorPolicy, error) {
	list, err := store.NewPolicyStore(e.db).List(ctx)
	if err != nil {
		return nil, storeErr("load policies", err)
	}
	policies := make(map[int64]model.SponsorPolicy, len(list))
	for _, p := range list {
		policies[p.SponsorID] = p
	}
	return policies, nil
}

func policyFor(policies map[int64]model.SponsorPolicy, sponsorID int64) model.SponsorPolicy {
	if p, ok := policies[sponsorID]; ok {
		return p
	}
	return model.DefaultPolicy(sponsorID)
}

// RunDailyAccrual credits every enrolled driver with their sponsor's daily
// amount. Each driver is committed on its own; a failing driver is recorded
// in the report and the batch moves on. Only a failure to load the batch or
// a cancelled context returns an error, and rows committed before the
// cancellation stay committed.
func (e *Engine) RunDailyAccrual(ctx context.Context) (*AccrualReport, error) {
	report := &AccrualReport{StartedAt: e.timestamp(), Failures: []JobFailure{}}

	drivers, err := store.NewSponsorDriverStore(e.db).ListAll(ctx)
	if err != nil {
		return nil, storeErr("daily accrual", err)
	}
	policies, err := e.sponsorPolicies(ctx)
	if err != nil {
		return nil, err
	}

	for _, sd := range drivers {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = e.timestamp()
			return report, storeErr("daily accrual interrupted", err)
		}

		amount := policyFor(policies, sd.SponsorID).DailyPointsAwarded
		if amount <= 0 {
			report.Skipped++
			continue
		}

		var balance int64
		err := e.inTx(ctx, "daily accrual", func(tx *sql.Tx) error {
			var err error
			balance, err = recordChange(ctx, tx, change{
				SponsorID: sd.SponsorID,
				DriverID:  sd.DriverID,
				Delta:     amount,
				Reason:    AccrualReason,
				ActorID:   model.SystemActorID,
			}, e.timestamp())
			return err
		})
		if err != nil {
			e.logger.Warn("daily accrual failed for driver",
				"sponsor_id", sd.SponsorID, "driver_id", sd.DriverID, "error", err)
			report.Failures = append(report.Failures, JobFailure{
				SponsorID: sd.SponsorID, DriverID: sd.DriverID, Error: err.Error(),
			})
			continue
		}

		report.Credited++
		report.PointsAwarded += amount
		e.emit(ctx, Event{Type: EventPointsChanged, SponsorID: sd.SponsorID, DriverID: sd.DriverID,
			Delta: amount, Balance: balance, Reason: AccrualReason, At: e.timestamp()})
	}

	report.FinishedAt = e.timestamp()
	e.logger.Info("daily accrual complete", "credited", report.Credited, "skipped", report.Skipped,
		"failed", len(report.Failures), "points_awarded", report.PointsAwarded)
	return report, nil
}
