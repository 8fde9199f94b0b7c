package points

import (
	"context"
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/roadpoints/internal/store"
)

const (
	minReasonLen = 3
	maxReasonLen = 255
)

func validateAdjustment(amount int64, reason string) (string, error) {
	if amount <= 0 {
		return "", invalid("points must be greater than zero")
	}
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < minReasonLen || n > maxReasonLen {
		return "", invalid("reason must be %d to %d characters", minReasonLen, maxReasonLen)
	}
	return reason, nil
}

// AddPoints credits one of the sponsor's drivers.
func (e *Engine) AddPoints(ctx context.Context, c Caller, driverID, amount int64, reason string) (*BalanceResult, error) {
	return e.adjust(ctx, c, driverID, amount, 1, reason)
}

// DeductPoints debits one of the sponsor's drivers. Unless the sponsor allows
// negative balances, a debit larger than the balance fails and writes
// nothing.
func (e *Engine) DeductPoints(ctx context.Context, c Caller, driverID, amount int64, reason string) (*BalanceResult, error) {
	return e.adjust(ctx, c, driverID, amount, -1, reason)
}

func (e *Engine) adjust(ctx context.Context, c Caller, driverID, amount, sign int64, reason string) (*BalanceResult, error) {
	s, err := requireSponsor(c)
	if err != nil {
		return nil, err
	}
	reason, err = validateAdjustment(amount, reason)
	if err != nil {
		return nil, err
	}
	delta := sign * amount

	res := BalanceResult{SponsorID: s.SponsorID, DriverID: driverID, Delta: delta}
	err = e.inTx(ctx, "adjust points", func(tx *sql.Tx) error {
		m, err := store.LoadMembership(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if m == nil {
			return notFound("driver %d has no sponsor", driverID)
		}
		if m.SponsorID != s.SponsorID {
			return forbidden("driver %d belongs to another sponsor", driverID)
		}

		ch := change{
			SponsorID: s.SponsorID,
			DriverID:  driverID,
			Delta:     delta,
			Reason:    reason,
			ActorID:   s.ActorID(),
		}
		if delta < 0 {
			policy, err := store.LoadPolicy(ctx, tx, s.SponsorID)
			if err != nil {
				return err
			}
			if !policy.AllowNegativePoints {
				ch.Floor = floor(0)
			}
		}
		res.Balance, err = recordChange(ctx, tx, ch, e.timestamp())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("points adjusted", "sponsor_id", s.SponsorID, "driver_id", driverID,
		"delta", delta, "balance", res.Balance, "actor", s.UserID)
	e.emit(ctx, Event{Type: EventPointsChanged, SponsorID: s.SponsorID, DriverID: driverID,
		Delta: delta, Balance: res.Balance, Reason: reason, At: e.timestamp()})
	return &res, nil
}
