package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

const (
	JobAccrual      = "accrual"
	JobExpiration   = "expiration"
	JobTokenCleanup = "token_cleanup"
)

func AccrualJob(e *points.Engine, schedule string) Job {
	return Job{
		Name:     JobAccrual,
		Schedule: schedule,
		Run: func(ctx context.Context) (int, error) {
			report, err := e.RunDailyAccrual(ctx)
			if err != nil {
				return 0, err
			}
			return len(report.Failures), nil
		},
	}
}

// ExpirationJob expires points for every sponsor with auto-expiration on,
// acting as the system.
func ExpirationJob(e *points.Engine, schedule string) Job {
	return Job{
		Name:     JobExpiration,
		Schedule: schedule,
		Run: func(ctx context.Context) (int, error) {
			report, err := e.RunExpiration(ctx, points.System{}, 0)
			if err != nil {
				return 0, err
			}
			return len(report.Failures), nil
		},
	}
}

func TokenCleanupJob(tokens *store.RevokedTokenStore, schedule string) Job {
	return Job{
		Name:     JobTokenCleanup,
		Schedule: schedule,
		Run: func(ctx context.Context) (int, error) {
			_, err := tokens.DeleteExpired(ctx, time.Now().UTC())
			return 0, err
		},
	}
}

// Schedules holds the cron expressions of the standard jobs. An empty
// expression leaves the job for manual runs.
type Schedules struct {
	Accrual      string
	Expiration   string
	TokenCleanup string
}

// StandardJobs are the jobs every deployment runs.
func StandardJobs(e *points.Engine, tokens *store.RevokedTokenStore, s Schedules) []Job {
	return []Job{
		AccrualJob(e, s.Accrual),
		ExpirationJob(e, s.Expiration),
		TokenCleanupJob(tokens, s.TokenCleanup),
	}
}
