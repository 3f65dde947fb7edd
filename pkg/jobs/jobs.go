// Package jobs holds the maintenance sweeps and the cron scheduler that runs them.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
)

const defaultJobTimeout = 2 * time.Minute

// SubscriptionSweeper expires lapsed subscriptions.
type SubscriptionSweeper interface {
	ExpireSubscriptions(ctx context.Context) (entitlement.SweepResult, error)
}

// StreakDecayer zeroes stale streaks.
type StreakDecayer interface {
	DecayStreaks(ctx context.Context, today models.Date) (int, error)
	Today() models.Date
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	subscriptions SubscriptionSweeper
	streaks       StreakDecayer
	logger        *slog.Logger
	timeout       time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(subscriptions SubscriptionSweeper, streaks StreakDecayer, logger *slog.Logger) *Jobs {
	return &Jobs{
		subscriptions: subscriptions,
		streaks:       streaks,
		logger:        logger,
		timeout:       defaultJobTimeout,
	}
}

// ExpireSubscriptions marks canceled subscriptions past end_date as expired.
func (j *Jobs) ExpireSubscriptions() {
	j.logger.Info("starting subscription expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	res, err := j.subscriptions.ExpireSubscriptions(ctx)
	if err != nil {
		j.logger.Error("failed to expire subscriptions", "error", err)
		return
	}

	j.logger.Info("subscription expiry job finished", "expired", res.Expired, "trials_converted", res.TrialsConverted)
}

// DecayStreaks resets current streaks that missed yesterday.
func (j *Jobs) DecayStreaks() {
	j.logger.Info("starting streak decay job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	today := j.streaks.Today()
	n, err := j.streaks.DecayStreaks(ctx, today)
	if err != nil {
		j.logger.Error("failed to decay streaks", "error", err)
		return
	}

	j.logger.Info("streak decay job finished", "today", today, "decayed", n)
}
