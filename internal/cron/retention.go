package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// purger deletes rows older than cutoff inside tx and reports how many went.
type purger func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// retentionJob keeps a table to a rolling window of days.
type retentionJob struct {
	name  string
	days  int
	purge purger
	db    txRunner
	logg  *logger.Logger
	now   func() time.Time
}

func newRetentionJob(name string, days, defaultDays int, purge purger, db txRunner, logg *logger.Logger) (*retentionJob, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case db == nil:
		return nil, errors.New("db runner required")
	}
	if days <= 0 {
		days = defaultDays
	}
	return &retentionJob{name: name, days: days, purge: purge, db: db, logg: logg, now: time.Now}, nil
}

// NewOutboxRetentionJob drops published outbox rows after retentionDays
// (default 30). Unpublished rows are kept regardless of age.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, retentionDays int) (Job, error) {
	purge := func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return outbox.NewRepository(tx).DeletePublishedBefore(ctx, tx, cutoff)
	}
	return newRetentionJob("outbox-retention", retentionDays, 30, purge, db, logg)
}

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob drops read notifications after retentionDays
// (default 90). Unread rows are never deleted.
func NewNotificationCleanupJob(logg *logger.Logger, db txRunner, repo readNotificationPurger, retentionDays int) (Job, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", retentionDays, 90, repo.DeleteReadBefore, db, logg)
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"job":            j.name,
		"cutoff":         cutoff.Format(time.RFC3339),
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "retention purge finished")
	return nil
}
