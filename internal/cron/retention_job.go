package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	notificationRetentionDays = 90
)

// sweep deletes one table's rows older than cutoff and reports the count.
type sweep struct {
	label string
	run   func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// retentionJob runs its sweeps in order inside one transaction, so a failed
// sweep rolls back the ones before it.
type retentionJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	days   int
	sweeps []sweep
	now    func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, days, fallbackDays int, sweeps ...sweep) (*retentionJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if db == nil {
		return nil, errors.New("db runner required")
	}
	if days <= 0 {
		days = fallbackDays
	}
	return &retentionJob{name: name, logg: logg, db: db, days: days, sweeps: sweeps, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.days)
}

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	deleted := make(map[string]any, len(j.sweeps)+2)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, s := range j.sweeps {
			n, err := s.run(ctx, tx, cutoff)
			if err != nil {
				return fmt.Errorf("%s: %w", s.label, err)
			}
			deleted[s.label+"_deleted"] = n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	deleted["cutoff"] = cutoff
	deleted["retention_days"] = j.days
	j.logg.Info(j.logg.WithFields(ctx, deleted), "retention sweep complete")
	return nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	DLQ        dlqRetentionRepo
	Retention  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob drops published outbox rows past the window, and
// dead letters too when DLQ is set.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	sweeps := []sweep{{
		label: "published",
		run: func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return params.Repository.DeletePublishedBefore(tx, cutoff)
		},
	}}
	if params.DLQ != nil {
		sweeps = append(sweeps, sweep{
			label: "dead_letters",
			run: func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
				return params.DLQ.DeleteFailedBefore(tx, cutoff)
			},
		})
	}
	return newRetentionJob("outbox-retention", params.Logger, params.DB, params.Retention, outboxRetentionDays, sweeps...)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob drops notifications past the window, read or unread.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", params.Logger, params.DB, params.Retention, notificationRetentionDays,
		sweep{label: "notifications", run: params.Repository.DeleteOlderThan})
}
