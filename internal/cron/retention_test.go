package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/db/dbtest"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

var jobNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestOutboxRetentionJobDeletesOldPublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	old := jobNow.AddDate(0, 0, -31)
	recent := jobNow.AddDate(0, 0, -5)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	job, err := NewOutboxRetentionJob(testLogger(), db.Wrap(conn), 0)
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return jobNow }

	require.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestNotificationCleanupKeepsUnreadRows(t *testing.T) {
	conn := dbtest.Open(t)
	readAt := jobNow.AddDate(0, 0, -80)
	shopID := uuid.New()
	rows := []models.Notification{
		{RecipientRole: enums.ActorRoleShop, RecipientID: shopID, Type: enums.NotificationTypeOrderAlert, Title: "a", Message: "read and old", ReadAt: &readAt, CreatedAt: jobNow.AddDate(0, 0, -100)},
		{RecipientRole: enums.ActorRoleShop, RecipientID: shopID, Type: enums.NotificationTypeOrderAlert, Title: "b", Message: "unread and old", CreatedAt: jobNow.AddDate(0, 0, -100)},
		{RecipientRole: enums.ActorRoleShop, RecipientID: shopID, Type: enums.NotificationTypeOrderAlert, Title: "c", Message: "read and recent", ReadAt: &readAt, CreatedAt: jobNow.AddDate(0, 0, -85)},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	job, err := NewNotificationCleanupJob(testLogger(), db.Wrap(conn), notifications.NewRepository(conn), 0)
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return jobNow }
	require.NoError(t, job.Run(context.Background()))

	var titles []string
	require.NoError(t, conn.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	require.Equal(t, []string{"b", "c"}, titles)
}

type failingPurge struct{}

func (failingPurge) DeleteReadBefore(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestRetentionJobPropagatesError(t *testing.T) {
	job, err := NewNotificationCleanupJob(testLogger(), db.Wrap(dbtest.Open(t)), failingPurge{}, 0)
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "notification-cleanup")
}

func TestRetentionJobValidation(t *testing.T) {
	_, err := NewNotificationCleanupJob(testLogger(), db.Wrap(dbtest.Open(t)), nil, 0)
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(nil, nil, 0)
	require.Error(t, err)
}
