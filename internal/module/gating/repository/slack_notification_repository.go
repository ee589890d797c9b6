package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database"
	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	slackQueueKey          = "slack_notifications:queue"
	slackMaxRetries        = 3
	slackRetryDelay        = 2 * time.Second
	slackLockTTL           = 15 * time.Second
	slackLockRetryInterval = 3 * time.Second
	slackLockRetryCount    = 3
)

type SlackNotificationRepository interface {
	InsertNotification(ctx context.Context, notification schema.SlackNotifications) error
	ProcessQueue() error
	ProcessTopNotifications() error
	Stop()
	DeleteOldData() error
}

type slackNotificationRepository struct {
	db          *database.Database
	redisClient *shared.RedisClient
	logger      zerolog.Logger
	taskQueue   chan func() error
	quit        chan bool
}

func NewSlackNotificationRepository(lc fx.Lifecycle, db *database.Database, redisClient *shared.RedisClient, logger zerolog.Logger) SlackNotificationRepository {
	repo := &slackNotificationRepository{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		taskQueue:   make(chan func() error, 1000),
		quit:        make(chan bool),
	}

	workerCount := 8
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for i := 0; i < workerCount; i++ {
				go repo.worker()
			}
			return nil
		},
		OnStop: func(context.Context) error {
			close(repo.quit)
			return nil
		},
	})

	return repo
}

func (r *slackNotificationRepository) worker() {
	for {
		select {
		case task := <-r.taskQueue:
			if err := task(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to execute task")
			}
		case <-r.quit:
			return
		}
	}
}

func (r *slackNotificationRepository) Stop() {
	close(r.quit)
}

func (r *slackNotificationRepository) InsertNotification(ctx context.Context, notification schema.SlackNotifications) error {
	task := func() error {
		data, err := json.Marshal(notification)
		if err != nil {
			return err
		}

		if err := r.redisClient.Client.RPush(ctx, slackQueueKey, data).Err(); err != nil {
			return err
		}

		return nil
	}

	select {
	case r.taskQueue <- task:
		return nil
	default:
		r.logger.Debug().Msgf("InsertNotification task queue is full")
		return nil
	}
}

func (r *slackNotificationRepository) ProcessQueue() error {
	lockKey := "lock:slack_notifications_queue"

	for attempt := 1; attempt <= slackLockRetryCount; attempt++ {
		ok := r.redisClient.AcquireLock(lockKey, slackLockTTL)
		if ok {
			defer r.redisClient.ReleaseLock(lockKey)
			return r.processQueueWithTransaction()
		}
		time.Sleep(slackLockRetryInterval)
	}

	return nil
}

func (r *slackNotificationRepository) processQueueWithTransaction() error {
	notificationsData, err := r.redisClient.Client.LRange(context.Background(), slackQueueKey, 0, -1).Result()
	if err != nil {
		return err
	}
	r.logger.Debug().Msgf("slack_notifications processQueueWithTransaction len: %d", len(notificationsData))

	if len(notificationsData) == 0 {
		return nil
	}
	defer r.redisClient.Client.Del(context.Background(), slackQueueKey).Err()

	uniqueNotifications := make(map[string]schema.SlackNotifications)
	for _, notificationData := range notificationsData {
		var notification schema.SlackNotifications
		if err := json.Unmarshal([]byte(notificationData), &notification); err != nil {
			return err
		}
		key := fmt.Sprintf("%s_%s_%s", notification.ChainCode, notification.Target, notification.DayDate)
		if existing, found := uniqueNotifications[key]; found {
			notification.Counter += existing.Counter
		}
		uniqueNotifications[key] = notification
	}

	var notifications []schema.SlackNotifications
	for _, notification := range uniqueNotifications {
		notifications = append(notifications, notification)
	}

	for attempt := 1; attempt <= slackMaxRetries; attempt++ {
		err = r.insertNotificationsTransaction(notifications)
		if err == nil {
			break
		}
		if err != nil && err.Error() == "ERROR: deadlock detected (SQLSTATE 40P01)" {
			r.logger.Error().Err(err).Msgf("Deadlock detected, retrying (%d/%d)", attempt, slackMaxRetries)
			time.Sleep(slackRetryDelay)
			continue
		}
		r.logger.Error().Err(err).Msg("Failed to process queue")
		return err
	}

	return nil
}

func (r *slackNotificationRepository) insertNotificationsTransaction(notifications []schema.SlackNotifications) error {
	batchSize := 1000
	r.logger.Debug().Msgf("slack_notifications insertNotificationsTransaction len: %d", len(notifications))

	for i := 0; i < len(notifications); i += batchSize {
		end := i + batchSize
		if end > len(notifications) {
			end = len(notifications)
		}
		batch := notifications[i:end]

		tx := r.db.DB.Begin()
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chain_code"}, {Name: "target"}, {Name: "day_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"counter":    gorm.Expr("CASE WHEN slack_notifications.deleted_at IS NOT NULL THEN EXCLUDED.counter ELSE slack_notifications.counter + EXCLUDED.counter END"),
				"deleted_at": gorm.Expr("NULL"),
				"date":       gorm.Expr(`EXCLUDED."date"`),
			}),
		}).Create(&batch).Error

		if err != nil {
			tx.Rollback()
			r.logger.Error().Err(err).Msg("Failed to insert or update slack notifications")
			return err
		}
		if err := tx.Commit().Error; err != nil {
			r.logger.Error().Err(err).Msg("Failed to commit transaction")
			return err
		}
	}
	return nil
}

// ProcessTopNotifications lifts the throttle for today's ten noisiest targets
// so a contract that failed transiently gets probed again before its full
// throttle window elapses.
func (r *slackNotificationRepository) ProcessTopNotifications() error {
	var topNotifications []schema.SlackNotifications
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	timestamp := midnight.Unix()
	err := r.db.DB.Where("date > ?", timestamp).Order("counter DESC").Limit(10).Find(&topNotifications).Error
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to query top notifications")
		return err
	}

	r.logger.Debug().Msgf("ProcessTopNotifications timestamp: %d len: %d", timestamp, len(topNotifications))

	var keysToDelete []string
	for _, notification := range topNotifications {
		id := notification.ChainCode + "_" + notification.Target
		throttleKey := shared.ContractThrottlePrefix + id
		throttleCountKey := shared.ContractThrottleCountPrefix + id

		keysToDelete = append(keysToDelete, throttleKey, throttleCountKey, throttleCountKey+":alerted")
	}

	if err := r.redisClient.DeleteKeyBatch(keysToDelete); err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete keys in batch")
	}

	for _, notification := range topNotifications {
		if err := r.db.DB.Where("chain_code = ? AND target = ? AND day_date = ?", notification.ChainCode, notification.Target, notification.DayDate).Delete(&schema.SlackNotifications{}).Error; err != nil {
			r.logger.Error().Err(err).Msgf("Failed to delete notification record: %s", notification.Target)
		}
	}

	return nil
}

func (r *slackNotificationRepository) DeleteOldData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	threeDaysAgo := time.Now().AddDate(0, 0, -3)

	if err := r.db.DB.WithContext(ctx).Where("created_at < ?", threeDaysAgo).Unscoped().Delete(&schema.VerificationLog{}).Error; err != nil {
		return fmt.Errorf("failed to delete old verification logs: %v", err)
	}

	if err := r.db.DB.WithContext(ctx).Where("created_at < ?", threeDaysAgo).Unscoped().Delete(&schema.SlackNotifications{}).Error; err != nil {
		return fmt.Errorf("failed to delete old slack notifications: %v", err)
	}

	return nil
}
