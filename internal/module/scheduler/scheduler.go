package scheduler

import (
	"context"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/module/gating/repository"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/rs/zerolog"
)

// Scheduler struct to hold repositories and logger
type Scheduler struct {
	VerificationLogRepository   repository.VerificationLogRepository
	SlackNotificationRepository repository.SlackNotificationRepository
	FollowerService             service.FollowerService
	redisClient                 *shared.RedisClient
	Logger                      zerolog.Logger
}

// NewScheduler creates a new Scheduler
func NewScheduler(verificationLogRepository repository.VerificationLogRepository, slackNotificationRepository repository.SlackNotificationRepository, followerService service.FollowerService, redisClient *shared.RedisClient, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		VerificationLogRepository:   verificationLogRepository,
		SlackNotificationRepository: slackNotificationRepository,
		FollowerService:             followerService,
		redisClient:                 redisClient,
		Logger:                      logger,
	}
}

func (s *Scheduler) StartProcessVerificationLogs() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "sync_process_verification_logs_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if err := s.VerificationLogRepository.ProcessQueue(); err != nil {
				s.Logger.Error().Err(err).Msg("failed to flush verification log queue")
			} else {
				s.Logger.Info().Msg("flushed verification log queue")
			}
			s.redisClient.Client.Del(context.Background(), "verification_logs:queue").Err()
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

func (s *Scheduler) StartProcessSlackNotifications() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "sync_process_slack_notifications_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if err := s.SlackNotificationRepository.ProcessQueue(); err != nil {
				s.Logger.Error().Err(err).Msg("failed to flush slack notification queue")
			} else {
				s.Logger.Info().Msg("flushed slack notification queue")
			}
			s.redisClient.Client.Del(context.Background(), "slack_notifications:queue").Err()
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

// unthrottle the ten noisiest targets every minute
func (s *Scheduler) StartProcessTopNotifications() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "sync_process_top_notifications_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if err := s.SlackNotificationRepository.ProcessTopNotifications(); err != nil {
				s.Logger.Error().Err(err).Msg("failed to process top notifications")
			} else {
				s.Logger.Info().Msg("processed top notifications")
			}
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

func (s *Scheduler) StartProcessDeleteOldData() {
	ticker := time.NewTicker(8 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "sync_delete_old_data_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if err := s.SlackNotificationRepository.DeleteOldData(); err != nil {
				s.Logger.Error().Err(err).Msg("failed to delete old data")
			} else {
				s.Logger.Info().Msg("deleted old data")
			}
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

// follow watches live in process memory, so no distributed lock applies
func (s *Scheduler) StartSweepFollowWatches() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		removed := s.FollowerService.SweepWatches(1 * time.Hour)
		if removed > 0 {
			s.Logger.Info().Msgf("swept %d finished follow watches", removed)
		}
	}
}
