package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database"
	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	lockCacheKeyPrefix = "locks:"
	lockCacheDuration  = 10 * time.Minute
)

type LockRepository interface {
	CreateLock(lock *schema.Lock) error
	GetLockByID(id string) (*schema.Lock, error)
	GetLocksByCommunity(communityID string) ([]schema.Lock, error)
	UpdateLock(lock *schema.Lock) error
	DeleteLock(id string) error
	RefreshLockCache(ids []string) error
	CheckContractReferenced(chainCode string, address string) (bool, error)
}

type lockRepository struct {
	db          *database.Database
	logger      zerolog.Logger
	redisClient *shared.RedisClient
}

func NewLockRepository(db *database.Database, logger zerolog.Logger, redisClient *shared.RedisClient) LockRepository {
	return &lockRepository{
		db:          db,
		logger:      logger,
		redisClient: redisClient,
	}
}

func (r *lockRepository) CreateLock(lock *schema.Lock) error {
	if err := lock.Config.Validate(); err != nil {
		return err
	}
	if lock.ID == "" {
		lock.ID = uuid.NewString()
	}

	if err := r.db.DB.Create(lock).Error; err != nil {
		return err
	}

	r.cacheLock(lock)
	return nil
}

func (r *lockRepository) GetLockByID(id string) (*schema.Lock, error) {
	ctx := context.Background()
	cacheKey := lockCacheKeyPrefix + id

	val, err := r.redisClient.Client.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		var lock schema.Lock
		if err := r.db.DB.Where("id = ?", id).First(&lock).Error; err != nil {
			return nil, err
		}
		r.cacheLock(&lock)
		return &lock, nil
	} else if err != nil {
		return nil, err
	}

	var lock schema.Lock
	if err := json.Unmarshal([]byte(val), &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *lockRepository) GetLocksByCommunity(communityID string) ([]schema.Lock, error) {
	var locks []schema.Lock
	if err := r.db.DB.Where("community_id = ?", communityID).Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}

// UpdateLock replaces the whole stored config. Published locks never mutate
// requirement by requirement, so cached verification results for the lock
// are invalidated wholesale.
func (r *lockRepository) UpdateLock(lock *schema.Lock) error {
	if err := lock.Config.Validate(); err != nil {
		return err
	}

	if err := r.db.DB.Save(lock).Error; err != nil {
		return err
	}

	r.cacheLock(lock)
	if err := r.redisClient.DeleteVerificationResultsByLock(lock.ID); err != nil {
		r.logger.Error().Err(err).Msgf("failed to invalidate verification results for lock %s", lock.ID)
	}
	return nil
}

func (r *lockRepository) DeleteLock(id string) error {
	ctx := context.Background()
	r.redisClient.Client.Del(ctx, lockCacheKeyPrefix+id)
	if err := r.redisClient.DeleteVerificationResultsByLock(id); err != nil {
		r.logger.Error().Err(err).Msgf("failed to invalidate verification results for lock %s", id)
	}

	if err := r.db.DB.Where("id = ?", id).Delete(&schema.Lock{}).Error; err != nil {
		return err
	}
	return nil
}

func (r *lockRepository) RefreshLockCache(ids []string) error {
	for _, id := range ids {
		var lock schema.Lock
		if err := r.db.DB.Where("id = ?", id).First(&lock).Error; err != nil {
			r.logger.Error().Err(err).Msgf("failed to refresh lock cache for %s", id)
			continue
		}
		r.cacheLock(&lock)
	}
	return nil
}

// CheckContractReferenced reports whether any live lock still gates on the
// contract. The config is jsonb, so a text containment probe is enough; the
// throttler only needs a coarse answer.
func (r *lockRepository) CheckContractReferenced(chainCode string, address string) (bool, error) {
	_ = chainCode
	var count int64
	err := r.db.DB.Model(&schema.Lock{}).
		Where("config::text ILIKE ?", "%"+strings.ToLower(address)+"%").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *lockRepository) cacheLock(lock *schema.Lock) {
	data, err := json.Marshal(lock)
	if err != nil {
		r.logger.Error().Err(err).Msgf("failed to marshal lock %s for cache", lock.ID)
		return
	}
	r.redisClient.Client.Set(context.Background(), lockCacheKeyPrefix+lock.ID, data, lockCacheDuration)
}
