package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database"
	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/redis/go-redis/v9"
)

type AppTokenRepository interface {
	GetAppTokenByToken(token string) (*schema.AppToken, error)
	GetAllAppTokens() ([]schema.AppToken, error)
	AddAppToken(appToken *schema.AppToken) error
	UpdateAppToken(appToken *schema.AppToken) error
	DeleteAppToken(token string) error
}

type appTokenRepository struct {
	db          *database.Database
	redisClient *shared.RedisClient
}

func NewAppTokenRepository(db *database.Database, redisClient *shared.RedisClient) AppTokenRepository {
	return &appTokenRepository{
		db:          db,
		redisClient: redisClient,
	}
}

func (r *appTokenRepository) GetAppTokenByToken(token string) (*schema.AppToken, error) {
	ctx := context.Background()
	cacheKey := "app_token:" + token

	val, err := r.redisClient.Client.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		var appToken schema.AppToken
		if err := r.db.DB.Where("token = ?", token).First(&appToken).Error; err != nil {
			return nil, err
		}
		data, _ := json.Marshal(appToken)
		r.redisClient.Client.Set(ctx, cacheKey, data, 30*time.Minute)

		return &appToken, nil
	} else if err != nil {
		return nil, err
	}

	var appToken schema.AppToken
	if err := json.Unmarshal([]byte(val), &appToken); err != nil {
		return nil, err
	}

	return &appToken, nil
}

func (r *appTokenRepository) GetAllAppTokens() ([]schema.AppToken, error) {
	var appTokens []schema.AppToken
	if err := r.db.DB.Where("deleted_at IS NULL").Find(&appTokens).Error; err != nil {
		return nil, err
	}
	return appTokens, nil
}

func (r *appTokenRepository) AddAppToken(appToken *schema.AppToken) error {
	if err := r.db.DB.Create(appToken).Error; err != nil {
		return err
	}

	cacheKey := "app_token:" + appToken.Token
	data, _ := json.Marshal(appToken)
	r.redisClient.Client.Set(context.Background(), cacheKey, data, 10*time.Minute)

	return nil
}

func (r *appTokenRepository) UpdateAppToken(appToken *schema.AppToken) error {
	oldAppToken, err := r.GetAppTokenByToken(appToken.Token)
	if err != nil {
		return err
	}
	oldCacheKey := "app_token:" + oldAppToken.Token
	r.redisClient.Client.Del(context.Background(), oldCacheKey)
	r.redisClient.Client.Del(context.Background(), "rate_limit:"+oldAppToken.Token)

	if err := r.db.DB.Save(appToken).Error; err != nil {
		return err
	}

	newCacheKey := "app_token:" + appToken.Token
	data, _ := json.Marshal(appToken)
	r.redisClient.Client.Set(context.Background(), newCacheKey, data, 10*time.Minute)
	r.redisClient.Client.Del(context.Background(), "rate_limit:"+appToken.Token)

	return nil
}

func (r *appTokenRepository) DeleteAppToken(token string) error {
	cacheKey := "app_token:" + token
	r.redisClient.Client.Del(context.Background(), cacheKey)
	r.redisClient.Client.Del(context.Background(), "rate_limit:"+token)

	if err := r.db.DB.Where("token = ?", token).Delete(&schema.AppToken{}).Error; err != nil {
		return err
	}

	return nil
}
