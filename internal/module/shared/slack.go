package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type SlackPayload struct {
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	IconEmoji string `json:"icon_emoji"`
}

const (
	RedisErrorCountPrefix          = "error_count:"
	RedisErrorCountDuration        = 10 * time.Minute
	RedisErrorThreshold            = 5
	SlackNotificationResetDuration = 60 * 24 * time.Minute
)

func SendSlackAlert(alertedKey string, message string, logger zerolog.Logger, redisClient *RedisClient) error {
	ctx := context.Background()

	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return nil
	}

	// already alerted for this key inside the reset window
	if counterValue, err := redisClient.Client.Get(ctx, alertedKey).Result(); err == nil && counterValue != "1" {
		return nil
	}
	payload := SlackPayload{
		Channel:  "#gating-service-alert",
		Username: "gating-bot",
		Text:     message,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal Slack payload")
		return err
	}

	req, err := http.NewRequest("POST", webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Slack request")
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send Slack request")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error().Msgf("Slack request failed with status code: %d", resp.StatusCode)
		return err
	}

	logger.Info().Msg("Slack notification sent successfully")
	return nil
}

// HandleErrorWithThrottling counts upstream errors per key and alerts once
// the threshold is crossed, then resets the counter.
func HandleErrorWithThrottling(redisClient *RedisClient, logger zerolog.Logger, key string, errorMsg string) {
	ctx := context.Background()
	errorCountKey := RedisErrorCountPrefix + key
	alertedKey := errorCountKey + ":alerted"
	lockKey := errorCountKey + ":lock"

	lockAcquired, err := redisClient.Client.SetNX(ctx, lockKey, "1", time.Second*10).Result()
	if err != nil {
		return
	}
	if !lockAcquired {
		return
	}
	defer redisClient.Client.Del(ctx, lockKey)

	if _, err := redisClient.Client.Get(ctx, alertedKey).Result(); err == nil {
		return
	}

	count, err := redisClient.Client.Incr(ctx, errorCountKey).Result()
	if err != nil {
		logger.Error().Err(err).Msg("failed to bump error counter")
		return
	}

	if count == 1 {
		redisClient.Client.Expire(ctx, errorCountKey, RedisErrorCountDuration)
	}

	if count >= RedisErrorThreshold {
		redisClient.Client.Set(ctx, alertedKey, "1", RedisErrorCountDuration)
		SendSlackAlert(key, fmt.Sprintf("error threshold reached for %s: %s", key, errorMsg), logger, redisClient)
		redisClient.Client.Del(ctx, errorCountKey)
	}
}
