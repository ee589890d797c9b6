package shared

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ContractThrottler suppresses repeated chain reads against contracts that
// keep failing (reverting, nonexistent, or served by a dead endpoint), so a
// misconfigured lock cannot hammer the RPC provider on every page load.
type ContractThrottler struct {
	redisClient *RedisClient
	logger      zerolog.Logger
	lockChecker LockChecker
}

// LockChecker reports whether any stored lock still references a contract.
// Contracts no lock references get throttled much longer.
type LockChecker interface {
	CheckContractReferenced(chainCode string, address string) (bool, error)
}

const (
	ContractThrottlePrefix      = "contracts_throttle:"
	ContractThrottleCountPrefix = "contracts_throttle_count:"

	ContractThrottleDuration           = 60 * time.Second
	ContractThrottleCountResetDuration = 30 * time.Minute
	ContractMaxThrottleCount           = 3

	ContractSlackNotificationResetDuration = 30 * time.Minute
)

func NewContractThrottler(redisClient *RedisClient, logger zerolog.Logger, lockChecker LockChecker) *ContractThrottler {
	return &ContractThrottler{
		redisClient: redisClient,
		logger:      logger,
		lockChecker: lockChecker,
	}
}

func throttleID(chainCode string, address string) string {
	return chainCode + "_" + address
}

// IsContractThrottled checks whether reads against the contract are
// currently suppressed.
func (t *ContractThrottler) IsContractThrottled(chainCode string, address string) bool {
	ctx := context.Background()

	if IsChainRefused(chainCode) {
		return true
	}

	throttleKey := ContractThrottlePrefix + throttleID(chainCode, address)

	if _, err := t.redisClient.Client.Get(ctx, throttleKey).Result(); err == nil {
		return true
	}

	return false
}

func (t *ContractThrottler) GetAlertedKey(chainCode string, address string) string {
	if address == "" {
		return ""
	}
	return ContractThrottleCountPrefix + throttleID(chainCode, address) + ":alerted"
}

// ContractThrottle records one failed read. After ContractMaxThrottleCount
// failures inside the reset window the contract is throttled, and the first
// throttling inside the notification window reports true so the caller can
// raise an alert.
func (t *ContractThrottler) ContractThrottle(chainCode string, address string) bool {
	ctx := context.Background()
	id := throttleID(chainCode, address)

	throttleCountKey := ContractThrottleCountPrefix + id
	alertedKey := t.GetAlertedKey(chainCode, address)

	count, err := t.redisClient.Client.Incr(ctx, throttleCountKey).Result()
	if err != nil {
		t.logger.Error().Err(err).Msgf("failed to bump throttle counter: %s", id)
		return false
	}
	if count == 1 {
		if err := t.redisClient.Client.Expire(ctx, throttleCountKey, ContractThrottleCountResetDuration).Err(); err != nil {
			t.logger.Error().Err(err).Msgf("failed to expire throttle counter: %s", id)
		}
	}

	if count >= ContractMaxThrottleCount {
		referenced, err := t.lockChecker.CheckContractReferenced(chainCode, address)
		if err != nil {
			t.logger.Error().Err(err).Msgf("failed to check contract references: %s", id)
			return false
		}

		var duration time.Duration
		if !referenced {
			// nothing gates on it anymore, keep it quiet for a day
			duration = 24 * time.Hour
		} else {
			duration = 30 * time.Minute
		}

		if err := t.redisClient.Client.Set(ctx, ContractThrottlePrefix+id, "1", duration).Err(); err != nil {
			t.logger.Error().Err(err).Msgf("failed to set throttle key: %s", id)
			return false
		}

		alertCount, _ := t.redisClient.Client.Incr(ctx, alertedKey).Result()
		if alertCount == 1 {
			if err := t.redisClient.Client.Expire(ctx, alertedKey, ContractSlackNotificationResetDuration).Err(); err != nil {
				t.logger.Error().Err(err).Msgf("failed to set alert flag: %s", id)
			}
			return true
		}
	}

	return false
}
