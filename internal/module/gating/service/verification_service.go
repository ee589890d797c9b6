package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/repository"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const verificationCompletedRoutingKey = "gating.verification.completed"

// VerificationAddresses carries the wallet identities of the requesting user,
// one per ecosystem. An empty address means that ecosystem is not connected.
type VerificationAddresses struct {
	UPAddress  string `json:"upAddress"`
	EthAddress string `json:"ethAddress"`
}

func (a VerificationAddresses) forCategory(categoryType schema.CategoryType) string {
	if categoryType == schema.CategoryEthereumProfile {
		return a.EthAddress
	}
	return a.UPAddress
}

type CategoryStatus struct {
	Type         schema.CategoryType     `json:"type"`
	Enabled      bool                    `json:"enabled"`
	Fulfillment  schema.FulfillmentMode  `json:"fulfillment"`
	Connected    bool                    `json:"connected"`
	Passed       bool                    `json:"passed"`
	Requirements []RequirementResult     `json:"requirements"`
	Social       []FollowerResult        `json:"social,omitempty"`
}

type VerificationStatus struct {
	LockID      string                 `json:"lockId,omitempty"`
	Passed      bool                   `json:"passed"`
	Fulfillment schema.FulfillmentMode `json:"fulfillment"`
	Categories  []CategoryStatus       `json:"categories"`
	VerifiedAt  time.Time              `json:"verifiedAt"`
	Cached      bool                   `json:"cached,omitempty"`
}

type VerificationService interface {
	VerifyConfig(ctx context.Context, config *schema.GatingConfig, addresses VerificationAddresses) VerificationStatus
	VerifyLock(ctx context.Context, lockID string, addresses VerificationAddresses, clientIP string) (VerificationStatus, error)
}

type verificationService struct {
	chains          ChainProvider
	verifier        VerifierService
	follower        FollowerService
	lockRepository  repository.LockRepository
	logRepository   repository.VerificationLogRepository
	redisClient     *shared.RedisClient
	amqp            *shared.Amqp
	logger          zerolog.Logger
}

func NewVerificationService(
	chains ChainProvider,
	verifier VerifierService,
	follower FollowerService,
	lockRepository repository.LockRepository,
	logRepository repository.VerificationLogRepository,
	redisClient *shared.RedisClient,
	amqp *shared.Amqp,
	logger zerolog.Logger,
) VerificationService {
	return &verificationService{
		chains:         chains,
		verifier:       verifier,
		follower:       follower,
		lockRepository: lockRepository,
		logRepository:  logRepository,
		redisClient:    redisClient,
		amqp:           amqp,
		logger:         logger,
	}
}

// VerifyConfig evaluates a gating config against the caller's addresses.
// Requirement failures never abort the run; every requirement reports its own
// result and the two fulfillment modes fold them into the final verdict.
func (s *verificationService) VerifyConfig(ctx context.Context, config *schema.GatingConfig, addresses VerificationAddresses) VerificationStatus {
	status := VerificationStatus{
		Fulfillment: config.Fulfillment,
		VerifiedAt:  time.Now().UTC(),
	}

	var categoryOutcomes []bool
	for i := range config.Categories {
		cat := &config.Categories[i]
		if !cat.Enabled {
			continue
		}

		catStatus := s.verifyCategory(ctx, cat, addresses)
		status.Categories = append(status.Categories, catStatus)
		categoryOutcomes = append(categoryOutcomes, catStatus.Passed)
	}

	status.Passed = AggregateResults(config.Fulfillment, categoryOutcomes)
	return status
}

func (s *verificationService) verifyCategory(ctx context.Context, cat *schema.GatingCategory, addresses VerificationAddresses) CategoryStatus {
	catStatus := CategoryStatus{
		Type:        cat.Type,
		Enabled:     cat.Enabled,
		Fulfillment: cat.Fulfillment,
	}

	address := addresses.forCategory(cat.Type)
	if address == "" {
		// a disconnected wallet fails every requirement in the category but
		// never blocks the other categories
		for i := range cat.Requirements {
			req := &cat.Requirements[i]
			if req.IsSocial() {
				catStatus.Social = append(catStatus.Social, FollowerResult{
					RequirementID: req.ID,
					Type:          string(req.Type),
					DisplayName:   req.DisplayName(),
					Error:         "wallet not connected",
				})
			} else {
				catStatus.Requirements = append(catStatus.Requirements, RequirementResult{
					RequirementID: req.ID,
					Type:          string(req.Type),
					DisplayName:   req.DisplayName(),
					Error:         "wallet not connected",
				})
			}
		}
		catStatus.Passed = AggregateResults(cat.Fulfillment, make([]bool, len(cat.Requirements)))
		return catStatus
	}
	catStatus.Connected = true

	var tokenReqs, socialReqs []schema.Requirement
	for _, req := range cat.Requirements {
		if req.IsSocial() {
			socialReqs = append(socialReqs, req)
		} else {
			tokenReqs = append(tokenReqs, req)
		}
	}

	chainCode := ChainForCategory(string(cat.Type))
	tokenResults := s.verifier.VerifyTokenRequirements(ctx, chainCode, address, tokenReqs)
	var socialResults map[string]FollowerResult
	if len(socialReqs) > 0 {
		socialResults = s.follower.VerifyFollowerRequirements(ctx, address, socialReqs)
	}

	var outcomes []bool
	for i := range cat.Requirements {
		req := &cat.Requirements[i]
		key := requirementKey(req)
		if req.IsSocial() {
			result, ok := socialResults[key]
			if !ok {
				result = FollowerResult{
					RequirementID: req.ID,
					Type:          string(req.Type),
					DisplayName:   req.DisplayName(),
					Error:         "verification missing",
				}
			}
			catStatus.Social = append(catStatus.Social, result)
			outcomes = append(outcomes, result.IsMet)
		} else {
			result, ok := tokenResults[key]
			if !ok {
				result = RequirementResult{
					RequirementID: req.ID,
					Type:          string(req.Type),
					DisplayName:   req.DisplayName(),
					Error:         "verification missing",
				}
			}
			catStatus.Requirements = append(catStatus.Requirements, result)
			outcomes = append(outcomes, result.IsMet)
		}
	}

	catStatus.Passed = AggregateResults(cat.Fulfillment, outcomes)
	return catStatus
}

// VerifyLock runs the stored config of a lock, with a short-lived cached
// verdict so repeated page loads do not re-read the chain.
func (s *verificationService) VerifyLock(ctx context.Context, lockID string, addresses VerificationAddresses, clientIP string) (VerificationStatus, error) {
	cacheAddress := addresses.UPAddress
	if cacheAddress == "" {
		cacheAddress = addresses.EthAddress
	}

	if cached, err := s.redisClient.GetVerificationResultCache(lockID, cacheAddress); err == nil {
		var status VerificationStatus
		if err := json.Unmarshal([]byte(cached), &status); err == nil {
			status.Cached = true
			return status, nil
		}
	} else if err != redis.Nil {
		s.logger.Error().Err(err).Msgf("failed to read verification cache for lock %s", lockID)
	}

	lock, err := s.lockRepository.GetLockByID(lockID)
	if err != nil {
		return VerificationStatus{}, err
	}

	started := time.Now()
	status := s.VerifyConfig(ctx, &lock.Config, addresses)
	status.LockID = lockID

	payload, err := json.Marshal(status)
	if err != nil {
		s.logger.Error().Err(err).Msgf("failed to marshal verification status for lock %s", lockID)
		return status, nil
	}

	if err := s.redisClient.SetVerificationResultCache(lockID, cacheAddress, string(payload)); err != nil {
		s.logger.Error().Err(err).Msgf("failed to cache verification result for lock %s", lockID)
	}

	if err := s.logRepository.InsertLog(ctx, schema.VerificationLog{
		IPAddress:  clientIP,
		LockID:     lockID,
		Address:    addresses.UPAddress,
		EthAddress: addresses.EthAddress,
		Passed:     status.Passed,
		Response:   string(payload),
		DurationMs: time.Since(started).Milliseconds(),
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to queue verification log")
	}

	if err := s.amqp.Publish(verificationCompletedRoutingKey, payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish verification event")
	}

	return status, nil
}
