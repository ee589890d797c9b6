package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/google/uuid"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FollowerResult mirrors RequirementResult for social checks; counts are
// plain integers so no decimals handling applies.
type FollowerResult struct {
	RequirementID string `json:"requirementId"`
	Type          string `json:"type"`
	DisplayName   string `json:"displayName"`
	IsMet         bool   `json:"isMet"`
	CurrentValue  string `json:"currentValue"`
	RequiredValue string `json:"requiredValue"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

type FollowErrorCode string

const (
	FollowErrSelfTarget       FollowErrorCode = "self_target"
	FollowErrAlreadyFollowing FollowErrorCode = "already_following"
	FollowErrInsufficientGas  FollowErrorCode = "insufficient_gas"
	FollowErrNetwork          FollowErrorCode = "network"
)

// FollowError carries a user-facing category alongside the message so the
// client can pick a friendly rendering.
type FollowError struct {
	Code    FollowErrorCode `json:"code"`
	Message string          `json:"message"`
}

func (e *FollowError) Error() string {
	return e.Message
}

type WatchStatus string

const (
	WatchPending   WatchStatus = "pending"
	WatchConfirmed WatchStatus = "confirmed"
	// WatchTimeout means "possibly completed, unconfirmed": the relayer may
	// still land the transaction after the watch ceiling.
	WatchTimeout   WatchStatus = "timeout"
	WatchCancelled WatchStatus = "cancelled"
)

// FollowWatch tracks the asynchronous confirmation of a relayer-submitted
// follow transaction. The submitting signer is not the key that finalizes
// the transaction, so the only reliable signal is the read-side relationship
// flipping to true.
type FollowWatch struct {
	ID       string `json:"id"`
	Follower string `json:"follower"`
	Target   string `json:"target"`

	mu          sync.Mutex
	status      WatchStatus
	attempts    int
	startedAt   time.Time
	completedAt time.Time
	cancel      context.CancelFunc
}

type FollowWatchSnapshot struct {
	ID          string      `json:"id"`
	Follower    string      `json:"follower"`
	Target      string      `json:"target"`
	Status      WatchStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

func (w *FollowWatch) snapshot() FollowWatchSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := FollowWatchSnapshot{
		ID:        w.ID,
		Follower:  w.Follower,
		Target:    w.Target,
		Status:    w.status,
		Attempts:  w.attempts,
		StartedAt: w.startedAt,
	}
	if !w.completedAt.IsZero() {
		completed := w.completedAt
		snap.CompletedAt = &completed
	}
	return snap
}

// finish moves the watch to a terminal status once; later transitions are
// ignored so cancel racing confirm cannot flip the outcome.
func (w *FollowWatch) finish(status WatchStatus) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != WatchPending {
		return false
	}
	w.status = status
	w.completedAt = time.Now()
	return true
}

func (w *FollowWatch) bumpAttempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	return w.attempts
}

type FollowerService interface {
	VerifyFollowerRequirements(ctx context.Context, address string, reqs []schema.Requirement) map[string]FollowerResult
	PreflightFollow(ctx context.Context, follower string, target string) error
	WatchFollow(follower string, target string) (FollowWatchSnapshot, error)
	GetWatch(id string) (FollowWatchSnapshot, bool)
	CancelWatch(id string) bool
	SweepWatches(olderThan time.Duration) int
}

type followerService struct {
	chains       ChainProvider
	logger       zerolog.Logger
	pollInterval time.Duration
	maxAttempts  int
	minGasWei    *big.Int

	watches sync.Map // watch id -> *FollowWatch
}

func NewFollowerService(cfg *koanf.Koanf, chains ChainProvider, logger zerolog.Logger) FollowerService {
	pollInterval := cfg.Duration("follow.poll-interval")
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	maxAttempts := cfg.Int("follow.max-attempts")
	if maxAttempts == 0 {
		maxAttempts = 60
	}
	minGasWei, ok := new(big.Int).SetString(cfg.String("follow.min-gas-wei"), 10)
	if !ok {
		minGasWei = big.NewInt(0)
	}

	return &followerService{
		chains:       chains,
		logger:       logger,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		minGasWei:    minGasWei,
	}
}

// followerChain returns the ecosystem carrying the follower registry.
func (s *followerService) followerChain() (ChainClient, error) {
	return s.chains.Get("lukso")
}

// VerifyFollowerRequirements runs every social check concurrently; one
// failing requirement never aborts its siblings.
func (s *followerService) VerifyFollowerRequirements(ctx context.Context, address string, reqs []schema.Requirement) map[string]FollowerResult {
	results := make(map[string]FollowerResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	client, err := s.followerChain()
	if err != nil {
		for i := range reqs {
			req := &reqs[i]
			results[requirementKey(req)] = FollowerResult{
				RequirementID: requirementKey(req),
				Type:          string(req.Type),
				DisplayName:   req.DisplayName(),
				Error:         err.Error(),
			}
		}
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := range reqs {
		req := &reqs[i]
		g.Go(func() error {
			result := s.verifyFollowerRequirement(gctx, client, address, req)
			mu.Lock()
			results[requirementKey(req)] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *followerService) verifyFollowerRequirement(ctx context.Context, client ChainClient, address string, req *schema.Requirement) FollowerResult {
	result := FollowerResult{
		RequirementID: requirementKey(req),
		Type:          string(req.Type),
		DisplayName:   req.DisplayName(),
	}

	switch req.Type {
	case schema.RequirementUpFollowerCount:
		required := new(big.Int).SetUint64(req.FollowerCount.MinCount)
		count, err := client.FollowerCount(ctx, address)
		if err != nil {
			s.logger.Debug().Err(err).Msgf("followerCount read failed for %s", address)
			result.CurrentValue = "0"
			result.RequiredValue = required.String()
			result.Error = "follower count read failed"
			return result
		}
		result.CurrentValue = count.String()
		result.RequiredValue = required.String()
		result.IsMet = count.Cmp(required) >= 0
		if !result.IsMet {
			result.Reason = fmt.Sprintf("needs %s followers, has %s", required, count)
		}
		return result

	case schema.RequirementUpMustFollow:
		following, err := client.IsFollowing(ctx, address, req.FollowTarget.Address)
		if err != nil {
			result.Error = "relationship read failed"
			return result
		}
		result.IsMet = following
		if !following {
			result.Reason = "not following the required profile"
		}
		return result

	case schema.RequirementUpMustBeFollowedBy:
		following, err := client.IsFollowing(ctx, req.FollowTarget.Address, address)
		if err != nil {
			result.Error = "relationship read failed"
			return result
		}
		result.IsMet = following
		if !following {
			result.Reason = "not followed by the required profile"
		}
		return result

	default:
		result.Error = fmt.Sprintf("unsupported social requirement type %q", req.Type)
		return result
	}
}

// PreflightFollow runs the guards a follow submission must pass before the
// client hands the transaction to the relayer.
func (s *followerService) PreflightFollow(ctx context.Context, follower string, target string) error {
	if strings.EqualFold(follower, target) {
		return &FollowError{Code: FollowErrSelfTarget, Message: "you cannot follow your own profile"}
	}

	client, err := s.followerChain()
	if err != nil {
		return &FollowError{Code: FollowErrNetwork, Message: "follower registry unavailable"}
	}

	following, err := client.IsFollowing(ctx, follower, target)
	if err != nil {
		return &FollowError{Code: FollowErrNetwork, Message: "could not check the current relationship, try again"}
	}
	if following {
		return &FollowError{Code: FollowErrAlreadyFollowing, Message: "you already follow this profile"}
	}

	balance, err := client.NativeBalance(ctx, follower)
	if err != nil {
		return &FollowError{Code: FollowErrNetwork, Message: "could not check the gas balance, try again"}
	}
	if balance.Cmp(s.minGasWei) < 0 {
		return &FollowError{Code: FollowErrInsufficientGas, Message: "not enough LYX to cover the transaction"}
	}

	return nil
}

// WatchFollow starts a confirmation watcher and returns its initial state.
// Restarting a watch for the same pair is safe; each watch owns its own
// ticker and context.
func (s *followerService) WatchFollow(follower string, target string) (FollowWatchSnapshot, error) {
	if _, err := s.followerChain(); err != nil {
		return FollowWatchSnapshot{}, &FollowError{Code: FollowErrNetwork, Message: "follower registry unavailable"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	watch := &FollowWatch{
		ID:        uuid.NewString(),
		Follower:  follower,
		Target:    target,
		status:    WatchPending,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	s.watches.Store(watch.ID, watch)

	go s.runWatch(ctx, watch)

	return watch.snapshot(), nil
}

func (s *followerService) runWatch(ctx context.Context, watch *FollowWatch) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			watch.finish(WatchCancelled)
			return
		case <-ticker.C:
			attempts := watch.bumpAttempts()

			client, err := s.followerChain()
			if err == nil {
				readCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
				following, err := client.IsFollowing(readCtx, watch.Follower, watch.Target)
				cancel()
				if err == nil && following {
					watch.finish(WatchConfirmed)
					s.logger.Info().Msgf("follow %s -> %s confirmed after %d attempts", watch.Follower, watch.Target, attempts)
					return
				}
			}

			if attempts >= s.maxAttempts {
				watch.finish(WatchTimeout)
				s.logger.Info().Msgf("follow %s -> %s unconfirmed after %d attempts", watch.Follower, watch.Target, attempts)
				return
			}
		}
	}
}

func (s *followerService) GetWatch(id string) (FollowWatchSnapshot, bool) {
	value, ok := s.watches.Load(id)
	if !ok {
		return FollowWatchSnapshot{}, false
	}
	return value.(*FollowWatch).snapshot(), true
}

// CancelWatch stops the polling loop. Cancelling an already-terminal watch
// is a no-op and still reports true so retries are idempotent.
func (s *followerService) CancelWatch(id string) bool {
	value, ok := s.watches.Load(id)
	if !ok {
		return false
	}
	watch := value.(*FollowWatch)
	watch.cancel()
	watch.finish(WatchCancelled)
	return true
}

// SweepWatches drops terminal watches older than the given age and returns
// how many were removed.
func (s *followerService) SweepWatches(olderThan time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-olderThan)
	s.watches.Range(func(key, value interface{}) bool {
		watch := value.(*FollowWatch)
		snap := watch.snapshot()
		if snap.Status != WatchPending && snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			s.watches.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
