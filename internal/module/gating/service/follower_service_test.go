package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	followerAddress = "0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"
	targetAddress   = "0xDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD"
)

func newFollower(client *fakeChainClient, overrides map[string]interface{}) service.FollowerService {
	settings := map[string]interface{}{
		"follow.poll-interval": "20ms",
		"follow.max-attempts":  3,
		"follow.min-gas-wei":   "1000",
	}
	for key, value := range overrides {
		settings[key] = value
	}
	return service.NewFollowerService(newTestConfig(settings), singleChainProvider("lukso", client), zerolog.Nop())
}

func TestVerifyFollowerCount(t *testing.T) {
	client := &fakeChainClient{
		followerCountFn: func(_ string) (*big.Int, error) {
			return big.NewInt(150), nil
		},
	}
	svc := newFollower(client, nil)

	reqs := []schema.Requirement{
		{ID: "enough", Type: schema.RequirementUpFollowerCount, FollowerCount: &schema.FollowerCountConfig{MinCount: 100}},
		{ID: "short", Type: schema.RequirementUpFollowerCount, FollowerCount: &schema.FollowerCountConfig{MinCount: 200}},
	}

	results := svc.VerifyFollowerRequirements(context.Background(), followerAddress, reqs)
	require.Len(t, results, 2)
	assert.True(t, results["enough"].IsMet)
	assert.Equal(t, "150", results["enough"].CurrentValue)
	assert.False(t, results["short"].IsMet)
	assert.Contains(t, results["short"].Reason, "needs 200 followers")
}

func TestVerifyFollowRelationships(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(follower string, target string) (bool, error) {
			// only follower -> target exists, not the reverse
			return follower == followerAddress && target == targetAddress, nil
		},
	}
	svc := newFollower(client, nil)

	reqs := []schema.Requirement{
		{ID: "follows", Type: schema.RequirementUpMustFollow, FollowTarget: &schema.FollowTargetConfig{Address: targetAddress}},
		{ID: "followedBy", Type: schema.RequirementUpMustBeFollowedBy, FollowTarget: &schema.FollowTargetConfig{Address: targetAddress}},
	}

	results := svc.VerifyFollowerRequirements(context.Background(), followerAddress, reqs)
	assert.True(t, results["follows"].IsMet)
	assert.False(t, results["followedBy"].IsMet)
	assert.Equal(t, "not followed by the required profile", results["followedBy"].Reason)
}

func TestVerifyFollowerReadFailureIsolated(t *testing.T) {
	client := &fakeChainClient{
		followerCountFn: func(_ string) (*big.Int, error) {
			return nil, fmt.Errorf("rpc timeout")
		},
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return true, nil
		},
	}
	svc := newFollower(client, nil)

	reqs := []schema.Requirement{
		{ID: "count", Type: schema.RequirementUpFollowerCount, FollowerCount: &schema.FollowerCountConfig{MinCount: 1}},
		{ID: "follows", Type: schema.RequirementUpMustFollow, FollowTarget: &schema.FollowTargetConfig{Address: targetAddress}},
	}

	results := svc.VerifyFollowerRequirements(context.Background(), followerAddress, reqs)
	assert.False(t, results["count"].IsMet)
	assert.NotEmpty(t, results["count"].Error)
	assert.True(t, results["follows"].IsMet)
}

func TestPreflightSelfTarget(t *testing.T) {
	svc := newFollower(&fakeChainClient{}, nil)

	// case differences do not make a profile someone else
	err := svc.PreflightFollow(context.Background(), followerAddress, strings.ToLower(followerAddress))
	var followErr *service.FollowError
	require.ErrorAs(t, err, &followErr)
	assert.Equal(t, service.FollowErrSelfTarget, followErr.Code)
}

func TestPreflightAlreadyFollowing(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return true, nil
		},
	}
	svc := newFollower(client, nil)

	err := svc.PreflightFollow(context.Background(), followerAddress, targetAddress)
	var followErr *service.FollowError
	require.ErrorAs(t, err, &followErr)
	assert.Equal(t, service.FollowErrAlreadyFollowing, followErr.Code)
}

func TestPreflightInsufficientGas(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return false, nil
		},
		nativeBalanceFn: func(_ string) (*big.Int, error) {
			return big.NewInt(999), nil
		},
	}
	svc := newFollower(client, nil)

	err := svc.PreflightFollow(context.Background(), followerAddress, targetAddress)
	var followErr *service.FollowError
	require.ErrorAs(t, err, &followErr)
	assert.Equal(t, service.FollowErrInsufficientGas, followErr.Code)
}

func TestPreflightRelationshipReadError(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return false, errors.New("rpc down")
		},
	}
	svc := newFollower(client, nil)

	err := svc.PreflightFollow(context.Background(), followerAddress, targetAddress)
	var followErr *service.FollowError
	require.ErrorAs(t, err, &followErr)
	assert.Equal(t, service.FollowErrNetwork, followErr.Code)
}

func TestPreflightPasses(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return false, nil
		},
		nativeBalanceFn: func(_ string) (*big.Int, error) {
			return big.NewInt(1000), nil
		},
	}
	svc := newFollower(client, nil)

	assert.NoError(t, svc.PreflightFollow(context.Background(), followerAddress, targetAddress))
}

func TestWatchFollowConfirms(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return true, nil
		},
	}
	svc := newFollower(client, nil)

	snap, err := svc.WatchFollow(followerAddress, targetAddress)
	require.NoError(t, err)
	assert.Equal(t, service.WatchPending, snap.Status)

	final := waitForTerminal(t, svc, snap.ID)
	assert.Equal(t, service.WatchConfirmed, final.Status)
	assert.NotNil(t, final.CompletedAt)
}

func TestWatchFollowTimesOut(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return false, nil
		},
	}
	svc := newFollower(client, nil)

	snap, err := svc.WatchFollow(followerAddress, targetAddress)
	require.NoError(t, err)

	final := waitForTerminal(t, svc, snap.ID)
	assert.Equal(t, service.WatchTimeout, final.Status)
	assert.Equal(t, 3, final.Attempts)
}

func TestCancelWatch(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return false, nil
		},
	}
	svc := newFollower(client, map[string]interface{}{"follow.max-attempts": 1000})

	snap, err := svc.WatchFollow(followerAddress, targetAddress)
	require.NoError(t, err)

	assert.True(t, svc.CancelWatch(snap.ID))
	// cancelling again stays true so client retries are harmless
	assert.True(t, svc.CancelWatch(snap.ID))
	assert.False(t, svc.CancelWatch("no-such-watch"))

	final, ok := svc.GetWatch(snap.ID)
	require.True(t, ok)
	assert.Equal(t, service.WatchCancelled, final.Status)
}

func TestSweepWatches(t *testing.T) {
	client := &fakeChainClient{
		isFollowingFn: func(_ string, _ string) (bool, error) {
			return true, nil
		},
	}
	svc := newFollower(client, nil)

	snap, err := svc.WatchFollow(followerAddress, targetAddress)
	require.NoError(t, err)
	waitForTerminal(t, svc, snap.ID)

	// terminal but too fresh to sweep
	assert.Equal(t, 0, svc.SweepWatches(time.Hour))

	assert.Equal(t, 1, svc.SweepWatches(0))
	_, ok := svc.GetWatch(snap.ID)
	assert.False(t, ok)
}

func waitForTerminal(t *testing.T, svc service.FollowerService, id string) service.FollowWatchSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := svc.GetWatch(id)
		require.True(t, ok)
		if snap.Status != service.WatchPending {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("watch never reached a terminal status")
	return service.FollowWatchSnapshot{}
}
