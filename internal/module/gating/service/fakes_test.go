package service_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// fakeChainClient answers chain reads from function fields so each test can
// script exactly the contract behavior it needs. Unset fields report an
// error, matching a dead endpoint.
type fakeChainClient struct {
	chainCode string
	endpoint  string

	nativeBalanceFn func(address string) (*big.Int, error)
	supportsFn      func(contract string, interfaceID [4]byte) (bool, error)
	getDataFn       func(contract string, key common.Hash) ([]byte, error)
	decimalsFn      func(contract string) (uint8, error)
	balanceOfFn     func(contract string, owner string) (*big.Int, error)
	balanceOf1155Fn func(contract string, owner string, tokenID *big.Int) (*big.Int, error)
	tokenOwnerOfFn  func(contract string, tokenID [32]byte) (string, error)
	ownerOfFn       func(contract string, tokenID *big.Int) (string, error)
	followerCountFn func(address string) (*big.Int, error)
	isFollowingFn   func(follower string, target string) (bool, error)

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeChainClient) recordCall(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *fakeChainClient) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChainClient) ChainCode() string {
	if f.chainCode == "" {
		return "lukso"
	}
	return f.chainCode
}

func (f *fakeChainClient) Endpoint() string {
	if f.endpoint == "" {
		return "https://rpc.test.invalid"
	}
	return f.endpoint
}

func (f *fakeChainClient) NativeBalance(_ context.Context, address string) (*big.Int, error) {
	f.recordCall("NativeBalance")
	if f.nativeBalanceFn == nil {
		return nil, fmt.Errorf("native balance unavailable")
	}
	return f.nativeBalanceFn(address)
}

func (f *fakeChainClient) SupportsInterface(_ context.Context, contract string, interfaceID [4]byte) (bool, error) {
	f.recordCall("SupportsInterface")
	if f.supportsFn == nil {
		return false, fmt.Errorf("supportsInterface unavailable")
	}
	return f.supportsFn(contract, interfaceID)
}

func (f *fakeChainClient) GetData(_ context.Context, contract string, key common.Hash) ([]byte, error) {
	f.recordCall("GetData")
	if f.getDataFn == nil {
		return nil, fmt.Errorf("getData unavailable")
	}
	return f.getDataFn(contract, key)
}

func (f *fakeChainClient) Decimals(_ context.Context, contract string) (uint8, error) {
	f.recordCall("Decimals")
	if f.decimalsFn == nil {
		return 0, fmt.Errorf("decimals unavailable")
	}
	return f.decimalsFn(contract)
}

func (f *fakeChainClient) BalanceOf(_ context.Context, contract string, owner string) (*big.Int, error) {
	f.recordCall("BalanceOf")
	if f.balanceOfFn == nil {
		return nil, fmt.Errorf("balanceOf unavailable")
	}
	return f.balanceOfFn(contract, owner)
}

func (f *fakeChainClient) BalanceOf1155(_ context.Context, contract string, owner string, tokenID *big.Int) (*big.Int, error) {
	f.recordCall("BalanceOf1155")
	if f.balanceOf1155Fn == nil {
		return nil, fmt.Errorf("balanceOf unavailable")
	}
	return f.balanceOf1155Fn(contract, owner, tokenID)
}

func (f *fakeChainClient) TokenOwnerOf(_ context.Context, contract string, tokenID [32]byte) (string, error) {
	f.recordCall("TokenOwnerOf")
	if f.tokenOwnerOfFn == nil {
		return "", fmt.Errorf("tokenOwnerOf unavailable")
	}
	return f.tokenOwnerOfFn(contract, tokenID)
}

func (f *fakeChainClient) OwnerOf(_ context.Context, contract string, tokenID *big.Int) (string, error) {
	f.recordCall("OwnerOf")
	if f.ownerOfFn == nil {
		return "", fmt.Errorf("ownerOf unavailable")
	}
	return f.ownerOfFn(contract, tokenID)
}

func (f *fakeChainClient) FollowerCount(_ context.Context, address string) (*big.Int, error) {
	f.recordCall("FollowerCount")
	if f.followerCountFn == nil {
		return nil, fmt.Errorf("followerCount unavailable")
	}
	return f.followerCountFn(address)
}

func (f *fakeChainClient) IsFollowing(_ context.Context, follower string, target string) (bool, error) {
	f.recordCall("IsFollowing")
	if f.isFollowingFn == nil {
		return false, fmt.Errorf("isFollowing unavailable")
	}
	return f.isFollowingFn(follower, target)
}

type fakeChainProvider struct {
	clients map[string]service.ChainClient
	err     error
}

func (p *fakeChainProvider) Get(chainCode string) (service.ChainClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	client, ok := p.clients[chainCode]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %s", chainCode)
	}
	return client, nil
}

func singleChainProvider(chainCode string, client service.ChainClient) *fakeChainProvider {
	return &fakeChainProvider{clients: map[string]service.ChainClient{chainCode: client}}
}

type fakeMetadataService struct {
	tokens   map[string]service.TokenMetadata
	profiles map[string]service.ProfileMetadata
}

func (f *fakeMetadataService) BatchFetchTokenMetadata(_ context.Context, _ string, addresses []string) map[string]service.TokenMetadata {
	results := make(map[string]service.TokenMetadata)
	for _, addr := range addresses {
		if meta, ok := f.tokens[addr]; ok {
			results[addr] = meta
		}
	}
	return results
}

func (f *fakeMetadataService) BatchFetchProfileMetadata(_ context.Context, _ string, addresses []string) map[string]service.ProfileMetadata {
	results := make(map[string]service.ProfileMetadata)
	for _, addr := range addresses {
		if meta, ok := f.profiles[addr]; ok {
			results[addr] = meta
		}
	}
	return results
}

func newTestConfig(values map[string]interface{}) *koanf.Koanf {
	cfg := koanf.New(".")
	cfg.Load(confmap.Provider(values, "."), nil)
	return cfg
}
