package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/curia-network/curia-cg-sub000/utils/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// interface detection ids (ERC165 supportsInterface arguments)
var (
	InterfaceIDLSP7 = [4]byte{0xc5, 0x2d, 0x60, 0x08}
	InterfaceIDLSP8 = [4]byte{0x3a, 0x27, 0x17, 0x06}
)

// LSP4TokenTypeKey is the ERC725Y data key holding the declared token type
// (0 = token, 1 = NFT, 2 = collection).
var LSP4TokenTypeKey = common.HexToHash("0xe0261fa95db2eb3b5439bd033cda66d56b8f0edce1a437b8a684e850e6987e48")

const (
	LSP4TokenTypeToken      = 0
	LSP4TokenTypeNFT        = 1
	LSP4TokenTypeCollection = 2
)

const (
	erc165ABIJSON   = `[{"constant":true,"inputs":[{"name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`
	erc725yABIJSON  = `[{"constant":true,"inputs":[{"name":"dataKey","type":"bytes32"}],"name":"getData","outputs":[{"name":"dataValue","type":"bytes"}],"stateMutability":"view","type":"function"}]`
	lsp7ABIJSON     = `[{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"constant":true,"inputs":[{"name":"tokenOwner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
	lsp8ABIJSON     = `[{"constant":true,"inputs":[{"name":"tokenId","type":"bytes32"}],"name":"tokenOwnerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`
	erc721ABIJSON   = `[{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`
	erc1155ABIJSON  = `[{"constant":true,"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
	followerABIJSON = `[{"constant":true,"inputs":[{"name":"addr","type":"address"}],"name":"followerCount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"constant":true,"inputs":[{"name":"follower","type":"address"},{"name":"addr","type":"address"}],"name":"isFollowing","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`
)

var (
	erc165ABI   = mustParseABI(erc165ABIJSON)
	erc725yABI  = mustParseABI(erc725yABIJSON)
	lsp7ABI     = mustParseABI(lsp7ABIJSON)
	lsp8ABI     = mustParseABI(lsp8ABIJSON)
	erc721ABI   = mustParseABI(erc721ABIJSON)
	erc1155ABI  = mustParseABI(erc1155ABIJSON)
	followerABI = mustParseABI(followerABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// ChainClient is the read-only RPC surface of one ecosystem. Every method
// takes a context and returns an error; callers decide whether an error
// degrades or propagates.
type ChainClient interface {
	ChainCode() string
	Endpoint() string
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	SupportsInterface(ctx context.Context, contract string, interfaceID [4]byte) (bool, error)
	GetData(ctx context.Context, contract string, key common.Hash) ([]byte, error)
	Decimals(ctx context.Context, contract string) (uint8, error)
	BalanceOf(ctx context.Context, contract string, owner string) (*big.Int, error)
	BalanceOf1155(ctx context.Context, contract string, owner string, tokenID *big.Int) (*big.Int, error)
	TokenOwnerOf(ctx context.Context, contract string, tokenID [32]byte) (string, error)
	OwnerOf(ctx context.Context, contract string, tokenID *big.Int) (string, error)
	FollowerCount(ctx context.Context, address string) (*big.Int, error)
	IsFollowing(ctx context.Context, follower string, target string) (bool, error)
}

type chainClient struct {
	client           *ethclient.Client
	chainCode        string
	endpoint         string
	followerRegistry common.Address
	logger           zerolog.Logger
}

func newChainClient(chain config.Chain, logger zerolog.Logger) (*chainClient, error) {
	client, err := ethclient.Dial(chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s rpc: %w", chain.Code, err)
	}

	return &chainClient{
		client:           client,
		chainCode:        chain.Code,
		endpoint:         chain.RPCURL,
		followerRegistry: common.HexToAddress(chain.FollowerRegistry),
		logger:           logger,
	}, nil
}

func (c *chainClient) ChainCode() string {
	return c.chainCode
}

func (c *chainClient) Endpoint() string {
	return c.endpoint
}

func (c *chainClient) call(ctx context.Context, contract string, parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := common.HexToAddress(contract)
	callMsg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, callMsg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed on %s: %w", method, contract, err)
	}
	return result, nil
}

func (c *chainClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

func (c *chainClient) SupportsInterface(ctx context.Context, contract string, interfaceID [4]byte) (bool, error) {
	result, err := c.call(ctx, contract, erc165ABI, "supportsInterface", interfaceID)
	if err != nil {
		return false, err
	}

	var supported bool
	if err := erc165ABI.UnpackIntoInterface(&supported, "supportsInterface", result); err != nil {
		return false, fmt.Errorf("failed to unpack supportsInterface: %w", err)
	}
	return supported, nil
}

func (c *chainClient) GetData(ctx context.Context, contract string, key common.Hash) ([]byte, error) {
	result, err := c.call(ctx, contract, erc725yABI, "getData", [32]byte(key))
	if err != nil {
		return nil, err
	}

	var value []byte
	if err := erc725yABI.UnpackIntoInterface(&value, "getData", result); err != nil {
		return nil, fmt.Errorf("failed to unpack getData: %w", err)
	}
	return value, nil
}

func (c *chainClient) Decimals(ctx context.Context, contract string) (uint8, error) {
	result, err := c.call(ctx, contract, lsp7ABI, "decimals")
	if err != nil {
		return 0, err
	}

	var decimals uint8
	if err := lsp7ABI.UnpackIntoInterface(&decimals, "decimals", result); err != nil {
		return 0, fmt.Errorf("failed to unpack decimals: %w", err)
	}
	return decimals, nil
}

func (c *chainClient) BalanceOf(ctx context.Context, contract string, owner string) (*big.Int, error) {
	result, err := c.call(ctx, contract, lsp7ABI, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	if err := lsp7ABI.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	return balance, nil
}

func (c *chainClient) BalanceOf1155(ctx context.Context, contract string, owner string, tokenID *big.Int) (*big.Int, error) {
	result, err := c.call(ctx, contract, erc1155ABI, "balanceOf", common.HexToAddress(owner), tokenID)
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	if err := erc1155ABI.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	return balance, nil
}

func (c *chainClient) TokenOwnerOf(ctx context.Context, contract string, tokenID [32]byte) (string, error) {
	result, err := c.call(ctx, contract, lsp8ABI, "tokenOwnerOf", tokenID)
	if err != nil {
		return "", err
	}

	var owner common.Address
	if err := lsp8ABI.UnpackIntoInterface(&owner, "tokenOwnerOf", result); err != nil {
		return "", fmt.Errorf("failed to unpack tokenOwnerOf: %w", err)
	}
	return owner.Hex(), nil
}

func (c *chainClient) OwnerOf(ctx context.Context, contract string, tokenID *big.Int) (string, error) {
	result, err := c.call(ctx, contract, erc721ABI, "ownerOf", tokenID)
	if err != nil {
		return "", err
	}

	var owner common.Address
	if err := erc721ABI.UnpackIntoInterface(&owner, "ownerOf", result); err != nil {
		return "", fmt.Errorf("failed to unpack ownerOf: %w", err)
	}
	return owner.Hex(), nil
}

func (c *chainClient) FollowerCount(ctx context.Context, address string) (*big.Int, error) {
	result, err := c.call(ctx, c.followerRegistry.Hex(), followerABI, "followerCount", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}

	var count *big.Int
	if err := followerABI.UnpackIntoInterface(&count, "followerCount", result); err != nil {
		return nil, fmt.Errorf("failed to unpack followerCount: %w", err)
	}
	return count, nil
}

func (c *chainClient) IsFollowing(ctx context.Context, follower string, target string) (bool, error) {
	result, err := c.call(ctx, c.followerRegistry.Hex(), followerABI, "isFollowing", common.HexToAddress(follower), common.HexToAddress(target))
	if err != nil {
		return false, err
	}

	var following bool
	if err := followerABI.UnpackIntoInterface(&following, "isFollowing", result); err != nil {
		return false, fmt.Errorf("failed to unpack isFollowing: %w", err)
	}
	return following, nil
}

// ChainRegistry holds one client per configured ecosystem, keyed by chain
// code ("lukso", "ethereum").
type ChainRegistry struct {
	clients map[string]ChainClient
	logger  zerolog.Logger
}

func NewChainRegistry(cfg *koanf.Koanf, logger zerolog.Logger) (*ChainRegistry, error) {
	var chains []config.Chain
	if err := cfg.Unmarshal("chains", &chains); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chains config: %w", err)
	}

	registry := &ChainRegistry{
		clients: make(map[string]ChainClient, len(chains)),
		logger:  logger,
	}
	for _, chain := range chains {
		if chain.RPCURL == "" {
			logger.Warn().Msgf("chain %s has no rpc url, skipping", chain.Code)
			continue
		}
		client, err := newChainClient(chain, logger)
		if err != nil {
			return nil, err
		}
		registry.clients[chain.Code] = client
		logger.Info().Msgf("registered chain client %s -> %s", chain.Code, chain.RPCURL)
	}

	return registry, nil
}

func (r *ChainRegistry) Get(chainCode string) (ChainClient, error) {
	client, ok := r.clients[chainCode]
	if !ok {
		return nil, fmt.Errorf("no chain client configured for %q", chainCode)
	}
	return client, nil
}

// ChainForCategory maps a gating category to the ecosystem it is verified on.
func ChainForCategory(categoryType string) string {
	if categoryType == "ethereum_profile" {
		return "ethereum"
	}
	return "lukso"
}
