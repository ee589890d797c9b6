package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RequirementResult is the outcome of checking one requirement for one
// address. CurrentBalance/RequiredBalance are decimal strings in the token's
// smallest unit; the Formatted fields apply the resolved decimals for
// display.
type RequirementResult struct {
	RequirementID     string         `json:"requirementId"`
	Type              string         `json:"type"`
	DisplayName       string         `json:"displayName"`
	IsMet             bool           `json:"isMet"`
	CurrentBalance    string         `json:"currentBalance"`
	RequiredBalance   string         `json:"requiredBalance"`
	FormattedCurrent  string         `json:"formattedCurrent,omitempty"`
	FormattedRequired string         `json:"formattedRequired,omitempty"`
	Metadata          *TokenMetadata `json:"metadata,omitempty"`
	Error             string         `json:"error,omitempty"`
}

type VerifierService interface {
	VerifyTokenRequirements(ctx context.Context, chainCode string, address string, reqs []schema.Requirement) map[string]RequirementResult
}

type verifierService struct {
	chains          ChainProvider
	metadataService MetadataService
	throttler       *shared.ContractThrottler
	redisClient     *shared.RedisClient
	logger          zerolog.Logger
}

func NewVerifierService(chains ChainProvider, metadataService MetadataService, throttler *shared.ContractThrottler, redisClient *shared.RedisClient, logger zerolog.Logger) VerifierService {
	return &verifierService{
		chains:          chains,
		metadataService: metadataService,
		throttler:       throttler,
		redisClient:     redisClient,
		logger:          logger,
	}
}

// VerifyTokenRequirements resolves metadata for every referenced contract
// first, then runs all chain reads concurrently. A failed read marks only
// its own requirement unsatisfied; siblings keep their results.
func (s *verifierService) VerifyTokenRequirements(ctx context.Context, chainCode string, address string, reqs []schema.Requirement) map[string]RequirementResult {
	results := make(map[string]RequirementResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	client, err := s.chains.Get(chainCode)
	if err != nil {
		for i := range reqs {
			req := &reqs[i]
			results[requirementKey(req)] = failedResult(req, nil, err.Error())
		}
		return results
	}

	// metadata resolves before any balance is interpreted
	metadata := s.metadataService.BatchFetchTokenMetadata(ctx, chainCode, contractAddresses(reqs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := range reqs {
		req := &reqs[i]
		g.Go(func() error {
			result := s.verifyOne(gctx, client, address, req, metadata)
			mu.Lock()
			results[requirementKey(req)] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func contractAddresses(reqs []schema.Requirement) []string {
	seen := make(map[string]bool)
	var addresses []string
	for i := range reqs {
		var contract string
		switch {
		case reqs[i].FungibleToken != nil:
			contract = strings.ToLower(reqs[i].FungibleToken.ContractAddress)
		case reqs[i].NonFungibleToken != nil:
			contract = strings.ToLower(reqs[i].NonFungibleToken.ContractAddress)
		}
		if contract != "" && !seen[contract] {
			seen[contract] = true
			addresses = append(addresses, contract)
		}
	}
	return addresses
}

func requirementKey(req *schema.Requirement) string {
	if req.ID != "" {
		return req.ID
	}
	switch {
	case req.FungibleToken != nil:
		return string(req.Type) + ":" + strings.ToLower(req.FungibleToken.ContractAddress)
	case req.NonFungibleToken != nil:
		return string(req.Type) + ":" + strings.ToLower(req.NonFungibleToken.ContractAddress)
	default:
		return string(req.Type)
	}
}

func (s *verifierService) verifyOne(ctx context.Context, client ChainClient, address string, req *schema.Requirement, metadata map[string]TokenMetadata) RequirementResult {
	switch req.Type {
	case schema.RequirementUpHoldsLyx, schema.RequirementEthHoldsEth:
		return s.verifyNativeBalance(ctx, client, address, req)
	case schema.RequirementUpHoldsToken, schema.RequirementEthHoldsErc20:
		return s.verifyFungibleBalance(ctx, client, address, req, metadata)
	case schema.RequirementUpHoldsNft, schema.RequirementEthHoldsErc721, schema.RequirementEthHoldsErc1155:
		return s.verifyNonFungible(ctx, client, address, req, metadata)
	default:
		return failedResult(req, nil, fmt.Sprintf("unsupported requirement type %q", req.Type))
	}
}

func (s *verifierService) verifyNativeBalance(ctx context.Context, client ChainClient, address string, req *schema.Requirement) RequirementResult {
	required := minAmountOrOne(req.NativeBalance.MinAmount)

	balance, err := client.NativeBalance(ctx, address)
	if err != nil {
		s.logger.Debug().Err(err).Msgf("native balance read failed for %s", address)
		return failedResult(req, nil, "balance read failed")
	}

	return compareResult(req, nil, balance, required, 18)
}

func (s *verifierService) verifyFungibleBalance(ctx context.Context, client ChainClient, address string, req *schema.Requirement, metadata map[string]TokenMetadata) RequirementResult {
	cfg := req.FungibleToken
	contract := strings.ToLower(cfg.ContractAddress)
	meta := lookupMetadata(metadata, contract)
	required := minAmountOrOne(cfg.MinAmount)

	if s.isThrottled(client.ChainCode(), contract) {
		return failedResult(req, meta, "contract reads are temporarily throttled")
	}

	balance, err := client.BalanceOf(ctx, contract, address)
	if err != nil {
		s.recordFailure(client.ChainCode(), contract, err)
		return failedResult(req, meta, "balance read failed")
	}

	// declared decimals recorded at lock creation beat resolver decimals
	decimals := 18
	if meta != nil {
		decimals = meta.Decimals
	}
	if cfg.Decimals != nil {
		decimals = *cfg.Decimals
	}

	return compareResult(req, meta, balance, required, decimals)
}

func (s *verifierService) verifyNonFungible(ctx context.Context, client ChainClient, address string, req *schema.Requirement, metadata map[string]TokenMetadata) RequirementResult {
	cfg := req.NonFungibleToken
	contract := strings.ToLower(cfg.ContractAddress)
	meta := lookupMetadata(metadata, contract)

	if s.isThrottled(client.ChainCode(), contract) {
		return failedResult(req, meta, "contract reads are temporarily throttled")
	}

	// a specific token id means "own this exact token"; configured amounts
	// are ignored
	if cfg.TokenID != nil {
		return s.verifySpecificToken(ctx, client, address, req, meta)
	}

	required := minAmountOrOne(cfg.MinCount)

	var balance *big.Int
	var err error
	switch req.Type {
	case schema.RequirementEthHoldsErc1155:
		err = fmt.Errorf("erc1155 requirement needs a token id")
	default:
		balance, err = client.BalanceOf(ctx, contract, address)
	}
	if err != nil {
		s.recordFailure(client.ChainCode(), contract, err)
		return failedResult(req, meta, "ownership read failed")
	}

	// collection counts are whole tokens
	return compareResult(req, meta, balance, required, 0)
}

func (s *verifierService) verifySpecificToken(ctx context.Context, client ChainClient, address string, req *schema.Requirement, meta *TokenMetadata) RequirementResult {
	cfg := req.NonFungibleToken
	contract := strings.ToLower(cfg.ContractAddress)

	var owner string
	var err error
	switch req.Type {
	case schema.RequirementEthHoldsErc721:
		tokenID, ok := new(big.Int).SetString(*cfg.TokenID, 10)
		if !ok {
			return failedResult(req, meta, fmt.Sprintf("invalid token id %q", *cfg.TokenID))
		}
		owner, err = client.OwnerOf(ctx, contract, tokenID)
	case schema.RequirementEthHoldsErc1155:
		tokenID, ok := new(big.Int).SetString(*cfg.TokenID, 10)
		if !ok {
			return failedResult(req, meta, fmt.Sprintf("invalid token id %q", *cfg.TokenID))
		}
		var balance *big.Int
		balance, err = client.BalanceOf1155(ctx, contract, address, tokenID)
		if err != nil {
			// burned or nonexistent ids resolve to "not owned", not an abort
			return failedResult(req, meta, "")
		}
		return compareResult(req, meta, balance, big.NewInt(1), 0)
	default:
		var encoded [32]byte
		encoded, err = FormatTokenIDAsBytes32(*cfg.TokenID)
		if err != nil {
			return failedResult(req, meta, err.Error())
		}
		owner, err = client.TokenOwnerOf(ctx, contract, encoded)
	}
	if err != nil {
		// burned or nonexistent tokens resolve to "not owned", not an abort
		s.logger.Debug().Err(err).Msgf("owner lookup failed for %s token %s", contract, *cfg.TokenID)
		return failedResult(req, meta, "")
	}

	owned := strings.EqualFold(owner, address)
	current := "0"
	if owned {
		current = "1"
	}
	return RequirementResult{
		RequirementID:     requirementKey(req),
		Type:              string(req.Type),
		DisplayName:       req.DisplayName(),
		IsMet:             owned,
		CurrentBalance:    current,
		RequiredBalance:   "1",
		FormattedCurrent:  current,
		FormattedRequired: "1",
		Metadata:          meta,
	}
}

func (s *verifierService) isThrottled(chainCode string, contract string) bool {
	return s.throttler != nil && s.throttler.IsContractThrottled(chainCode, contract)
}

func (s *verifierService) recordFailure(chainCode string, contract string, err error) {
	s.logger.Debug().Err(err).Msgf("chain read failed for %s on %s", contract, chainCode)
	if s.throttler == nil {
		return
	}
	if s.throttler.ContractThrottle(chainCode, contract) && s.redisClient != nil {
		alertedKey := s.throttler.GetAlertedKey(chainCode, contract)
		shared.SendSlackAlert(alertedKey, fmt.Sprintf("contract %s on %s keeps failing reads, throttled", contract, chainCode), s.logger, s.redisClient)
	}
}

func lookupMetadata(metadata map[string]TokenMetadata, contract string) *TokenMetadata {
	if meta, ok := metadata[contract]; ok {
		return &meta
	}
	return nil
}

// minAmountOrOne parses the configured minimum; empty or unparsable
// minimums default to 1 smallest unit.
func minAmountOrOne(amount string) *big.Int {
	if amount == "" {
		return big.NewInt(1)
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return big.NewInt(1)
	}
	return n
}

// compareResult applies the >= threshold rule: a balance exactly equal to
// the minimum satisfies the requirement.
func compareResult(req *schema.Requirement, meta *TokenMetadata, balance *big.Int, required *big.Int, decimals int) RequirementResult {
	if decimals < 0 {
		decimals = 0
	}
	return RequirementResult{
		RequirementID:     requirementKey(req),
		Type:              string(req.Type),
		DisplayName:       req.DisplayName(),
		IsMet:             balance.Cmp(required) >= 0,
		CurrentBalance:    balance.String(),
		RequiredBalance:   required.String(),
		FormattedCurrent:  formatUnits(balance, decimals),
		FormattedRequired: formatUnits(required, decimals),
		Metadata:          meta,
	}
}

func failedResult(req *schema.Requirement, meta *TokenMetadata, errMsg string) RequirementResult {
	return RequirementResult{
		RequirementID:   requirementKey(req),
		Type:            string(req.Type),
		DisplayName:     req.DisplayName(),
		IsMet:           false,
		CurrentBalance:  "0",
		RequiredBalance: requiredAmountOf(req),
		Metadata:        meta,
		Error:           errMsg,
	}
}

func requiredAmountOf(req *schema.Requirement) string {
	switch {
	case req.NativeBalance != nil:
		return minAmountOrOne(req.NativeBalance.MinAmount).String()
	case req.FungibleToken != nil:
		return minAmountOrOne(req.FungibleToken.MinAmount).String()
	case req.NonFungibleToken != nil:
		if req.NonFungibleToken.TokenID != nil {
			return "1"
		}
		return minAmountOrOne(req.NonFungibleToken.MinCount).String()
	default:
		return "1"
	}
}

// formatUnits renders a raw smallest-unit amount with the given decimals,
// using exact decimal arithmetic rather than floats.
func formatUnits(raw *big.Int, decimals int) string {
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// FormatTokenIDAsBytes32 encodes a decimal token id as the fixed-width
// big-endian value LSP8 token ids use on the wire. Values above 256 bits are
// rejected.
func FormatTokenIDAsBytes32(tokenID string) ([32]byte, error) {
	var encoded [32]byte
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || n.Sign() < 0 {
		return encoded, fmt.Errorf("invalid token id %q", tokenID)
	}
	if n.BitLen() > 256 {
		return encoded, fmt.Errorf("token id %q does not fit in 256 bits", tokenID)
	}
	n.FillBytes(encoded[:])
	return encoded, nil
}
