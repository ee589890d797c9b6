package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

type DivisibilityKind string

const (
	DivisibilityDivisible    DivisibilityKind = "divisible"
	DivisibilityNonDivisible DivisibilityKind = "non_divisible"
	DivisibilityNotLsp7      DivisibilityKind = "not_lsp7"
	DivisibilityUnknown      DivisibilityKind = "unknown"
)

type NonDivisibleReason string

const (
	ReasonLsp4Nft      NonDivisibleReason = "LSP4_NFT"
	ReasonDecimalsZero NonDivisibleReason = "DECIMALS_ZERO"
)

// Lsp7Classification is the divisibility verdict for one contract. Decimals
// is only meaningful for the divisible kind; Reason only for non-divisible;
// Note only for unknown.
type Lsp7Classification struct {
	Kind     DivisibilityKind   `json:"kind"`
	Decimals uint8              `json:"decimals,omitempty"`
	Reason   NonDivisibleReason `json:"reason,omitempty"`
	Note     string             `json:"note,omitempty"`
}

// ChainProvider narrows ChainRegistry for the services that only need
// lookups, so tests can substitute fakes.
type ChainProvider interface {
	Get(chainCode string) (ChainClient, error)
}

type ClassifierService interface {
	ClassifyLsp7(ctx context.Context, chainCode string, address string) Lsp7Classification
}

type classifierService struct {
	chains   ChainProvider
	logger   zerolog.Logger
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedClassification
}

type cachedClassification struct {
	classification Lsp7Classification
	expiresAt      time.Time
}

func NewClassifierService(cfg *koanf.Koanf, chains ChainProvider, logger zerolog.Logger) ClassifierService {
	cacheTTL := cfg.Duration("classifier.cache-ttl")
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	return &classifierService{
		chains:   chains,
		logger:   logger,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedClassification),
	}
}

// ClassifyLsp7 decides whether the contract is a fungible LSP7 asset and, if
// so, whether it has fractional units. Never returns an error: provider and
// contract failures collapse into the unknown kind so configurator forms can
// still render.
func (s *classifierService) ClassifyLsp7(ctx context.Context, chainCode string, address string) Lsp7Classification {
	client, err := s.chains.Get(chainCode)
	if err != nil {
		return Lsp7Classification{Kind: DivisibilityUnknown, Note: err.Error()}
	}

	cacheKey := client.Endpoint() + "|" + strings.ToLower(address)
	if hit, ok := s.getCached(cacheKey); ok {
		return hit
	}

	classification := s.classify(ctx, client, address)
	s.setCached(cacheKey, classification)
	return classification
}

func (s *classifierService) classify(ctx context.Context, client ChainClient, address string) Lsp7Classification {
	supported, err := client.SupportsInterface(ctx, address, InterfaceIDLSP7)
	if err != nil {
		s.logger.Debug().Err(err).Msgf("supportsInterface failed for %s", address)
		return Lsp7Classification{Kind: DivisibilityNotLsp7}
	}
	if !supported {
		return Lsp7Classification{Kind: DivisibilityNotLsp7}
	}

	// the declared token type short-circuits the decimals read
	tokenType, err := client.GetData(ctx, address, LSP4TokenTypeKey)
	if err == nil && isNftTokenType(tokenType) {
		return Lsp7Classification{Kind: DivisibilityNonDivisible, Reason: ReasonLsp4Nft}
	}

	decimals, err := client.Decimals(ctx, address)
	if err != nil {
		return Lsp7Classification{Kind: DivisibilityUnknown, Note: "decimals missing or reverted"}
	}
	if decimals == 0 {
		return Lsp7Classification{Kind: DivisibilityNonDivisible, Reason: ReasonDecimalsZero}
	}
	return Lsp7Classification{Kind: DivisibilityDivisible, Decimals: decimals}
}

// isNftTokenType reports whether the raw LSP4TokenType value equals the NFT
// sentinel. The value is an abi-encoded uint256; a bare or empty slice means
// the key was never set.
func isNftTokenType(value []byte) bool {
	if len(value) == 0 {
		return false
	}
	for i := 0; i < len(value)-1; i++ {
		if value[i] != 0 {
			return false
		}
	}
	return value[len(value)-1] == LSP4TokenTypeNFT
}

func (s *classifierService) getCached(key string) (Lsp7Classification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return Lsp7Classification{}, false
	}
	return entry.classification, true
}

func (s *classifierService) setCached(key string, classification Lsp7Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedClassification{
		classification: classification,
		expiresAt:      time.Now().Add(s.cacheTTL),
	}
}
