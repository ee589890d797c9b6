package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/module/shared"
	"github.com/curia-network/curia-cg-sub000/utils/config"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

type TokenStandard string

const (
	StandardLSP7    TokenStandard = "LSP7"
	StandardLSP8    TokenStandard = "LSP8"
	StandardERC20   TokenStandard = "ERC20"
	StandardERC721  TokenStandard = "ERC721"
	StandardERC1155 TokenStandard = "ERC1155"
	StandardUnknown TokenStandard = "UNKNOWN"
)

// TokenMetadata is the resolved off-chain description of a contract. Never
// persisted; cached in process keyed by lowercase address.
type TokenMetadata struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    int             `json:"decimals"`
	Standard    TokenStandard   `json:"standard"`
	IsDivisible bool            `json:"isDivisible"`
	IconURL     string          `json:"iconUrl,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Error       string          `json:"error,omitempty"`
}

type ProfileMetadata struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	AvatarURL   string          `json:"avatarUrl,omitempty"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Error       string          `json:"error,omitempty"`
}

// MetadataService resolves token and profile metadata from the GraphQL
// indexer of each ecosystem. It never fails a batch: addresses the indexer
// does not know come back as low-confidence fallback entries, and a dead
// indexer degrades every pending address the same way.
type MetadataService interface {
	BatchFetchTokenMetadata(ctx context.Context, chainCode string, addresses []string) map[string]TokenMetadata
	BatchFetchProfileMetadata(ctx context.Context, chainCode string, addresses []string) map[string]ProfileMetadata
}

type metadataService struct {
	logger      zerolog.Logger
	httpClient  shared.HTTPClient
	indexerURLs map[string]string
	ipfsGateway string
	tokenTTL    time.Duration
	profileTTL  time.Duration
	batchLimit  int

	mu           sync.Mutex
	tokenCache   map[string]cachedToken
	profileCache map[string]cachedProfile
}

type cachedToken struct {
	metadata  TokenMetadata
	expiresAt time.Time
}

type cachedProfile struct {
	metadata  ProfileMetadata
	expiresAt time.Time
}

func NewMetadataService(cfg *koanf.Koanf, logger zerolog.Logger) MetadataService {
	return NewMetadataServiceWithClient(cfg, logger, http.DefaultClient)
}

func NewMetadataServiceWithClient(cfg *koanf.Koanf, logger zerolog.Logger, client shared.HTTPClient) MetadataService {
	var chains []config.Chain
	if err := cfg.Unmarshal("chains", &chains); err != nil {
		logger.Error().Err(err).Msg("failed to unmarshal chains config for metadata service")
	}
	indexerURLs := make(map[string]string, len(chains))
	for _, chain := range chains {
		if chain.IndexerURL != "" {
			indexerURLs[chain.Code] = chain.IndexerURL
		}
	}

	tokenTTL := cfg.Duration("metadata.token-ttl")
	if tokenTTL == 0 {
		tokenTTL = time.Hour
	}
	profileTTL := cfg.Duration("metadata.profile-ttl")
	if profileTTL == 0 {
		profileTTL = 30 * time.Minute
	}
	batchLimit := cfg.Int("metadata.batch-limit")
	if batchLimit == 0 {
		batchLimit = 50
	}

	return &metadataService{
		logger:       logger,
		httpClient:   client,
		indexerURLs:  indexerURLs,
		ipfsGateway:  cfg.String("metadata.ipfs-gateway"),
		tokenTTL:     tokenTTL,
		profileTTL:   profileTTL,
		batchLimit:   batchLimit,
		tokenCache:   make(map[string]cachedToken),
		profileCache: make(map[string]cachedProfile),
	}
}

const assetQuery = `query Assets($addresses: [String!]) {
  Asset(where: { id: { _in: $addresses } }) {
    id
    lsp4TokenName
    lsp4TokenSymbol
    lsp4TokenType
    decimals
    isLSP7
    icons { url }
    images { url }
  }
}`

const profileQuery = `query Profiles($addresses: [String!]) {
  Profile(where: { id: { _in: $addresses } }) {
    id
    name
    fullName
    description
    profileImages { url }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type indexerAsset struct {
	ID              string  `json:"id"`
	LSP4TokenName   *string `json:"lsp4TokenName"`
	LSP4TokenSymbol *string `json:"lsp4TokenSymbol"`
	LSP4TokenType   *int    `json:"lsp4TokenType"`
	Decimals        *int    `json:"decimals"`
	IsLSP7          *bool   `json:"isLSP7"`
	Icons           []struct {
		URL string `json:"url"`
	} `json:"icons"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type indexerProfile struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	FullName      *string `json:"fullName"`
	Description   *string `json:"description"`
	ProfileImages []struct {
		URL string `json:"url"`
	} `json:"profileImages"`
}

type assetResponse struct {
	Data struct {
		Asset []indexerAsset `json:"Asset"`
	} `json:"data"`
}

type profileResponse struct {
	Data struct {
		Profile []indexerProfile `json:"Profile"`
	} `json:"data"`
}

func (s *metadataService) BatchFetchTokenMetadata(ctx context.Context, chainCode string, addresses []string) map[string]TokenMetadata {
	results := make(map[string]TokenMetadata, len(addresses))
	if len(addresses) > s.batchLimit {
		addresses = addresses[:s.batchLimit]
	}

	var misses []string
	for _, raw := range addresses {
		addr := strings.ToLower(raw)
		if _, seen := results[addr]; seen {
			continue
		}
		if hit, ok := s.getCachedToken(addr); ok {
			results[addr] = hit
		} else {
			misses = append(misses, addr)
		}
	}
	if len(misses) == 0 {
		return results
	}

	fetched, err := s.queryAssets(ctx, chainCode, misses)
	if err != nil {
		s.logger.Warn().Err(err).Msgf("token metadata query failed for %s, falling back for %d addresses", chainCode, len(misses))
	}

	// one entry per requested address, fetched or synthesized
	for _, addr := range misses {
		metadata, ok := fetched[addr]
		if !ok {
			metadata = fallbackTokenMetadata(addr)
		}
		s.setCachedToken(addr, metadata)
		results[addr] = metadata
	}
	return results
}

func (s *metadataService) BatchFetchProfileMetadata(ctx context.Context, chainCode string, addresses []string) map[string]ProfileMetadata {
	results := make(map[string]ProfileMetadata, len(addresses))
	if len(addresses) > s.batchLimit {
		addresses = addresses[:s.batchLimit]
	}

	var misses []string
	for _, raw := range addresses {
		addr := strings.ToLower(raw)
		if _, seen := results[addr]; seen {
			continue
		}
		if hit, ok := s.getCachedProfile(addr); ok {
			results[addr] = hit
		} else {
			misses = append(misses, addr)
		}
	}
	if len(misses) == 0 {
		return results
	}

	fetched, err := s.queryProfiles(ctx, chainCode, misses)
	if err != nil {
		s.logger.Warn().Err(err).Msgf("profile metadata query failed for %s, falling back for %d addresses", chainCode, len(misses))
	}

	for _, addr := range misses {
		metadata, ok := fetched[addr]
		if !ok {
			metadata = ProfileMetadata{
				Address:    addr,
				Name:       shortenAddress(addr),
				Confidence: ConfidenceLow,
				Error:      "profile not found in indexer",
			}
		}
		s.setCachedProfile(addr, metadata)
		results[addr] = metadata
	}
	return results
}

func (s *metadataService) queryAssets(ctx context.Context, chainCode string, addresses []string) (map[string]TokenMetadata, error) {
	body, err := s.postGraphql(ctx, chainCode, assetQuery, addresses)
	if err != nil {
		return nil, err
	}

	var parsed assetResponse
	if err := shared.ParseJSONResponse(body, &parsed); err != nil {
		return nil, err
	}

	results := make(map[string]TokenMetadata, len(parsed.Data.Asset))
	for _, asset := range parsed.Data.Asset {
		results[strings.ToLower(asset.ID)] = s.shapeToken(asset)
	}
	return results, nil
}

func (s *metadataService) queryProfiles(ctx context.Context, chainCode string, addresses []string) (map[string]ProfileMetadata, error) {
	body, err := s.postGraphql(ctx, chainCode, profileQuery, addresses)
	if err != nil {
		return nil, err
	}

	var parsed profileResponse
	if err := shared.ParseJSONResponse(body, &parsed); err != nil {
		return nil, err
	}

	results := make(map[string]ProfileMetadata, len(parsed.Data.Profile))
	for _, profile := range parsed.Data.Profile {
		results[strings.ToLower(profile.ID)] = s.shapeProfile(profile)
	}
	return results, nil
}

func (s *metadataService) postGraphql(ctx context.Context, chainCode string, query string, addresses []string) ([]byte, error) {
	url, ok := s.indexerURLs[chainCode]
	if !ok {
		return nil, &noIndexerError{chainCode: chainCode}
	}

	payload, err := json.Marshal(graphqlRequest{
		Query:     query,
		Variables: map[string]interface{}{"addresses": addresses},
	})
	if err != nil {
		return nil, err
	}

	body, _, err := shared.DoPostRequest(s.httpClient, url, nil, payload, 15)
	return body, err
}

type noIndexerError struct {
	chainCode string
}

func (e *noIndexerError) Error() string {
	return "no indexer configured for chain " + e.chainCode
}

// shapeToken computes the derived fields the verifier relies on. Divisibility
// is never trusted verbatim: an NFT-like declared token type forces
// non-divisible regardless of decimals.
func (s *metadataService) shapeToken(asset indexerAsset) TokenMetadata {
	metadata := TokenMetadata{
		Address:    strings.ToLower(asset.ID),
		Decimals:   18,
		Standard:   StandardUnknown,
		Confidence: ConfidenceMedium,
	}

	if asset.LSP4TokenName != nil {
		metadata.Name = *asset.LSP4TokenName
	} else {
		metadata.Name = shortenAddress(asset.ID)
	}
	if asset.LSP4TokenSymbol != nil {
		metadata.Symbol = *asset.LSP4TokenSymbol
	}
	if asset.Decimals != nil {
		metadata.Decimals = *asset.Decimals
	}

	nftLike := false
	if asset.LSP4TokenType != nil && *asset.LSP4TokenType != LSP4TokenTypeToken {
		nftLike = true
	}
	if asset.IsLSP7 != nil {
		if *asset.IsLSP7 && !nftLike {
			metadata.Standard = StandardLSP7
		} else if !*asset.IsLSP7 {
			metadata.Standard = StandardLSP8
			nftLike = true
		} else {
			metadata.Standard = StandardLSP7
		}
	}

	if nftLike {
		metadata.IsDivisible = false
		metadata.Decimals = 0
	} else {
		metadata.IsDivisible = metadata.Decimals > 0
	}

	if len(asset.Icons) > 0 {
		metadata.IconURL = shared.ResolveContentURL(asset.Icons[0].URL, s.ipfsGateway)
	}
	if len(asset.Images) > 0 {
		metadata.ImageURL = shared.ResolveContentURL(asset.Images[0].URL, s.ipfsGateway)
	}

	if asset.LSP4TokenName != nil && asset.LSP4TokenSymbol != nil && asset.Decimals != nil {
		metadata.Confidence = ConfidenceHigh
	}
	return metadata
}

func (s *metadataService) shapeProfile(profile indexerProfile) ProfileMetadata {
	metadata := ProfileMetadata{
		Address:    strings.ToLower(profile.ID),
		Confidence: ConfidenceHigh,
	}
	switch {
	case profile.Name != nil && *profile.Name != "":
		metadata.Name = *profile.Name
	case profile.FullName != nil && *profile.FullName != "":
		metadata.Name = *profile.FullName
	default:
		metadata.Name = shortenAddress(profile.ID)
		metadata.Confidence = ConfidenceMedium
	}
	if profile.Description != nil {
		metadata.Description = *profile.Description
	}
	if len(profile.ProfileImages) > 0 {
		metadata.AvatarURL = shared.ResolveContentURL(profile.ProfileImages[0].URL, s.ipfsGateway)
	}
	return metadata
}

func fallbackTokenMetadata(addr string) TokenMetadata {
	return TokenMetadata{
		Address:     addr,
		Name:        shortenAddress(addr),
		Symbol:      "UNKNOWN",
		Decimals:    18,
		Standard:    StandardUnknown,
		IsDivisible: true,
		Confidence:  ConfidenceLow,
		Error:       "metadata unavailable from indexer",
	}
}

func shortenAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func (s *metadataService) getCachedToken(addr string) (TokenMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokenCache[addr]
	if !ok || time.Now().After(entry.expiresAt) {
		return TokenMetadata{}, false
	}
	return entry.metadata, true
}

func (s *metadataService) setCachedToken(addr string, metadata TokenMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenCache[addr] = cachedToken{metadata: metadata, expiresAt: time.Now().Add(s.tokenTTL)}
}

func (s *metadataService) getCachedProfile(addr string) (ProfileMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.profileCache[addr]
	if !ok || time.Now().After(entry.expiresAt) {
		return ProfileMetadata{}, false
	}
	return entry.metadata, true
}

func (s *metadataService) setCachedProfile(addr string, metadata ProfileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCache[addr] = cachedProfile{metadata: metadata, expiresAt: time.Now().Add(s.profileTTL)}
}
