package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	knownToken   = "0x4444444444444444444444444444444444444444"
	missingToken = "0x5555555555555555555555555555555555555555"
)

// fakeHTTPClient scripts indexer responses and counts round trips.
type fakeHTTPClient struct {
	mu       sync.Mutex
	requests int
	respond  func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeHTTPClient) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func jsonResponse(t *testing.T, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func assetPayload(assets ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{"Asset": assets},
	}
}

func profilePayload(profiles ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{"Profile": profiles},
	}
}

func newMetadata(t *testing.T, client *fakeHTTPClient, overrides map[string]interface{}) service.MetadataService {
	t.Helper()
	settings := map[string]interface{}{
		"chains": []map[string]interface{}{
			{"code": "lukso", "indexer-url": "https://indexer.test.invalid/graphql"},
		},
		"metadata.ipfs-gateway": "https://gateway.test.invalid/ipfs/",
	}
	for key, value := range overrides {
		settings[key] = value
	}
	return service.NewMetadataServiceWithClient(newTestConfig(settings), zerolog.Nop(), client)
}

func TestTokenMetadataResolved(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, assetPayload(map[string]interface{}{
				"id":              knownToken,
				"lsp4TokenName":   "Test Token",
				"lsp4TokenSymbol": "TST",
				"lsp4TokenType":   0,
				"decimals":        18,
				"isLSP7":          true,
				"icons":           []map[string]string{{"url": "ipfs://QmIcon"}},
			})), nil
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})
	meta := results[knownToken]
	assert.Equal(t, "Test Token", meta.Name)
	assert.Equal(t, "TST", meta.Symbol)
	assert.Equal(t, 18, meta.Decimals)
	assert.Equal(t, service.StandardLSP7, meta.Standard)
	assert.True(t, meta.IsDivisible)
	assert.Equal(t, service.ConfidenceHigh, meta.Confidence)
	assert.Equal(t, "https://gateway.test.invalid/ipfs/QmIcon", meta.IconURL)
}

func TestTokenMetadataFallbackForUnknownAddress(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, assetPayload(map[string]interface{}{
				"id":              knownToken,
				"lsp4TokenSymbol": "TST",
				"isLSP7":          true,
			})), nil
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken, missingToken})
	require.Len(t, results, 2)

	fallback := results[missingToken]
	assert.Equal(t, "UNKNOWN", fallback.Symbol)
	assert.Equal(t, service.ConfidenceLow, fallback.Confidence)
	assert.Equal(t, "metadata unavailable from indexer", fallback.Error)
	assert.True(t, fallback.IsDivisible)
	assert.Equal(t, 18, fallback.Decimals)
}

func TestTokenMetadataIndexerDownDegradesAll(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken, missingToken})
	require.Len(t, results, 2)
	for _, meta := range results {
		assert.Equal(t, service.ConfidenceLow, meta.Confidence)
		assert.NotEmpty(t, meta.Error)
	}
}

func TestTokenMetadataNoIndexerConfigured(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			t.Fatal("no request expected without an indexer")
			return nil, nil
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchTokenMetadata(context.Background(), "ethereum", []string{knownToken})
	assert.Equal(t, service.ConfidenceLow, results[knownToken].Confidence)
	assert.Equal(t, 0, client.requestCount())
}

func TestTokenMetadataNftTypeForcesNonDivisible(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			// declared NFT type wins over nonzero decimals
			return jsonResponse(t, assetPayload(map[string]interface{}{
				"id":            knownToken,
				"lsp4TokenType": 1,
				"decimals":      18,
				"isLSP7":        true,
			})), nil
		},
	}
	svc := newMetadata(t, client, nil)

	meta := svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})[knownToken]
	assert.False(t, meta.IsDivisible)
	assert.Equal(t, 0, meta.Decimals)
}

func TestTokenMetadataCached(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, assetPayload(map[string]interface{}{
				"id":     knownToken,
				"isLSP7": true,
			})), nil
		},
	}
	svc := newMetadata(t, client, nil)

	svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})
	svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})
	assert.Equal(t, 1, client.requestCount())
}

func TestTokenMetadataCacheExpires(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, assetPayload()), nil
		},
	}
	svc := newMetadata(t, client, map[string]interface{}{"metadata.token-ttl": "10ms"})

	svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})
	time.Sleep(30 * time.Millisecond)
	svc.BatchFetchTokenMetadata(context.Background(), "lukso", []string{knownToken})
	assert.Equal(t, 2, client.requestCount())
}

func TestTokenMetadataBatchLimit(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, assetPayload()), nil
		},
	}
	svc := newMetadata(t, client, map[string]interface{}{"metadata.batch-limit": 2})

	addresses := []string{knownToken, missingToken, "0x6666666666666666666666666666666666666666"}
	results := svc.BatchFetchTokenMetadata(context.Background(), "lukso", addresses)
	assert.Len(t, results, 2)
}

func TestProfileMetadataResolved(t *testing.T) {
	profileAddress := "0x7777777777777777777777777777777777777777"
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, profilePayload(map[string]interface{}{
				"id":            profileAddress,
				"name":          "alice",
				"description":   "hello",
				"profileImages": []map[string]string{{"url": "ipfs://QmAvatar"}},
			})), nil
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchProfileMetadata(context.Background(), "lukso", []string{profileAddress})
	profile := results[profileAddress]
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, "hello", profile.Description)
	assert.Equal(t, service.ConfidenceHigh, profile.Confidence)
	assert.Equal(t, "https://gateway.test.invalid/ipfs/QmAvatar", profile.AvatarURL)
}

func TestProfileMetadataFallback(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(t, profilePayload()), nil
		},
	}
	svc := newMetadata(t, client, nil)

	results := svc.BatchFetchProfileMetadata(context.Background(), "lukso", []string{missingToken})
	profile := results[missingToken]
	assert.Equal(t, service.ConfidenceLow, profile.Confidence)
	assert.Equal(t, "profile not found in indexer", profile.Error)
	assert.NotEmpty(t, profile.Name)
}
