package service_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	holderAddress = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	otherAddress  = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	tokenContract = "0x2222222222222222222222222222222222222222"
)

func newVerifier(client *fakeChainClient, tokens map[string]service.TokenMetadata) service.VerifierService {
	return service.NewVerifierService(
		singleChainProvider("lukso", client),
		&fakeMetadataService{tokens: tokens},
		nil,
		nil,
		zerolog.Nop(),
	)
}

func TestVerifyNativeBalanceBoundary(t *testing.T) {
	client := &fakeChainClient{
		nativeBalanceFn: func(_ string) (*big.Int, error) {
			return big.NewInt(1000), nil
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{
		{ID: "exact", Type: schema.RequirementUpHoldsLyx, NativeBalance: &schema.NativeBalanceConfig{MinAmount: "1000"}},
		{ID: "above", Type: schema.RequirementUpHoldsLyx, NativeBalance: &schema.NativeBalanceConfig{MinAmount: "999"}},
		{ID: "below", Type: schema.RequirementUpHoldsLyx, NativeBalance: &schema.NativeBalanceConfig{MinAmount: "1001"}},
	}

	results := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)
	require.Len(t, results, 3)
	// a balance exactly at the minimum satisfies the requirement
	assert.True(t, results["exact"].IsMet)
	assert.True(t, results["above"].IsMet)
	assert.False(t, results["below"].IsMet)
	assert.Equal(t, "1000", results["exact"].CurrentBalance)
}

func TestVerifyFungibleDeclaredDecimalsWin(t *testing.T) {
	client := &fakeChainClient{
		balanceOfFn: func(contract string, owner string) (*big.Int, error) {
			assert.Equal(t, tokenContract, contract)
			return big.NewInt(5_000_000), nil
		},
	}
	declared := 6
	tokens := map[string]service.TokenMetadata{
		tokenContract: {Address: tokenContract, Symbol: "TST", Decimals: 18, IsDivisible: true},
	}
	verifier := newVerifier(client, tokens)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsToken,
		FungibleToken: &schema.FungibleTokenConfig{
			ContractAddress: tokenContract,
			MinAmount:       "1000000",
			Decimals:        &declared,
		},
	}}

	results := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)
	result := results["r1"]
	assert.True(t, result.IsMet)
	assert.Equal(t, "5000000", result.CurrentBalance)
	// decimals recorded at lock creation beat resolver decimals
	assert.Equal(t, "5", result.FormattedCurrent)
	assert.Equal(t, "1", result.FormattedRequired)
}

func TestVerifyFungibleResolverDecimalsFallback(t *testing.T) {
	client := &fakeChainClient{
		balanceOfFn: func(_ string, _ string) (*big.Int, error) {
			return new(big.Int).SetUint64(2_000_000_000_000_000_000), nil
		},
	}
	tokens := map[string]service.TokenMetadata{
		tokenContract: {Address: tokenContract, Symbol: "TST", Decimals: 18, IsDivisible: true},
	}
	verifier := newVerifier(client, tokens)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsToken,
		FungibleToken: &schema.FungibleTokenConfig{
			ContractAddress: tokenContract,
			MinAmount:       "1000000000000000000",
		},
	}}

	result := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)["r1"]
	assert.True(t, result.IsMet)
	assert.Equal(t, "2", result.FormattedCurrent)
}

func TestVerifyCollectionCount(t *testing.T) {
	client := &fakeChainClient{
		balanceOfFn: func(_ string, _ string) (*big.Int, error) {
			return big.NewInt(3), nil
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsNft,
		NonFungibleToken: &schema.NonFungibleTokenConfig{
			ContractAddress: tokenContract,
			MinCount:        "2",
		},
	}}

	result := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)["r1"]
	assert.True(t, result.IsMet)
	assert.Equal(t, "3", result.CurrentBalance)
	assert.Equal(t, "3", result.FormattedCurrent)
}

func TestVerifySpecificLsp8TokenEncoding(t *testing.T) {
	tokenID := "42"
	var gotTokenID [32]byte
	client := &fakeChainClient{
		tokenOwnerOfFn: func(_ string, id [32]byte) (string, error) {
			gotTokenID = id
			return holderAddress, nil
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsNft,
		NonFungibleToken: &schema.NonFungibleTokenConfig{
			ContractAddress: tokenContract,
			TokenID:         &tokenID,
		},
	}}

	result := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)["r1"]
	assert.True(t, result.IsMet)

	expected, err := service.FormatTokenIDAsBytes32("42")
	require.NoError(t, err)
	assert.Equal(t, expected, gotTokenID)
}

func TestVerifySpecificTokenOwnerMismatch(t *testing.T) {
	tokenID := "7"
	client := &fakeChainClient{
		tokenOwnerOfFn: func(_ string, _ [32]byte) (string, error) {
			return otherAddress, nil
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsNft,
		NonFungibleToken: &schema.NonFungibleTokenConfig{
			ContractAddress: tokenContract,
			TokenID:         &tokenID,
		},
	}}

	result := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)["r1"]
	assert.False(t, result.IsMet)
	assert.Equal(t, "0", result.CurrentBalance)
	assert.Equal(t, "1", result.RequiredBalance)
}

func TestVerifySpecificTokenBurnedResolvesNotOwned(t *testing.T) {
	tokenID := "9"
	client := &fakeChainClient{
		tokenOwnerOfFn: func(_ string, _ [32]byte) (string, error) {
			return "", fmt.Errorf("execution reverted: nonexistent token")
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{{
		ID:   "r1",
		Type: schema.RequirementUpHoldsNft,
		NonFungibleToken: &schema.NonFungibleTokenConfig{
			ContractAddress: tokenContract,
			TokenID:         &tokenID,
		},
	}}

	result := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)["r1"]
	assert.False(t, result.IsMet)
	assert.Equal(t, "0", result.CurrentBalance)
}

func TestVerifyFailedReadIsolated(t *testing.T) {
	failing := "0x3333333333333333333333333333333333333333"
	client := &fakeChainClient{
		balanceOfFn: func(contract string, _ string) (*big.Int, error) {
			if contract == failing {
				return nil, fmt.Errorf("rpc timeout")
			}
			return big.NewInt(10), nil
		},
	}
	verifier := newVerifier(client, nil)

	reqs := []schema.Requirement{
		{ID: "ok", Type: schema.RequirementUpHoldsToken, FungibleToken: &schema.FungibleTokenConfig{ContractAddress: tokenContract, MinAmount: "5"}},
		{ID: "bad", Type: schema.RequirementUpHoldsToken, FungibleToken: &schema.FungibleTokenConfig{ContractAddress: failing, MinAmount: "5"}},
	}

	results := verifier.VerifyTokenRequirements(context.Background(), "lukso", holderAddress, reqs)
	assert.True(t, results["ok"].IsMet)
	assert.False(t, results["bad"].IsMet)
	assert.NotEmpty(t, results["bad"].Error)
}

func TestFormatTokenIDAsBytes32(t *testing.T) {
	encoded, err := service.FormatTokenIDAsBytes32("42")
	assert.NoError(t, err)
	assert.Equal(t, byte(42), encoded[31])
	for i := 0; i < 31; i++ {
		assert.Equal(t, byte(0), encoded[i])
	}

	_, err = service.FormatTokenIDAsBytes32("not-a-number")
	assert.Error(t, err)

	_, err = service.FormatTokenIDAsBytes32("-1")
	assert.Error(t, err)

	over := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = service.FormatTokenIDAsBytes32(over.String())
	assert.Error(t, err)
}
