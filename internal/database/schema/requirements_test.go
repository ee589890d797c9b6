package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodAddress = "0x1111111111111111111111111111111111111111"

func TestRequirementWireFormat(t *testing.T) {
	req := schema.Requirement{
		ID:       "r1",
		Type:     schema.RequirementUpHoldsToken,
		Category: schema.CategoryToken,
		FungibleToken: &schema.FungibleTokenConfig{
			ContractAddress: goodAddress,
			MinAmount:       "1000000000000000000",
		},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	// the payload lives under a single "config" key
	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Contains(t, wire, "config")

	var decoded schema.Requirement
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req.ID, decoded.ID)
	assert.Equal(t, req.Type, decoded.Type)
	require.NotNil(t, decoded.FungibleToken)
	assert.Equal(t, req.FungibleToken.ContractAddress, decoded.FungibleToken.ContractAddress)
	assert.Equal(t, req.FungibleToken.MinAmount, decoded.FungibleToken.MinAmount)
	assert.Nil(t, decoded.NativeBalance)
}

func TestRequirementRoundTripAllTypes(t *testing.T) {
	tokenID := "42"
	reqs := []schema.Requirement{
		{ID: "native", Type: schema.RequirementUpHoldsLyx, NativeBalance: &schema.NativeBalanceConfig{MinAmount: "100"}},
		{ID: "nft", Type: schema.RequirementUpHoldsNft, NonFungibleToken: &schema.NonFungibleTokenConfig{ContractAddress: goodAddress, TokenID: &tokenID}},
		{ID: "count", Type: schema.RequirementUpFollowerCount, FollowerCount: &schema.FollowerCountConfig{MinCount: 50}},
		{ID: "follows", Type: schema.RequirementUpMustFollow, FollowTarget: &schema.FollowTargetConfig{Address: goodAddress}},
	}

	for _, req := range reqs {
		data, err := json.Marshal(req)
		require.NoError(t, err, req.ID)

		var decoded schema.Requirement
		require.NoError(t, json.Unmarshal(data, &decoded), req.ID)
		assert.Equal(t, req, decoded, req.ID)
	}
}

func TestRequirementUnknownTypeRejected(t *testing.T) {
	var decoded schema.Requirement
	err := json.Unmarshal([]byte(`{"id":"x","type":"holdsDoge","config":{}}`), &decoded)
	assert.ErrorContains(t, err, "unknown requirement type")
}

func TestRequirementValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     schema.Requirement
		wantErr string
	}{
		{
			name:    "missing config",
			req:     schema.Requirement{ID: "r", Type: schema.RequirementUpHoldsLyx},
			wantErr: "missing native balance config",
		},
		{
			name: "bad contract address",
			req: schema.Requirement{
				ID:            "r",
				Type:          schema.RequirementUpHoldsToken,
				FungibleToken: &schema.FungibleTokenConfig{ContractAddress: "not-an-address", MinAmount: "1"},
			},
			wantErr: "invalid contract address",
		},
		{
			name: "negative amount",
			req: schema.Requirement{
				ID:            "r",
				Type:          schema.RequirementUpHoldsLyx,
				NativeBalance: &schema.NativeBalanceConfig{MinAmount: "-5"},
			},
			wantErr: "invalid amount",
		},
		{
			name: "bad follow target",
			req: schema.Requirement{
				ID:           "r",
				Type:         schema.RequirementUpMustFollow,
				FollowTarget: &schema.FollowTargetConfig{Address: "0xshort"},
			},
			wantErr: "invalid target address",
		},
		{
			name:    "unknown type",
			req:     schema.Requirement{ID: "r", Type: "holdsDoge"},
			wantErr: "unknown type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, tc.req.Validate(), tc.wantErr)
		})
	}

	valid := schema.Requirement{
		ID:            "r",
		Type:          schema.RequirementUpHoldsLyx,
		NativeBalance: &schema.NativeBalanceConfig{MinAmount: "1000"},
	}
	assert.NoError(t, valid.Validate())
}

func TestRequirementDisplayName(t *testing.T) {
	tokenID := "7"
	req := schema.Requirement{
		Type:             schema.RequirementUpHoldsNft,
		NonFungibleToken: &schema.NonFungibleTokenConfig{ContractAddress: goodAddress, TokenID: &tokenID},
	}
	assert.Contains(t, req.DisplayName(), "Owns token #7")

	count := schema.Requirement{
		Type:          schema.RequirementUpFollowerCount,
		FollowerCount: &schema.FollowerCountConfig{MinCount: 100},
	}
	assert.Equal(t, "Has at least 100 followers", count.DisplayName())
}

func TestRequirementIsSocial(t *testing.T) {
	social := schema.Requirement{Type: schema.RequirementUpMustFollow}
	assert.True(t, social.IsSocial())

	token := schema.Requirement{Type: schema.RequirementUpHoldsToken}
	assert.False(t, token.IsSocial())
}
