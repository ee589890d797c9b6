package schema_test

import (
	"testing"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() schema.GatingConfig {
	return schema.GatingConfig{
		Fulfillment: schema.FulfillmentAny,
		Categories: []schema.GatingCategory{
			{
				Type:        schema.CategoryUniversalProfile,
				Enabled:     true,
				Fulfillment: schema.FulfillmentAll,
				Requirements: []schema.Requirement{
					{
						ID:            "r1",
						Type:          schema.RequirementUpHoldsLyx,
						NativeBalance: &schema.NativeBalanceConfig{MinAmount: "1000"},
					},
				},
			},
		},
	}
}

func TestGatingConfigValidate(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	badMode := validConfig()
	badMode.Fulfillment = "most"
	assert.ErrorContains(t, badMode.Validate(), "invalid fulfillment mode")

	badCategoryMode := validConfig()
	badCategoryMode.Categories[0].Fulfillment = ""
	assert.ErrorContains(t, badCategoryMode.Validate(), "invalid fulfillment mode")

	badCategory := validConfig()
	badCategory.Categories[0].Type = "solana_profile"
	assert.ErrorContains(t, badCategory.Validate(), "unknown category type")

	badRequirement := validConfig()
	badRequirement.Categories[0].Requirements[0].NativeBalance = nil
	assert.ErrorContains(t, badRequirement.Validate(), "missing native balance config")
}

func TestGatingConfigValueScanRoundTrip(t *testing.T) {
	config := validConfig()

	value, err := config.Value()
	require.NoError(t, err)
	raw, ok := value.([]byte)
	require.True(t, ok)

	var scanned schema.GatingConfig
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, config, scanned)
}

func TestGatingConfigScanNil(t *testing.T) {
	scanned := validConfig()
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, schema.GatingConfig{}, scanned)
}

func TestGatingConfigScanRejectsNonBytes(t *testing.T) {
	var scanned schema.GatingConfig
	assert.Error(t, scanned.Scan(42))
}
