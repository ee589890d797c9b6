package schema

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

type RequirementType string

const (
	// LUKSO / Universal Profile ecosystem
	RequirementUpHoldsLyx         RequirementType = "upHoldsLyx"
	RequirementUpHoldsToken       RequirementType = "upHoldsToken"
	RequirementUpHoldsNft         RequirementType = "upHoldsNft"
	RequirementUpFollowerCount    RequirementType = "upFollowerCount"
	RequirementUpMustFollow       RequirementType = "upMustFollow"
	RequirementUpMustBeFollowedBy RequirementType = "upMustBeFollowedBy"

	// Ethereum ecosystem
	RequirementEthHoldsEth     RequirementType = "ethHoldsEth"
	RequirementEthHoldsErc20   RequirementType = "ethHoldsErc20"
	RequirementEthHoldsErc721  RequirementType = "ethHoldsErc721"
	RequirementEthHoldsErc1155 RequirementType = "ethHoldsErc1155"
)

type RequirementCategory string

const (
	CategoryToken    RequirementCategory = "token"
	CategorySocial   RequirementCategory = "social"
	CategoryIdentity RequirementCategory = "identity"
)

// NativeBalanceConfig gates on the chain's native coin balance (LYX / ETH).
// MinAmount is a decimal string in the smallest unit (wei).
type NativeBalanceConfig struct {
	MinAmount string `json:"minAmount"`
}

// FungibleTokenConfig gates on an LSP7 / ERC20 balance. Decimals, when set,
// was recorded at lock creation time and overrides whatever the metadata
// resolver reports later.
type FungibleTokenConfig struct {
	ContractAddress string `json:"contractAddress"`
	MinAmount       string `json:"minAmount"`
	Decimals        *int   `json:"decimals,omitempty"`
}

// NonFungibleTokenConfig gates on LSP8 / ERC721 / ERC1155 holdings. A set
// TokenID means "own this exact token" and makes MinCount irrelevant.
type NonFungibleTokenConfig struct {
	ContractAddress string  `json:"contractAddress"`
	TokenID         *string `json:"tokenId,omitempty"`
	MinCount        string  `json:"minCount,omitempty"`
}

type FollowerCountConfig struct {
	MinCount uint64 `json:"minCount"`
}

// FollowTargetConfig is shared by mustFollow and mustBeFollowedBy.
type FollowTargetConfig struct {
	Address string `json:"address"`
}

// Requirement is one declared gating condition. Exactly one config field is
// non-nil, matching Type; the wire format keeps the payload under a single
// "config" key so stored locks stay readable.
type Requirement struct {
	ID       string              `json:"id"`
	Type     RequirementType     `json:"type"`
	Category RequirementCategory `json:"category"`

	NativeBalance    *NativeBalanceConfig    `json:"-"`
	FungibleToken    *FungibleTokenConfig    `json:"-"`
	NonFungibleToken *NonFungibleTokenConfig `json:"-"`
	FollowerCount    *FollowerCountConfig    `json:"-"`
	FollowTarget     *FollowTargetConfig     `json:"-"`
}

type requirementWire struct {
	ID       string              `json:"id"`
	Type     RequirementType     `json:"type"`
	Category RequirementCategory `json:"category"`
	Config   json.RawMessage     `json:"config"`
}

func (r Requirement) MarshalJSON() ([]byte, error) {
	var cfg interface{}
	switch r.Type {
	case RequirementUpHoldsLyx, RequirementEthHoldsEth:
		cfg = r.NativeBalance
	case RequirementUpHoldsToken, RequirementEthHoldsErc20:
		cfg = r.FungibleToken
	case RequirementUpHoldsNft, RequirementEthHoldsErc721, RequirementEthHoldsErc1155:
		cfg = r.NonFungibleToken
	case RequirementUpFollowerCount:
		cfg = r.FollowerCount
	case RequirementUpMustFollow, RequirementUpMustBeFollowedBy:
		cfg = r.FollowTarget
	default:
		return nil, fmt.Errorf("unknown requirement type: %s", r.Type)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requirementWire{
		ID:       r.ID,
		Type:     r.Type,
		Category: r.Category,
		Config:   raw,
	})
}

func (r *Requirement) UnmarshalJSON(data []byte) error {
	var wire requirementWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.ID = wire.ID
	r.Type = wire.Type
	r.Category = wire.Category
	r.NativeBalance = nil
	r.FungibleToken = nil
	r.NonFungibleToken = nil
	r.FollowerCount = nil
	r.FollowTarget = nil

	if len(wire.Config) == 0 {
		wire.Config = json.RawMessage("{}")
	}

	switch wire.Type {
	case RequirementUpHoldsLyx, RequirementEthHoldsEth:
		r.NativeBalance = &NativeBalanceConfig{}
		return json.Unmarshal(wire.Config, r.NativeBalance)
	case RequirementUpHoldsToken, RequirementEthHoldsErc20:
		r.FungibleToken = &FungibleTokenConfig{}
		return json.Unmarshal(wire.Config, r.FungibleToken)
	case RequirementUpHoldsNft, RequirementEthHoldsErc721, RequirementEthHoldsErc1155:
		r.NonFungibleToken = &NonFungibleTokenConfig{}
		return json.Unmarshal(wire.Config, r.NonFungibleToken)
	case RequirementUpFollowerCount:
		r.FollowerCount = &FollowerCountConfig{}
		return json.Unmarshal(wire.Config, r.FollowerCount)
	case RequirementUpMustFollow, RequirementUpMustBeFollowedBy:
		r.FollowTarget = &FollowTargetConfig{}
		return json.Unmarshal(wire.Config, r.FollowTarget)
	default:
		return fmt.Errorf("unknown requirement type: %s", wire.Type)
	}
}

// Validate checks the config payload that matches the declared type. Amounts
// must parse as non-negative base-10 big integers.
func (r *Requirement) Validate() error {
	switch r.Type {
	case RequirementUpHoldsLyx, RequirementEthHoldsEth:
		if r.NativeBalance == nil {
			return fmt.Errorf("requirement %s: missing native balance config", r.ID)
		}
		return validateAmount(r.NativeBalance.MinAmount)
	case RequirementUpHoldsToken, RequirementEthHoldsErc20:
		if r.FungibleToken == nil {
			return fmt.Errorf("requirement %s: missing fungible token config", r.ID)
		}
		if !isHexAddress(r.FungibleToken.ContractAddress) {
			return fmt.Errorf("requirement %s: invalid contract address %q", r.ID, r.FungibleToken.ContractAddress)
		}
		if r.FungibleToken.Decimals != nil && *r.FungibleToken.Decimals < 0 {
			return fmt.Errorf("requirement %s: negative decimals", r.ID)
		}
		return validateAmount(r.FungibleToken.MinAmount)
	case RequirementUpHoldsNft, RequirementEthHoldsErc721, RequirementEthHoldsErc1155:
		if r.NonFungibleToken == nil {
			return fmt.Errorf("requirement %s: missing non-fungible token config", r.ID)
		}
		if !isHexAddress(r.NonFungibleToken.ContractAddress) {
			return fmt.Errorf("requirement %s: invalid contract address %q", r.ID, r.NonFungibleToken.ContractAddress)
		}
		if r.NonFungibleToken.TokenID == nil && r.NonFungibleToken.MinCount != "" {
			return validateAmount(r.NonFungibleToken.MinCount)
		}
		return nil
	case RequirementUpFollowerCount:
		if r.FollowerCount == nil {
			return fmt.Errorf("requirement %s: missing follower count config", r.ID)
		}
		return nil
	case RequirementUpMustFollow, RequirementUpMustBeFollowedBy:
		if r.FollowTarget == nil {
			return fmt.Errorf("requirement %s: missing follow target config", r.ID)
		}
		if !isHexAddress(r.FollowTarget.Address) {
			return fmt.Errorf("requirement %s: invalid target address %q", r.ID, r.FollowTarget.Address)
		}
		return nil
	default:
		return fmt.Errorf("requirement %s: unknown type %q", r.ID, r.Type)
	}
}

// DisplayName derives a short human-readable label for UI rendering.
func (r *Requirement) DisplayName() string {
	switch r.Type {
	case RequirementUpHoldsLyx:
		return "Holds LYX"
	case RequirementEthHoldsEth:
		return "Holds ETH"
	case RequirementUpHoldsToken, RequirementEthHoldsErc20:
		if r.FungibleToken != nil {
			return "Holds token " + shortAddress(r.FungibleToken.ContractAddress)
		}
		return "Holds token"
	case RequirementUpHoldsNft, RequirementEthHoldsErc721, RequirementEthHoldsErc1155:
		if r.NonFungibleToken != nil {
			if r.NonFungibleToken.TokenID != nil {
				return fmt.Sprintf("Owns token #%s of %s", *r.NonFungibleToken.TokenID, shortAddress(r.NonFungibleToken.ContractAddress))
			}
			return "Holds NFT from " + shortAddress(r.NonFungibleToken.ContractAddress)
		}
		return "Holds NFT"
	case RequirementUpFollowerCount:
		if r.FollowerCount != nil {
			return fmt.Sprintf("Has at least %d followers", r.FollowerCount.MinCount)
		}
		return "Has followers"
	case RequirementUpMustFollow:
		if r.FollowTarget != nil {
			return "Follows " + shortAddress(r.FollowTarget.Address)
		}
		return "Follows profile"
	case RequirementUpMustBeFollowedBy:
		if r.FollowTarget != nil {
			return "Followed by " + shortAddress(r.FollowTarget.Address)
		}
		return "Followed by profile"
	default:
		return string(r.Type)
	}
}

// IsSocial reports whether the requirement is checked against the follower
// registry rather than token balances.
func (r *Requirement) IsSocial() bool {
	switch r.Type {
	case RequirementUpFollowerCount, RequirementUpMustFollow, RequirementUpMustBeFollowedBy:
		return true
	}
	return false
}

func validateAmount(amount string) error {
	if amount == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return fmt.Errorf("invalid amount %q", amount)
	}
	return nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func shortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
