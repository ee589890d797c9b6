package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type FulfillmentMode string

const (
	FulfillmentAny FulfillmentMode = "any"
	FulfillmentAll FulfillmentMode = "all"
)

type CategoryType string

const (
	CategoryUniversalProfile CategoryType = "universal_profile"
	CategoryEthereumProfile  CategoryType = "ethereum_profile"
)

// GatingCategory bundles the requirements of one ecosystem with its own
// fulfillment mode. Disabled categories are skipped by the verifier.
type GatingCategory struct {
	Type         CategoryType    `json:"type"`
	Enabled      bool            `json:"enabled"`
	Fulfillment  FulfillmentMode `json:"fulfillment"`
	Requirements []Requirement   `json:"requirements"`
}

// GatingConfig is the full declared gate of a lock: per-category requirement
// lists plus a second fulfillment mode combining the category aggregates.
// Nesting stops here; categories never contain categories.
type GatingConfig struct {
	Categories  []GatingCategory `json:"categories"`
	Fulfillment FulfillmentMode  `json:"fulfillment"`
}

// Value implements the driver.Valuer interface
func (c GatingConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface
func (c *GatingConfig) Scan(value interface{}) error {
	if value == nil {
		*c = GatingConfig{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported Scan, storing driver.Value type %T into type *GatingConfig", value)
	}

	return json.Unmarshal(bytes, c)
}

// Validate checks modes and every requirement payload.
func (c *GatingConfig) Validate() error {
	if err := validateMode(c.Fulfillment); err != nil {
		return err
	}
	for i := range c.Categories {
		cat := &c.Categories[i]
		if cat.Type != CategoryUniversalProfile && cat.Type != CategoryEthereumProfile {
			return fmt.Errorf("unknown category type %q", cat.Type)
		}
		if err := validateMode(cat.Fulfillment); err != nil {
			return err
		}
		for j := range cat.Requirements {
			if err := cat.Requirements[j].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMode(mode FulfillmentMode) error {
	if mode != FulfillmentAny && mode != FulfillmentAll {
		return fmt.Errorf("invalid fulfillment mode %q", mode)
	}
	return nil
}

// Lock is a named, reusable gate owned by a community board or post. The
// requirement set is immutable in place: edits replace the whole config.
type Lock struct {
	ID          string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(255);notNull" json:"name"`
	Description *string      `gorm:"type:text" json:"description"`
	CommunityID string       `gorm:"type:varchar(255);notNull;index" json:"community_id"`
	OwnerID     string       `gorm:"type:varchar(255);notNull" json:"owner_id"`
	Config      GatingConfig `gorm:"type:jsonb" json:"config"`
	Attributes  JSONMap      `gorm:"type:jsonb" json:"attributes"` // display hints (icon, color)
	Base
}
