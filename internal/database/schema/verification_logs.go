package schema

import (
	"time"

	"gorm.io/gorm"
)

type VerificationLog struct {
	IPAddress  string `gorm:"size:45"`
	LockID     string `gorm:"size:64;index"`
	Address    string `gorm:"size:64;index"`
	EthAddress string `gorm:"size:64"`
	Passed     bool
	Response   string `gorm:"type:text"`
	DurationMs int64
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at"`
}
