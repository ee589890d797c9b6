package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// app struct config
type app = struct {
	Name        string        `yaml:"name"`
	Port        string        `yaml:"port"`
	PrintRoutes bool          `yaml:"print-routes"`
	Prefork     bool          `yaml:"prefork"`
	Production  bool          `yaml:"production"`
	IdleTimeout time.Duration `yaml:"idle-timeout"`
}

// db struct config
type db = struct {
	Gorm struct {
		DisableForeignKeyConstraintWhenMigrating bool `yaml:"disable-foreign-key-constraint-when-migrating"`
	}
	Postgres struct {
		DSN string `yaml:"dsn"`
	}
}

// log struct config
type logger = struct {
	TimeFormat string        `yaml:"time-format"`
	Level      zerolog.Level `yaml:"level"`
	Prettier   bool          `yaml:"prettier"`
}

// Chain describes one verifiable ecosystem: its RPC endpoint, the GraphQL
// indexer that serves asset/profile records for it, and the well-known
// registry contracts the verifier talks to.
type Chain = struct {
	Code             string `yaml:"code" koanf:"code"`
	ChainID          int    `yaml:"id" koanf:"id"`
	RPCURL           string `yaml:"rpc-url" koanf:"rpc-url"`
	IndexerURL       string `yaml:"indexer-url" koanf:"indexer-url"`
	FollowerRegistry string `yaml:"follower-registry" koanf:"follower-registry"`
}

type Config struct {
	App    app
	DB     db
	Logger logger
	Chains []Chain `yaml:"chains" koanf:"chains"`
}

// func to parse address
func ParseAddress(raw string) (hostname, port string) {
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		return raw[:i], raw[i+1:]
	}

	return raw, ""
}
