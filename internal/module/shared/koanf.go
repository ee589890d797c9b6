package shared

import (
	"log"
	"strings"
	"time"

	"github.com/curia-network/curia-cg-sub000/utils/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// unmarshalChains normalizes the ecosystems list from the yaml config onto
// the "chains" key every consumer reads.
func unmarshalChains(k *koanf.Koanf) []config.Chain {
	var chains []config.Chain
	err := k.Unmarshal("ecosystems", &chains)
	if err != nil {
		log.Fatalf("Unmarshal chains error: %v", err)
	}
	if len(chains) > 0 {
		k.Set("chains", chains)
	}
	return chains
}

func NewKoanfInstance() *koanf.Koanf {
	k := koanf.New(".")

	defaultValues := map[string]interface{}{
		"app.name":                "gating-service",
		"app.host":                ":8080",
		"app.idle-timeout":        50 * time.Second,
		"app.print-routes":        false,
		"app.prefork":             false,
		"app.production":          false,
		"redis.keeplive-interval": 30 * time.Second,
		"redis.retry-count":       3,
		"amqp.keeplive-interval":  30 * time.Second,
		"amqp.retry-count":        3,
		"amqp.enable":             false,
		"amqp.exchange":           "gating.events",
		"amqp.exchange-type":      "topic",
		"metadata.token-ttl":      time.Hour,
		"metadata.profile-ttl":    30 * time.Minute,
		"metadata.batch-limit":    50,
		"metadata.ipfs-gateway":   "https://api.universalprofile.cloud/ipfs/",
		"classifier.cache-ttl":    5 * time.Minute,
		"follow.poll-interval":    2 * time.Second,
		"follow.max-attempts":     60,
		"follow.min-gas-wei":      "1000000000000000",
	}

	if err := k.Load(confmap.Provider(defaultValues, "."), nil); err != nil {
		log.Fatalf("error loading default values: %v", err)
	}

	if err := k.Load(file.Provider("config/default.yaml"), yaml.Parser()); err != nil {
		log.Panicf("Error loading default config: %v", err)
	}
	log.Println("Load local config!")

	// gating_service_redis_url=... merges in as redis.url
	if err := k.Load(env.ProviderWithValue("gating_service_", ".", func(s string, v string) (string, interface{}) {
		key := strings.Replace(strings.TrimPrefix(s, "gating_service_"), "_", ".", -1)

		if strings.Contains(v, " ") {
			return key, strings.Split(v, " ")
		}

		return key, v
	}), nil); err != nil {
		log.Panicf("Error loading env: %v", err)
	}

	unmarshalChains(k)
	return k
}
