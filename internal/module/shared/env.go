package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	AllowApiKeyNil            = true
	AllowApiKeyNilRateLimiter = 1000
	// RefuseChainCodeMap lists ecosystems that verification refuses outright.
	RefuseChainCodeMap = map[string]int{}
	mu                 sync.RWMutex
)

// LoadEnv applies plain environment overrides that predate the koanf config
// and are still set by the deployment.
func LoadEnv() (struct{}, error) {
	LoadAllowApiKey()
	LoadRefuseChainCodes()
	return struct{}{}, nil
}

func LoadAllowApiKey() {
	AllowApiKeyNil = os.Getenv("ALLOW_API_KEY") != "false"
	fmt.Printf("AllowApiKeyNil is %t\n", AllowApiKeyNil)
	allowApiKeyNilRateLimiterEnv := os.Getenv("ALLOW_API_KEY_DEFAULT_RATE_LIMITER")
	if allowApiKeyNilRateLimiterEnv != "" {
		AllowApiKeyNilRateLimiter, _ = strconv.Atoi(allowApiKeyNilRateLimiterEnv)
	}
	fmt.Printf("AllowApiKeyNilRateLimiter is %d\n", AllowApiKeyNilRateLimiter)
}

func LoadRefuseChainCodes() {
	codes := os.Getenv("REFUSE_CHAIN_CODES")
	if codes == "" {
		return
	}

	codeList := strings.Fields(codes)

	mu.Lock()
	RefuseChainCodeMap = make(map[string]int)
	for _, key := range codeList {
		RefuseChainCodeMap[key] = 1
	}
	mu.Unlock()
	fmt.Printf("REFUSE_CHAIN_CODES applied, length %d \n", len(RefuseChainCodeMap))
}

// IsChainRefused reports whether verification for the ecosystem is disabled.
func IsChainRefused(chainCode string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, exists := RefuseChainCodeMap[chainCode]
	return exists
}
