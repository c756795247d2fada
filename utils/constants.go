package utils

import (
	"time"
)

type contextKey string

// Request-scoped context keys populated by the HTTP handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Blocking rule defaults, mirrored by the blocking_rules column defaults
const (
	DefaultRuleWindowMinutes = 60
	DefaultRuleMaxClicks     = 5
)

// Blocking pipeline constants
const (
	// DefaultBlockMemo is sent upstream and stored with every automatic block
	DefaultBlockMemo = "Blocked by click-sentinel automation"

	// NaverIPExclusionPath is the upstream IP exclusion endpoint; it is also part of the signed message
	NaverIPExclusionPath = "/tool/ip-exclusions"

	// DefaultUpstreamTimeout bounds a single upstream block call
	DefaultUpstreamTimeout = 10 * time.Second

	// DefaultReservationTTL is the age after which an unconfirmed reservation is considered abandoned
	DefaultReservationTTL = 10 * time.Minute
)

// Cache keys. Formatted with fmt and prefixed with CacheConfig.RedisPrefix.
const (
	ActiveRuleCacheKey = "rules:active:%d"
	BlockedIPCacheKey  = "blocked:%d:%s"
)

// Paging
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
