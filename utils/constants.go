package utils

import (
	"time"
)

// Short code constants
const (
	// DefaultCodeLength is the length of generated short codes
	DefaultCodeLength = 6

	// MinCodeLength is the smallest code length the generator accepts
	// (the timestamp fallback consumes 4 characters)
	MinCodeLength = 5
)

// Cache constants
const (
	// ListingCacheTTL is the time-to-live for cached listing responses (5 minutes)
	ListingCacheTTL = 5 * time.Minute

	// BlacklistCacheKey is the redis key suffix for the blacklist snapshot
	BlacklistCacheKey = "blacklist:domains"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Request context keys
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)
