package utils

import (
	"time"
)

// Context keys set by handlers for request-scoped values
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TimeoutKey   ContextKey = "timeout"
	ActorKey     ContextKey = "actor"
)

// Security constants
const (
	// AdminAPIKeyHeader carries the admin API key
	AdminAPIKeyHeader = "X-API-Key"
)

// Redis key fragments, combined with the configured prefix
const (
	ParcelCacheKey  = "parcel:track:"
	CollectLockKey  = "collect:"
	ReminderLockKey = "reminder:run"
	CollectLockTTL  = 10 * time.Second
	ReminderLockTTL = 5 * time.Minute
)

// Pickup code and receipt constants
const (
	// PickupCodeLength is the number of digits in a pickup code
	PickupCodeLength = 6

	// ReceiptTTL is how long a collection receipt stays verifiable
	ReceiptTTL = 365 * 24 * time.Hour

	// Currency is the implicit currency of all prices
	Currency = "RM"
)

// Pagination defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
