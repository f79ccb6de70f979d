package config

import "time"

// Default runtime limits and guardrails for the sales analytics server.
// They are referenced by internal/runtime and internal/datasets and can be
// overridden by flags in cmd/server.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 8

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxFileBytes    = 32 << 20   // 32MB per source file or download
	DefaultMaxRows         = 500_000
	DefaultPageRowLimit    = 50
	MaxPageRowLimit        = 1_000
	DefaultTopN            = 20
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultFetchTimeout          = 20 * time.Second

	// Dataset handles expire after this much idle time.
	DefaultDatasetIdleTTL = 30 * time.Minute
	DefaultEvictInterval  = time.Minute

	// Report memoization matches the five minute refresh of the dashboard.
	DefaultReportCacheTTL     = 5 * time.Minute
	DefaultReportCacheEntries = 256
)
