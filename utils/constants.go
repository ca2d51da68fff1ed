package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Allocation engine defaults. The window and retry budget are configuration
// parameters; these are only the fallbacks when the environment is silent.
const (
	// DefaultWorkloadWindowDays bounds the "currently open" lead count used
	// by the workload method.
	DefaultWorkloadWindowDays = 30

	// DefaultCursorMaxRetries bounds optimistic retries when the round-robin
	// cursor compare-and-swap loses a race.
	DefaultCursorMaxRetries = 3

	// DefaultStatsCacheTTL bounds staleness of cached allocation statistics.
	DefaultStatsCacheTTL = 5 * time.Minute
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
