package core

import "time"

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 200
	HTTPMaxIdleConnsPerHost   = 50
	HTTPMaxConnsPerHost       = 100
	HTTPIdleConnTimeout       = 600 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 5 * time.Second
	HTTPRequestTimeout        = 5 * time.Minute
)

// Backend timeouts used when a descriptor does not set one
const (
	DefaultLocalTimeout  = 120 * time.Second
	DefaultRemoteTimeout = 60 * time.Second
)

// Cache config constants
const (
	CacheDefaultCapacity = 10000
	CacheCleanupInterval = 5 * time.Minute
)

// Stats and monitoring constants
const (
	StatsFilePath        = "stats.json"
	MinSaveInterval      = 5 * time.Second
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
)

// Response body size limits
const (
	MaxResponseBodySize = 10 * 1024 * 1024
	MaxErrorBodyLogSize = 512
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Redis constants
const (
	RedisOpTimeout       = 2 * time.Second
	RedisDialTimeout     = 2 * time.Second
	RatingClaimTTL       = 7 * 24 * time.Hour
	DefaultProbeInterval = 5 * time.Second
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
)
