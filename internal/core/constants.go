package core

import "time"

// Default config constants
const (
	DefaultPort             = "7860"
	DefaultGinMode          = "release"
	DefaultModelsConfigPath = "models.json"
	DefaultKeyPrefix        = "arena"
	DefaultRatingsDBPath    = "ratings.db"
	CORSMaxAge              = "86400"
)

// Battle lifecycle constants
const (
	DefaultBattleTTL    = 1 * time.Hour
	DefaultCompletedTTL = 10 * time.Minute
	MinModelsPerBattle  = 2
	MaxPromptLength     = 32 * 1024
)

// Elo defaults
const (
	DefaultEloK       = 32.0
	DefaultEloInitial = 1000.0
)

// TiePolicy is how a tie vote resolves. Single elimination cannot advance
// both sides, so a tie eliminates nobody and the same pair is voted again.
const TiePolicy = TieReplay

// TieReplay replays the round without eliminating anyone.
const TieReplay = "replay"

// BothFailPolicy decides what happens when neither side of a pair answers.
type BothFailPolicy string

// Both-fail policies.
const (
	// BothFailRetry records nothing and asks the caller to retry later.
	BothFailRetry BothFailPolicy = "retry"
	// BothFailForfeit marks both unavailable; side A (the defender) advances.
	BothFailForfeit BothFailPolicy = "forfeit"
)

// Storage status values reported to callers.
const (
	StorageExternal      = "external"
	StorageLocalFallback = "local-fallback"
)

// Rating backends.
const (
	RatingsBackendRedis  = "redis"
	RatingsBackendSQLite = "sqlite"
	RatingsBackendMemory = "memory"
)

// API constants
const (
	ContentTypeJSON     = "application/json"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	AuthBearerPrefix    = "Bearer "
	RoleUser            = "user"
)

// Local backend API path (Ollama-compatible)
const LocalGeneratePath = "/api/generate"

// Remote backend API path (OpenAI-compatible)
const RemoteChatPath = "/chat/completions"
