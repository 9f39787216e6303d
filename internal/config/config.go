package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modelarena/internal/core"
	"modelarena/internal/util"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// ServerConfig server configuration
type ServerConfig struct {
	Port               string
	GinMode            string
	ModelsConfigPath   string
	Models             []core.ModelDescriptor
	RedisURL           string
	StatsFilePath      string
	Arena              ArenaSettings
	Ratings            RatingSettings
	HTTPClientSettings HTTPClientSettings
	Storage            core.StorageInterface
	Logger             core.Logger
}

// ArenaSettings controls battle lifecycle and presentation.
type ArenaSettings struct {
	KeyPrefix       string
	BattleTTL       time.Duration
	CompletedTTL    time.Duration
	StrictVersions  bool
	Shuffle         bool
	Seed            int64
	SeedSet         bool
	BothFailPolicy  core.BothFailPolicy
	ProbeInterval   time.Duration
	CORSAllowOrigin string
}

// RatingSettings controls the Elo tracker.
type RatingSettings struct {
	Backend string
	DBPath  string
	K       float64
	Initial float64
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.HTTPRequestTimeout,
	}
}

// DefaultArenaSettings returns the settings used when no env overrides are present.
func DefaultArenaSettings() ArenaSettings {
	return ArenaSettings{
		KeyPrefix:       core.DefaultKeyPrefix,
		BattleTTL:       core.DefaultBattleTTL,
		CompletedTTL:    core.DefaultCompletedTTL,
		BothFailPolicy:  core.BothFailRetry,
		ProbeInterval:   core.DefaultProbeInterval,
		CORSAllowOrigin: "*",
	}
}

// DefaultRatingSettings returns the default Elo settings.
func DefaultRatingSettings() RatingSettings {
	return RatingSettings{
		DBPath:  core.DefaultRatingsDBPath,
		K:       core.DefaultEloK,
		Initial: core.DefaultEloInitial,
	}
}

// LoadModelsConfig loads model descriptors from a JSON or YAML file.
// Disabled models are dropped and missing labels are assigned A, B, C... in file order.
func LoadModelsConfig(path string) (core.ModelsConfig, error) {
	var config core.ModelsConfig

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return config, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = sonic.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	enabled := make([]core.ModelDescriptor, 0, len(config.Models))
	for _, m := range config.Models {
		if !m.Disabled {
			enabled = append(enabled, m)
		}
	}
	config.Models = enabled

	if err := validateModels(config.Models); err != nil {
		return config, fmt.Errorf("invalid %s: %w", path, err)
	}

	for i := range config.Models {
		m := &config.Models[i]
		if m.Label == "" {
			m.Label = "Model " + labelFor(i)
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
	}

	return config, nil
}

func validateModels(models []core.ModelDescriptor) error {
	if len(models) < core.MinModelsPerBattle {
		return fmt.Errorf("%w: %d enabled", core.ErrNotEnoughModels, len(models))
	}
	seen := make(map[string]bool, len(models))
	var errs error
	for i, m := range models {
		if m.ID == "" {
			errs = errors.Join(errs, fmt.Errorf("model #%d has no id", i+1))
			continue
		}
		if seen[m.ID] {
			errs = errors.Join(errs, fmt.Errorf("duplicate model id %q", m.ID))
		}
		seen[m.ID] = true
		if m.Backend != core.BackendLocal && m.Backend != core.BackendRemote {
			errs = errors.Join(errs, fmt.Errorf("model %q has unknown backend %q", m.ID, m.Backend))
		}
		if m.Endpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("model %q has no endpoint", m.ID))
		}
		if m.TimeoutSeconds < 0 {
			errs = errors.Join(errs, fmt.Errorf("model %q has negative timeout", m.ID))
		}
	}
	return errs
}

// labelFor returns A..Z, then AA, AB...
func labelFor(i int) string {
	label := ""
	for n := i; ; n = n/26 - 1 {
		label = string(rune('A'+n%26)) + label
		if n < 26 {
			break
		}
	}
	return label
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	var errs error

	arena := DefaultArenaSettings()
	arena.KeyPrefix = util.GetEnvWithDefault("ARENA_KEY_PREFIX", arena.KeyPrefix)
	arena.CORSAllowOrigin = util.GetEnvWithDefault("CORS_ALLOW_ORIGIN", arena.CORSAllowOrigin)

	var err error
	if arena.BattleTTL, err = util.GetEnvDuration("ARENA_BATTLE_TTL", arena.BattleTTL); err != nil {
		errs = errors.Join(errs, err)
	}
	if arena.CompletedTTL, err = util.GetEnvDuration("ARENA_COMPLETED_TTL", arena.CompletedTTL); err != nil {
		errs = errors.Join(errs, err)
	}
	if arena.ProbeInterval, err = util.GetEnvDuration("ARENA_PROBE_INTERVAL", arena.ProbeInterval); err != nil {
		errs = errors.Join(errs, err)
	}
	if arena.StrictVersions, err = util.GetEnvBool("ARENA_STRICT_VERSIONING", false); err != nil {
		errs = errors.Join(errs, err)
	}
	if arena.Shuffle, err = util.GetEnvBool("ARENA_SHUFFLE", false); err != nil {
		errs = errors.Join(errs, err)
	}
	if arena.Seed, arena.SeedSet, err = util.GetEnvInt64("ARENA_SEED"); err != nil {
		errs = errors.Join(errs, err)
	}

	switch policy := core.BothFailPolicy(util.GetEnvWithDefault("ARENA_BOTH_FAIL_POLICY", string(core.BothFailRetry))); policy {
	case core.BothFailRetry, core.BothFailForfeit:
		arena.BothFailPolicy = policy
	default:
		errs = errors.Join(errs, fmt.Errorf("invalid ARENA_BOTH_FAIL_POLICY %q", policy))
	}

	ratings := DefaultRatingSettings()
	ratings.Backend = strings.ToLower(os.Getenv("RATINGS_BACKEND"))
	ratings.DBPath = util.GetEnvWithDefault("RATINGS_DB_PATH", ratings.DBPath)
	if ratings.K, err = util.GetEnvFloat("ELO_K", ratings.K); err != nil {
		errs = errors.Join(errs, err)
	}
	if ratings.Initial, err = util.GetEnvFloat("ELO_INITIAL", ratings.Initial); err != nil {
		errs = errors.Join(errs, err)
	}
	switch ratings.Backend {
	case "", core.RatingsBackendRedis, core.RatingsBackendSQLite, core.RatingsBackendMemory:
	default:
		errs = errors.Join(errs, fmt.Errorf("invalid RATINGS_BACKEND %q", ratings.Backend))
	}

	if errs != nil {
		return ServerConfig{}, errs
	}

	modelsPath := util.GetEnvWithDefault("MODELS_CONFIG_PATH", core.DefaultModelsConfigPath)
	modelsConfig, err := LoadModelsConfig(modelsPath)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("failed to load models: %w", err)
	}
	logger.Info("Loaded %d models from %s", len(modelsConfig.Models), modelsPath)

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Warn("REDIS_URL is empty: battles will live in this process only")
	}

	config := ServerConfig{
		Port:               util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode:            util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		ModelsConfigPath:   modelsPath,
		Models:             modelsConfig.Models,
		RedisURL:           redisURL,
		StatsFilePath:      util.GetEnvWithDefault("STATS_FILE_PATH", core.StatsFilePath),
		Arena:              arena,
		Ratings:            ratings,
		HTTPClientSettings: DefaultHTTPClientSettings(),
	}

	return config, nil
}
