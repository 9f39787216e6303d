package core

import (
	"context"
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// Cache interface
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, duration time.Duration)
	Delete(key string)
	Stop()
}

// StorageInterface persists backend call statistics
type StorageInterface interface {
	SaveStats(stats *RequestStats) error
	LoadStats() (*RequestStats, error)
	Close() error
}

// BattleStore persists battle sessions by ID. Save is a full-record overwrite;
// in strict mode a save whose version is behind the stored one fails with ErrStaleWrite.
type BattleStore interface {
	Save(ctx context.Context, session *BattleSession, ttl time.Duration) error
	Load(ctx context.Context, battleID string) (*BattleSession, error)
	Delete(ctx context.Context, battleID string) error
	Status() string
	Close() error
}

// RatingStore persists long-lived model ratings.
type RatingStore interface {
	// Apply runs update exactly once per matchKey. It reports false when the
	// key was already applied.
	Apply(ctx context.Context, matchKey string, winnerID, loserID string, update RatingUpdate) (bool, error)
	Get(ctx context.Context, modelID string) (RatingEntry, error)
	List(ctx context.Context) ([]RatingEntry, error)
	Close() error
}

// RatingUpdate computes new ratings from the current winner and loser ratings.
type RatingUpdate func(winner, loser float64) (newWinner, newLoser float64)

// MetricsCollector interface
type MetricsCollector interface {
	RecordBackendCall(modelID, battleID string, success bool, duration time.Duration)
	RecordBattleStarted()
	RecordVote(tie bool)
	GetQPS() float64
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordBackendCall(modelID, battleID string, success bool, duration time.Duration) {}

func (*NopMetrics) RecordBattleStarted() {}
func (*NopMetrics) RecordVote(tie bool)  {}
func (*NopMetrics) GetQPS() float64      { return 0 }
