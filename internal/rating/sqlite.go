package rating

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"modelarena/internal/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore keeps ratings in a local SQLite database for single-node
// deployments that want them to survive restarts.
type SQLiteStore struct {
	db      *sql.DB
	initial float64
}

// OpenSQLiteStore opens path, tunes SQLite and runs the embedded migrations.
func OpenSQLiteStore(path string, initial float64, logger core.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ratings database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := optimizeSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Ratings database ready at %s", path)
	return &SQLiteStore{db: db, initial: initial}, nil
}

func optimizeSQLite(db *sql.DB) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
		}
	}
	return nil
}

// gooseLogger routes migration output through the arena logger.
type gooseLogger struct {
	logger core.Logger
}

func (g gooseLogger) Printf(format string, v ...any) { g.logger.Debug(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.logger.Fatal(format, v...) }

func runMigrations(db *sql.DB, logger core.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Apply(ctx context.Context, matchKey, winnerID, loserID string, update core.RatingUpdate) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin rating transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_matches (match_key, winner_id, loser_id, applied_at) VALUES (?, ?, ?, ?)`,
		matchKey, winnerID, loserID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim match %s: %w", matchKey, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	w, err := s.rating(ctx, tx, winnerID)
	if err != nil {
		return false, err
	}
	l, err := s.rating(ctx, tx, loserID)
	if err != nil {
		return false, err
	}
	newW, newL := update(w, l)

	const upsert = `INSERT INTO ratings (model_id, rating, wins, losses, games, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			rating = excluded.rating,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			games = games + 1,
			updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, winnerID, newW, 1, 0, now); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", winnerID, err)
	}
	if _, err := tx.ExecContext(ctx, upsert, loserID, newL, 0, 1, now); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", loserID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit match %s: %w", matchKey, err)
	}
	return true, nil
}

func (s *SQLiteStore) rating(ctx context.Context, tx *sql.Tx, modelID string) (float64, error) {
	var r float64
	err := tx.QueryRowContext(ctx, `SELECT rating FROM ratings WHERE model_id = ?`, modelID).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return s.initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rating for %s: %w", modelID, err)
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, modelID string) (core.RatingEntry, error) {
	e := core.RatingEntry{ModelID: modelID}
	err := s.db.QueryRowContext(ctx,
		`SELECT rating, wins, losses, games FROM ratings WHERE model_id = ?`, modelID,
	).Scan(&e.Rating, &e.Wins, &e.Losses, &e.Games)
	if errors.Is(err, sql.ErrNoRows) {
		e.Rating = s.initial
		return e, nil
	}
	if err != nil {
		return e, fmt.Errorf("failed to read rating for %s: %w", modelID, err)
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]core.RatingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, rating, wins, losses, games FROM ratings ORDER BY rating DESC, model_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.RatingEntry
	for rows.Next() {
		var e core.RatingEntry
		if err := rows.Scan(&e.ModelID, &e.Rating, &e.Wins, &e.Losses, &e.Games); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ core.RatingStore = (*SQLiteStore)(nil)
