package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/pose"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file inside the base directory.
const FileName = "vinyasa.db"

// Init initializes the SQLite database at baseDir/vinyasa.db and seeds the
// built-in pose catalog on first run.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.vinyasa.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	logsDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: initial schema and built-in catalog
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS poses (
		  id            INTEGER PRIMARY KEY,
		  name          TEXT NOT NULL,
		  name_norm     TEXT NOT NULL,
		  sanskrit_name TEXT NOT NULL DEFAULT '',
		  difficulty    TEXT NOT NULL,
		  category      TEXT NOT NULL DEFAULT '',
		  description   TEXT NOT NULL DEFAULT '',
		  built_in      INTEGER NOT NULL DEFAULT 0,
		  created_at    INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_poses_name_norm ON poses(name_norm);

		CREATE TABLE IF NOT EXISTS flow_blocks (
		  id               TEXT PRIMARY KEY,
		  name_raw         TEXT NOT NULL,
		  name_norm        TEXT NOT NULL,
		  category         TEXT NOT NULL DEFAULT '',
		  poses_json       TEXT NOT NULL,
		  timing_json      TEXT NOT NULL,
		  transitions_json TEXT NOT NULL,
		  repetitions      INTEGER NOT NULL DEFAULT 1,
		  built_in         INTEGER NOT NULL DEFAULT 0,
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL,
		  deleted_at       INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_blocks_name_norm
		ON flow_blocks(name_norm)
		WHERE deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS sequences (
		  id               TEXT PRIMARY KEY,
		  name             TEXT NOT NULL DEFAULT '',
		  duration         INTEGER NOT NULL,
		  difficulty       TEXT NOT NULL,
		  focus_areas      TEXT NOT NULL,
		  pose_count       INTEGER NOT NULL,
		  poses            TEXT NOT NULL,
		  peak_poses       TEXT NOT NULL,
		  timing           TEXT NOT NULL,
		  transitions      TEXT NOT NULL,
		  repetitions      TEXT NOT NULL,
		  enabled_features TEXT NOT NULL,
		  flow_block_refs  TEXT NOT NULL,
		  version          INTEGER NOT NULL DEFAULT 1,
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL,
		  deleted_at       INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_sequences_updated
		ON sequences(updated_at DESC)
		WHERE deleted_at IS NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := seedBuiltIn(context.Background(), db); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// BuiltInBlockID returns the stable id of a built-in flow block.
func BuiltInBlockID(name string) string {
	return "builtin-" + strings.ReplaceAll(pose.Normalize(name), " ", "-")
}

// seedBuiltIn loads the embedded catalog into an empty database.
func seedBuiltIn(ctx context.Context, db *sql.DB) error {
	file, err := pose.BuiltIn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range file.Poses {
		if _, err := insertPose(ctx, tx, p, now); err != nil {
			return fmt.Errorf("seed pose %q: %w", p.Name, err)
		}
	}
	for _, b := range file.FlowBlocks {
		row := &FlowBlockRow{
			ID:          BuiltInBlockID(b.Name),
			NameRaw:     b.Name,
			NameNorm:    pose.Normalize(b.Name),
			Category:    b.Category,
			PoseIDs:     b.Poses,
			Timing:      b.Timing,
			Transitions: b.Transitions,
			Repetitions: max(1, b.Repetitions),
			BuiltIn:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := insertFlowBlock(ctx, tx, row); err != nil {
			return fmt.Errorf("seed flow block %q: %w", b.Name, err)
		}
	}
	return tx.Commit()
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
