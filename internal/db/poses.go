package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertPose stores a user-defined pose. A zero ID is assigned by the
// database. Returns the stored pose.
func InsertPose(ctx context.Context, db *sql.DB, p pose.Pose) (*pose.Pose, error) {
	p.BuiltIn = false
	id, err := insertPose(ctx, db, p, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func insertPose(ctx context.Context, ex execer, p pose.Pose, now int64) (pose.ID, error) {
	var id any
	if p.ID != 0 {
		id = int64(p.ID)
	}

	query := `
		INSERT INTO poses (
			id, name, name_norm, sanskrit_name, difficulty,
			category, description, built_in, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := ex.ExecContext(ctx, query,
		id, p.Name, pose.Normalize(p.Name), p.SanskritName, string(p.Difficulty),
		p.Category, p.Description, p.BuiltIn, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "poses.id") {
				return 0, errors.NewNameAlreadyExists("pose id", strconv.FormatInt(int64(p.ID), 10))
			}
			return 0, errors.NewNameAlreadyExists("pose", p.Name)
		}
		return 0, errors.NewInternal(err)
	}
	if p.ID != 0 {
		return p.ID, nil
	}
	last, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return pose.ID(last), nil
}

// ListPoses returns every pose in catalog order (by id, built-ins first).
func ListPoses(ctx context.Context, db *sql.DB) ([]pose.Pose, error) {
	query := `
		SELECT id, name, sanskrit_name, difficulty, category, description, built_in
		FROM poses
		ORDER BY id
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []pose.Pose
	for rows.Next() {
		var (
			p          pose.Pose
			difficulty string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.SanskritName, &difficulty, &p.Category, &p.Description, &p.BuiltIn); err != nil {
			return nil, errors.NewInternal(err)
		}
		p.Difficulty = pose.Difficulty(difficulty)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// LoadCatalog builds the catalog adapter over every stored pose.
func LoadCatalog(ctx context.Context, db *sql.DB) (*pose.Catalog, error) {
	poses, err := ListPoses(ctx, db)
	if err != nil {
		return nil, err
	}
	return pose.NewCatalog(poses), nil
}
