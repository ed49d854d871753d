package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/snapshot"
)

// SequenceRow is a stored sequence. The aggregate itself lives in Record as
// serialized fields; FocusAreas is serialized the same way.
type SequenceRow struct {
	ID         string
	Name       string
	Duration   int
	Difficulty string
	FocusAreas string
	PoseCount  int

	snapshot.Record

	Version   int64
	CreatedAt int64
	UpdatedAt int64
	DeletedAt *int64
}

// SequenceSummary is the list view of a sequence.
type SequenceSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Duration   int    `json:"duration"`
	Difficulty string `json:"difficulty"`
	PoseCount  int    `json:"pose_count"`
	Version    int64  `json:"version"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
	DeletedAt  *int64 `json:"deleted_at,omitempty"`
}

const sequenceColumns = `id, name, duration, difficulty, focus_areas, pose_count,
	poses, peak_poses, timing, transitions, repetitions, enabled_features, flow_block_refs,
	version, created_at, updated_at, deleted_at`

// InsertSequence stores a new sequence at version 1.
func InsertSequence(ctx context.Context, db *sql.DB, s *SequenceRow) error {
	query := `
		INSERT INTO sequences (
			id, name, duration, difficulty, focus_areas, pose_count,
			poses, peak_poses, timing, transitions, repetitions, enabled_features, flow_block_refs,
			version, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, NULL)
	`
	_, err := db.ExecContext(ctx, query,
		s.ID, s.Name, s.Duration, s.Difficulty, s.FocusAreas, s.PoseCount,
		s.Poses, s.PeakPoses, s.Timing, s.Transitions, s.Repetitions, s.EnabledFeatures, s.BlockRefs,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	s.Version = 1
	return nil
}

// GetSequence retrieves a sequence by id.
// If includeDeleted is false, soft-deleted sequences are excluded.
func GetSequence(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*SequenceRow, error) {
	query := `SELECT ` + sequenceColumns + ` FROM sequences WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	s, err := scanSequence(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("sequence", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// UpdateSequence writes s if the stored version still equals
// expectedVersion, then bumps the version. A newer stored version yields
// CONFLICT and nothing is written.
func UpdateSequence(ctx context.Context, db *sql.DB, s *SequenceRow, expectedVersion int64) error {
	now := time.Now().Unix()

	query := `
		UPDATE sequences
		SET name = ?, duration = ?, difficulty = ?, focus_areas = ?, pose_count = ?,
			poses = ?, peak_poses = ?, timing = ?, transitions = ?, repetitions = ?,
			enabled_features = ?, flow_block_refs = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND version = ?
	`
	result, err := db.ExecContext(ctx, query,
		s.Name, s.Duration, s.Difficulty, s.FocusAreas, s.PoseCount,
		s.Poses, s.PeakPoses, s.Timing, s.Transitions, s.Repetitions,
		s.EnabledFeatures, s.BlockRefs,
		now, s.ID, expectedVersion,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		current, err := GetSequence(ctx, db, s.ID, false)
		if err != nil {
			return err
		}
		return errors.NewConflict(s.ID, expectedVersion, current.Version)
	}

	s.Version = expectedVersion + 1
	s.UpdatedAt = now
	return nil
}

// ListSequences returns sequence summaries ordered by most recent update,
// along with the total count.
func ListSequences(ctx context.Context, db *sql.DB, limit, offset int, includeDeleted bool) ([]SequenceSummary, int, error) {
	where := " WHERE deleted_at IS NULL"
	if includeDeleted {
		where = ""
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sequences`+where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, name, duration, difficulty, pose_count, version, created_at, updated_at, deleted_at
		FROM sequences` + where + `
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []SequenceSummary
	for rows.Next() {
		var (
			s         SequenceSummary
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Duration, &s.Difficulty, &s.PoseCount,
			&s.Version, &s.CreatedAt, &s.UpdatedAt, &deletedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		if deletedAt.Valid {
			s.DeletedAt = &deletedAt.Int64
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// SoftDeleteSequence marks a sequence as deleted by setting deleted_at.
func SoftDeleteSequence(ctx context.Context, db *sql.DB, id string) error {
	query := `
		UPDATE sequences
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("sequence", id)
	}
	return nil
}

// PurgeCounts reports rows removed by PurgeDeleted.
type PurgeCounts struct {
	Sequences  int `json:"sequences"`
	FlowBlocks int `json:"flow_blocks"`
}

// PurgeDeleted permanently removes soft-deleted sequences and flow blocks.
// With olderThanDays set, only rows deleted before that cutoff go.
func PurgeDeleted(ctx context.Context, db *sql.DB, olderThanDays *int) (PurgeCounts, error) {
	var counts PurgeCounts

	where := " WHERE deleted_at IS NOT NULL"
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		where += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return counts, errors.NewInternal(err)
	}
	defer tx.Rollback()

	for _, t := range []struct {
		table string
		dst   *int
	}{
		{"sequences", &counts.Sequences},
		{"flow_blocks", &counts.FlowBlocks},
	} {
		result, err := tx.ExecContext(ctx, "DELETE FROM "+t.table+where, args...)
		if err != nil {
			return PurgeCounts{}, errors.NewInternal(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return PurgeCounts{}, errors.NewInternal(err)
		}
		*t.dst = int(n)
	}

	if err := tx.Commit(); err != nil {
		return PurgeCounts{}, errors.NewInternal(err)
	}
	return counts, nil
}

func scanSequence(row scanner) (*SequenceRow, error) {
	var (
		s         SequenceRow
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Duration, &s.Difficulty, &s.FocusAreas, &s.PoseCount,
		&s.Poses, &s.PeakPoses, &s.Timing, &s.Transitions, &s.Repetitions, &s.EnabledFeatures, &s.BlockRefs,
		&s.Version, &s.CreatedAt, &s.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Int64
	}
	return &s, nil
}
