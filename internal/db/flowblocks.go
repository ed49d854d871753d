package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/snapshot"
)

// FlowBlockRow is a stored flow-block definition. Poses are kept by id and
// resolved against the catalog when the block is used.
type FlowBlockRow struct {
	ID          string    `json:"id"`
	NameRaw     string    `json:"name"`
	NameNorm    string    `json:"-"`
	Category    string    `json:"category"`
	PoseIDs     []pose.ID `json:"poses"`
	Timing      []string  `json:"timing"`
	Transitions []string  `json:"transitions"`
	Repetitions int       `json:"repetitions"`
	BuiltIn     bool      `json:"built_in"`
	CreatedAt   int64     `json:"created_at"`
	UpdatedAt   int64     `json:"updated_at"`
	DeletedAt   *int64    `json:"deleted_at,omitempty"`
}

const flowBlockColumns = `id, name_raw, name_norm, category, poses_json, timing_json,
	transitions_json, repetitions, built_in, created_at, updated_at, deleted_at`

// InsertFlowBlock stores a new flow block. Fails with NAME_ALREADY_EXISTS if
// an active block has the same normalized name.
func InsertFlowBlock(ctx context.Context, db *sql.DB, b *FlowBlockRow) error {
	return insertFlowBlock(ctx, db, b)
}

func insertFlowBlock(ctx context.Context, ex execer, b *FlowBlockRow) error {
	posesJSON, timingJSON, transitionsJSON, err := encodeBlockLists(b)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO flow_blocks (
			id, name_raw, name_norm, category, poses_json, timing_json,
			transitions_json, repetitions, built_in, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = ex.ExecContext(ctx, query,
		b.ID, b.NameRaw, b.NameNorm, b.Category, posesJSON, timingJSON,
		transitionsJSON, b.Repetitions, b.BuiltIn, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewNameAlreadyExists("flow block", b.NameRaw)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UpdateFlowBlock replaces the mutable fields of an active block.
// Does NOT change: id, name
func UpdateFlowBlock(ctx context.Context, db *sql.DB, b *FlowBlockRow) error {
	posesJSON, timingJSON, transitionsJSON, err := encodeBlockLists(b)
	if err != nil {
		return err
	}
	now := time.Now().Unix()

	query := `
		UPDATE flow_blocks
		SET category = ?, poses_json = ?, timing_json = ?, transitions_json = ?,
			repetitions = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := db.ExecContext(ctx, query,
		b.Category, posesJSON, timingJSON, transitionsJSON,
		b.Repetitions, now, b.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("flow block", b.ID)
	}
	b.UpdatedAt = now
	return nil
}

// GetFlowBlock retrieves an active flow block by id.
func GetFlowBlock(ctx context.Context, db *sql.DB, id string) (*FlowBlockRow, error) {
	query := `SELECT ` + flowBlockColumns + ` FROM flow_blocks WHERE id = ? AND deleted_at IS NULL`
	b, err := scanFlowBlock(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("flow block", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// GetFlowBlockByName retrieves an active flow block by normalized name.
func GetFlowBlockByName(ctx context.Context, db *sql.DB, nameNorm string) (*FlowBlockRow, error) {
	query := `SELECT ` + flowBlockColumns + ` FROM flow_blocks WHERE name_norm = ? AND deleted_at IS NULL`
	b, err := scanFlowBlock(db.QueryRowContext(ctx, query, nameNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("flow block", nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// ListFlowBlocks returns active flow blocks ordered by name.
func ListFlowBlocks(ctx context.Context, db *sql.DB) ([]FlowBlockRow, error) {
	query := `SELECT ` + flowBlockColumns + ` FROM flow_blocks WHERE deleted_at IS NULL ORDER BY name_norm`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []FlowBlockRow
	for rows.Next() {
		b, err := scanFlowBlock(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// SoftDeleteFlowBlock marks a flow block as deleted. Sequences that still
// reference it keep their references; removing those becomes a no-op.
func SoftDeleteFlowBlock(ctx context.Context, db *sql.DB, id string) error {
	query := `UPDATE flow_blocks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("flow block", id)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFlowBlock(row scanner) (*FlowBlockRow, error) {
	var (
		b               FlowBlockRow
		posesJSON       string
		timingJSON      string
		transitionsJSON string
		deletedAt       sql.NullInt64
	)
	err := row.Scan(
		&b.ID, &b.NameRaw, &b.NameNorm, &b.Category, &posesJSON, &timingJSON,
		&transitionsJSON, &b.Repetitions, &b.BuiltIn, &b.CreatedAt, &b.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		b.DeletedAt = &deletedAt.Int64
	}

	if b.PoseIDs, _, err = snapshot.DecodeIDs("poses_json", posesJSON); err != nil {
		return nil, err
	}
	if b.Timing, _, err = snapshot.DecodeStrings("timing_json", timingJSON); err != nil {
		return nil, err
	}
	if b.Transitions, _, err = snapshot.DecodeStrings("transitions_json", transitionsJSON); err != nil {
		return nil, err
	}
	return &b, nil
}

func encodeBlockLists(b *FlowBlockRow) (posesJSON, timingJSON, transitionsJSON string, err error) {
	lists := []struct {
		dst *string
		v   any
	}{
		{&posesJSON, nonNilIDs(b.PoseIDs)},
		{&timingJSON, nonNilStrings(b.Timing)},
		{&transitionsJSON, nonNilStrings(b.Transitions)},
	}
	for _, l := range lists {
		data, err := json.Marshal(l.v)
		if err != nil {
			return "", "", "", errors.NewInternal(err)
		}
		*l.dst = string(data)
	}
	return posesJSON, timingJSON, transitionsJSON, nil
}

func nonNilIDs(ids []pose.ID) []pose.ID {
	if ids == nil {
		return []pose.ID{}
	}
	return ids
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
