package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// StoreMode controls what happens when a flow block name is taken.
type StoreMode string

const (
	StoreModeError   StoreMode = "error"   // fail with NAME_ALREADY_EXISTS
	StoreModeReplace StoreMode = "replace" // overwrite the existing definition
)

// StoreFlowBlockInput contains parameters for the StoreFlowBlock operation.
type StoreFlowBlockInput struct {
	Name        string    // required, unique after normalization
	Category    string    // "Warm-up", "Cool Down" or any main-section label
	Poses       []pose.ID // required, every id must exist in the catalog
	Timing      []string  // optional, at most one per pose
	Transitions []string  // optional, at most one between each pair of poses
	Repetitions int       // default: 1
	Mode        StoreMode // default: error
}

// StoreFlowBlockOutput contains the result of the StoreFlowBlock operation.
type StoreFlowBlockOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Replaced bool   `json:"replaced"`
}

// StoreFlowBlock creates a flow block, or replaces one by name in replace mode.
func StoreFlowBlock(ctx context.Context, database *sql.DB, input StoreFlowBlockInput) (*StoreFlowBlockOutput, error) {
	row, err := validateFlowBlock(ctx, database, input)
	if err != nil {
		return nil, err
	}

	existing, err := db.GetFlowBlockByName(ctx, database, row.NameNorm)
	switch {
	case err == nil:
		if input.Mode != StoreModeReplace {
			return nil, errors.NewNameAlreadyExists("flow block", row.NameRaw)
		}
		row.ID = existing.ID
		if err := db.UpdateFlowBlock(ctx, database, row); err != nil {
			return nil, err
		}
		return &StoreFlowBlockOutput{ID: row.ID, Name: existing.NameRaw, Replaced: true}, nil
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	row.ID = id
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := db.InsertFlowBlock(ctx, database, row); err != nil {
		return nil, err
	}
	return &StoreFlowBlockOutput{ID: row.ID, Name: row.NameRaw}, nil
}

func validateFlowBlock(ctx context.Context, database *sql.DB, input StoreFlowBlockInput) (*db.FlowBlockRow, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if input.Mode == "" {
		input.Mode = StoreModeError
	}
	if input.Mode != StoreModeError && input.Mode != StoreModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if len(input.Poses) == 0 {
		return nil, errors.NewInvalidRequest("poses must not be empty")
	}
	if len(input.Timing) > len(input.Poses) {
		return nil, errors.NewInvalidRequest("timing has more entries than poses")
	}
	if len(input.Transitions) > len(input.Poses)-1 {
		return nil, errors.NewInvalidRequest("transitions must have at most one entry between each pair of poses")
	}
	if input.Repetitions < 0 {
		return nil, errors.NewInvalidRequest("repetitions must not be negative")
	}

	catalog, err := db.LoadCatalog(ctx, database)
	if err != nil {
		return nil, err
	}
	for _, id := range input.Poses {
		if _, ok := catalog.Lookup(id); !ok {
			return nil, errors.NewNotFound("pose", fmt.Sprint(id))
		}
	}

	return &db.FlowBlockRow{
		NameRaw:     name,
		NameNorm:    pose.Normalize(name),
		Category:    strings.TrimSpace(input.Category),
		PoseIDs:     input.Poses,
		Timing:      input.Timing,
		Transitions: input.Transitions,
		Repetitions: max(1, input.Repetitions),
	}, nil
}

// ListFlowBlocksOutput contains the result of the ListFlowBlocks operation.
type ListFlowBlocksOutput struct {
	Items []db.FlowBlockRow `json:"items"`
	Total int               `json:"total"`
}

// ListFlowBlocks returns every active flow block ordered by name.
func ListFlowBlocks(ctx context.Context, database *sql.DB) (*ListFlowBlocksOutput, error) {
	rows, err := db.ListFlowBlocks(ctx, database)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []db.FlowBlockRow{}
	}
	return &ListFlowBlocksOutput{Items: rows, Total: len(rows)}, nil
}

// DeleteFlowBlockInput contains parameters for the DeleteFlowBlock operation.
type DeleteFlowBlockInput struct {
	ID string
}

// DeleteFlowBlock soft-deletes a flow block. Sequences that reference it keep
// their steps; removing the reference afterwards is reported as inconsistent.
func DeleteFlowBlock(ctx context.Context, database *sql.DB, input DeleteFlowBlockInput) (*DeleteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.SoftDeleteFlowBlock(ctx, database, id); err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}
