package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// ImportMode controls collision behavior during catalog import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any name collision before writing
	ImportModeSkip    ImportMode = "skip"    // keep existing entries
	ImportModeReplace ImportMode = "replace" // overwrite existing flow blocks; poses are kept
)

// ImportInput contains parameters for the ImportCatalog operation.
type ImportInput struct {
	Path string     // required, .yaml or .yml
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the ImportCatalog operation.
type ImportOutput struct {
	PosesImported  int           `json:"poses_imported"`
	PosesSkipped   int           `json:"poses_skipped"`
	BlocksImported int           `json:"blocks_imported"`
	BlocksReplaced int           `json:"blocks_replaced"`
	BlocksSkipped  int           `json:"blocks_skipped"`
	Errors         []ImportError `json:"errors"`
}

// ImportError describes one catalog entry that could not be imported.
type ImportError struct {
	Kind    string           `json:"kind"` // pose | flow_block
	Name    string           `json:"name"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// ImportCatalog loads user poses and flow blocks from a YAML catalog file.
// Flow blocks may refer to poses by the ids used in the same file; those
// are mapped to the ids the poses were stored under.
func ImportCatalog(ctx context.Context, database *sql.DB, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip, replace")
	}

	absPath, err := ValidateCatalogPath(input.Path)
	if err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(absPath)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read catalog file: %w", err))
	}
	file, err := pose.ParseFile(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	catalog, err := db.LoadCatalog(ctx, database)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]pose.Pose, catalog.Len())
	for _, p := range catalog.All() {
		byName[pose.Normalize(p.Name)] = p
	}

	out := &ImportOutput{Errors: []ImportError{}}

	if input.Mode == ImportModeError {
		collisions, err := importCollisions(ctx, database, file, byName)
		if err != nil {
			return nil, err
		}
		if len(collisions) > 0 {
			out.Errors = collisions
			return out, nil
		}
	}

	// ids as written in the file -> ids as stored
	idMap := make(map[pose.ID]pose.ID, len(file.Poses))
	for _, p := range file.Poses {
		if existing, ok := byName[pose.Normalize(p.Name)]; ok {
			if p.ID != 0 {
				idMap[p.ID] = existing.ID
			}
			out.PosesSkipped++
			continue
		}
		fileID := p.ID
		if _, taken := catalog.Lookup(p.ID); taken {
			p.ID = 0
		}
		stored, err := db.InsertPose(ctx, database, p)
		if err != nil {
			out.Errors = append(out.Errors, importError("pose", p.Name, err))
			continue
		}
		if fileID != 0 {
			idMap[fileID] = stored.ID
		}
		out.PosesImported++
	}

	for _, b := range file.FlowBlocks {
		ids := make([]pose.ID, len(b.Poses))
		for i, id := range b.Poses {
			if mapped, ok := idMap[id]; ok {
				id = mapped
			}
			ids[i] = id
		}

		mode := StoreModeError
		if input.Mode == ImportModeReplace {
			mode = StoreModeReplace
		}
		res, err := StoreFlowBlock(ctx, database, StoreFlowBlockInput{
			Name:        b.Name,
			Category:    b.Category,
			Poses:       ids,
			Timing:      b.Timing,
			Transitions: b.Transitions,
			Repetitions: b.Repetitions,
			Mode:        mode,
		})
		switch {
		case err == nil && res.Replaced:
			out.BlocksReplaced++
		case err == nil:
			out.BlocksImported++
		case input.Mode == ImportModeSkip && errors.Is(err, errors.ErrNameAlreadyExists):
			out.BlocksSkipped++
		default:
			out.Errors = append(out.Errors, importError("flow_block", b.Name, err))
		}
	}

	return out, nil
}

func importCollisions(ctx context.Context, database *sql.DB, file *pose.File, byName map[string]pose.Pose) ([]ImportError, error) {
	var collisions []ImportError
	for _, p := range file.Poses {
		if _, ok := byName[pose.Normalize(p.Name)]; ok {
			collisions = append(collisions, importError("pose", p.Name, errors.NewNameAlreadyExists("pose", p.Name)))
		}
	}
	for _, b := range file.FlowBlocks {
		_, err := db.GetFlowBlockByName(ctx, database, pose.Normalize(b.Name))
		if err == nil {
			collisions = append(collisions, importError("flow_block", b.Name, errors.NewNameAlreadyExists("flow block", b.Name)))
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}
	return collisions, nil
}

func importError(kind, name string, err error) ImportError {
	ie := ImportError{Kind: kind, Name: name, Code: errors.ErrInternal, Message: err.Error()}
	if ve := errors.As(err); ve != nil {
		ie.Code = ve.Code
		ie.Message = ve.Message
	}
	return ie
}
