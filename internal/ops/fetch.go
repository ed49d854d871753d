package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID             string
	IncludeDeleted bool
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	SequenceView
}

// Fetch retrieves a stored sequence with its steps, sections and blocks.
func Fetch(ctx context.Context, d *Deps, input FetchInput) (*FetchOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	row, err := db.GetSequence(ctx, d.DB, input.ID, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	s, err := d.decode(ctx, row)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	return &FetchOutput{SequenceView: buildView(s, lookup)}, nil
}
