package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays *int // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  db.PurgeCounts `json:"purged"`
	Message string         `json:"message"`
}

// Purge permanently deletes soft-deleted sequences and flow blocks.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}
	counts, err := db.PurgeDeleted(ctx, database, input.OlderThanDays)
	if err != nil {
		return nil, err
	}
	return &PurgeOutput{
		Purged:  counts,
		Message: formatPurgeMessage(counts, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(counts db.PurgeCounts, olderThanDays *int) string {
	if counts.Sequences == 0 && counts.FlowBlocks == 0 {
		return "No deleted sequences or flow blocks to purge"
	}

	var parts []string
	if counts.Sequences > 0 {
		parts = append(parts, plural(counts.Sequences, "sequence", "sequences"))
	}
	if counts.FlowBlocks > 0 {
		parts = append(parts, plural(counts.FlowBlocks, "flow block", "flow blocks"))
	}

	msg := "Permanently deleted " + strings.Join(parts, " and ")
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}
	return msg
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
