package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
	"github.com/hpungsan/vinyasa/internal/snapshot"
)

// CheckIssue lists what is wrong with one stored sequence.
type CheckIssue struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Problems []string `json:"problems"`
}

// CheckOutput contains the result of the Check operation.
type CheckOutput struct {
	Checked int          `json:"checked"`
	Legacy  int          `json:"legacy"` // rows with at least one non-JSON list field
	Issues  []CheckIssue `json:"issues"`
	Healthy bool         `json:"healthy"`
}

// Check decodes every active stored sequence and verifies its invariants:
// decodable fields, known poses, timing for every step, and block references
// that still match their definitions. Nothing is rewritten.
func Check(ctx context.Context, d *Deps) (*CheckOutput, error) {
	catalog, err := db.LoadCatalog(ctx, d.DB)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, catalog)
	if err != nil {
		return nil, err
	}

	out := &CheckOutput{Issues: []CheckIssue{}}
	for offset := 0; ; offset += MaxListLimit {
		page, total, err := db.ListSequences(ctx, d.DB, MaxListLimit, offset, false)
		if err != nil {
			return nil, err
		}
		for _, summary := range page {
			row, err := db.GetSequence(ctx, d.DB, summary.ID, false)
			if err != nil {
				return nil, err
			}
			out.Checked++
			problems, legacy := checkRow(row, catalog, lookup, d.cfg().DefaultHold)
			if legacy {
				out.Legacy++
			}
			if len(problems) > 0 {
				out.Issues = append(out.Issues, CheckIssue{ID: row.ID, Name: row.Name, Problems: problems})
			}
		}
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}
	out.Healthy = len(out.Issues) == 0

	if !out.Healthy {
		d.logger().WarnContext(ctx, "stored sequences failed check",
			"checked", out.Checked,
			"issues", len(out.Issues),
		)
	}
	return out, nil
}

func checkRow(row *db.SequenceRow, catalog *pose.Catalog, lookup sequence.BlockLookup, defaultHold string) (problems []string, legacy bool) {
	decoded, err := snapshot.Decode(row.Record, catalog, defaultHold)
	if err != nil {
		return []string{err.Error()}, false
	}
	legacy = len(shapeNotes(decoded.Shapes)) > 0

	ids, _, _ := snapshot.DecodeIDs("poses", row.Poses)
	timing, _, _ := snapshot.DecodeStrings("timing", row.Timing)
	refs, _ := snapshot.DecodeBlockRefs(row.BlockRefs)

	if row.PoseCount != len(ids) {
		problems = append(problems, fmt.Sprintf("pose_count is %d but %d poses are stored", row.PoseCount, len(ids)))
	}
	if len(timing) != len(ids) {
		problems = append(problems, fmt.Sprintf("timing has %d entries for %d poses", len(timing), len(ids)))
	}
	if len(decoded.Dropped) > 0 {
		problems = append(problems, fmt.Sprintf("unknown poses %v", decoded.Dropped))
	} else if lost := len(refs) - len(decoded.Plan.Blocks); lost > 0 {
		problems = append(problems, fmt.Sprintf("%d block references point outside the sequence", lost))
	}
	if err := decoded.Plan.Check(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, ref := range decoded.Plan.Blocks {
		if _, ok := lookup(ref.FlowBlockID); !ok {
			problems = append(problems, fmt.Sprintf("block reference %s points at missing flow block %s", ref.ID, ref.FlowBlockID))
		}
	}
	_, stale := sequence.PruneBlocks(decoded.Plan, lookup)
	for _, ref := range stale {
		problems = append(problems, fmt.Sprintf("block reference %s at position %d no longer matches flow block %s", ref.ID, ref.Position, ref.FlowBlockID))
	}
	return problems, legacy
}

// shapeNotes reports fields stored in a legacy shape, in field order.
func shapeNotes(shapes map[string]snapshot.Shape) []string {
	var fields []string
	for field, shape := range shapes {
		if shape == snapshot.ShapeJSONString || shape == snapshot.ShapeBraceLiteral || shape == snapshot.ShapeBracketText {
			fields = append(fields, fmt.Sprintf("%s stored as %s", field, shape))
		}
	}
	sort.Strings(fields)
	return fields
}
