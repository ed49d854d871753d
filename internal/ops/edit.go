package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// EditOutput is returned by the single-step edits.
type EditOutput struct {
	Sequence SequenceView `json:"sequence"`

	// DroppedBlocks lists references whose span stopped matching their block.
	DroppedBlocks []sequence.BlockRef `json:"dropped_blocks,omitempty"`
}

// InsertBlockInput contains parameters for the InsertBlock operation.
type InsertBlockInput struct {
	ID              string
	ExpectedVersion int64

	// FlowBlockID or FlowBlockName selects the block; ID wins.
	FlowBlockID   string
	FlowBlockName string

	// Section is warm-up, main/peak or cool-down. Position, when set,
	// overrides it. Warm-up and cool-down blocks ignore both.
	Section  string
	Position *int

	Repetitions int // overrides the block's own count when > 0
}

// InsertBlockOutput contains the result of the InsertBlock operation.
type InsertBlockOutput struct {
	Sequence SequenceView      `json:"sequence"`
	Ref      sequence.BlockRef `json:"ref"`
	Clamped  bool              `json:"clamped,omitempty"`
	Snapped  bool              `json:"snapped,omitempty"`
}

// InsertBlock splices a flow block into a stored sequence.
func InsertBlock(ctx context.Context, d *Deps, input InsertBlockInput) (*InsertBlockOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	row, err := d.findFlowBlock(ctx, input.FlowBlockID, input.FlowBlockName)
	if err != nil {
		return nil, err
	}
	block := toFlowBlock(*row, s.catalog)
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	start := sequence.SectionsFor(s.plan.Len()).SectionStart(input.Section)
	if input.Position != nil {
		start = *input.Position
	}
	cfg := d.cfg()
	plan, res, err := sequence.Insert(s.plan, block, sequence.InsertOptions{
		SectionStart:      start,
		Repetitions:       input.Repetitions,
		DefaultHold:       cfg.DefaultHold,
		DefaultTransition: cfg.DefaultTransition,
		Lookup:            lookup,
	})
	if stderrors.Is(err, sequence.ErrEmptyBlock) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("flow block %q has no poses in the catalog", block.Name))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if res.Clamped {
		d.logger().WarnContext(ctx, "insert position clamped",
			"id", s.row.ID,
			"requested", start,
			"position", res.Ref.Position,
		)
	}
	if res.Snapped {
		d.logger().WarnContext(ctx, "insert position moved out of existing block",
			"id", s.row.ID,
			"requested", start,
			"position", res.Ref.Position,
		)
	}

	if err := d.commit(ctx, s, plan); err != nil {
		return nil, err
	}
	return &InsertBlockOutput{
		Sequence: buildView(s, lookup),
		Ref:      res.Ref,
		Clamped:  res.Clamped,
		Snapped:  res.Snapped,
	}, nil
}

// RemoveBlockInput contains parameters for the RemoveBlock operation.
type RemoveBlockInput struct {
	ID              string
	ExpectedVersion int64
	Position        int // start of the block span
}

// RemoveBlockOutput contains the result of the RemoveBlock operation.
type RemoveBlockOutput struct {
	Sequence SequenceView `json:"sequence"`
	sequence.RemoveResult
}

// RemoveBlock deletes the flow block whose reference starts at Position.
// With no reference there, or when the block definition is gone, nothing is
// written and Removed is false.
func RemoveBlock(ctx context.Context, d *Deps, input RemoveBlockInput) (*RemoveBlockOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	plan, res := sequence.Remove(s.plan, input.Position, lookup)
	if !res.Removed {
		if res.Inconsistent {
			d.logger().WarnContext(ctx, "flow block reference is inconsistent",
				"id", s.row.ID,
				"position", input.Position,
				"flow_block_id", res.Ref.FlowBlockID,
			)
		}
		return &RemoveBlockOutput{Sequence: buildView(s, lookup), RemoveResult: res}, nil
	}
	if res.Clamped {
		d.logger().WarnContext(ctx, "block span ran past the end of the sequence",
			"id", s.row.ID,
			"position", input.Position,
			"removed", res.Length,
		)
	}

	if err := d.commit(ctx, s, plan); err != nil {
		return nil, err
	}
	return &RemoveBlockOutput{Sequence: buildView(s, lookup), RemoveResult: res}, nil
}

// MoveInput contains parameters for the Move operation.
type MoveInput struct {
	ID              string
	ExpectedVersion int64
	From            int
	To              int
}

// MoveOutput contains the result of the Move operation.
type MoveOutput struct {
	Sequence SequenceView `json:"sequence"`
	sequence.MoveResult
}

// Move relocates one pose. Timing and transitions stay with their slots.
func Move(ctx context.Context, d *Deps, input MoveInput) (*MoveOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	plan, res := sequence.Move(s.plan, input.From, input.To)
	if res.Clamped {
		d.logger().WarnContext(ctx, "move destination clamped",
			"id", s.row.ID,
			"requested", input.To,
			"destination", res.Destination,
		)
	}
	if res.Moved {
		if err := d.commit(ctx, s, plan); err != nil {
			return nil, err
		}
	}
	return &MoveOutput{Sequence: buildView(s, lookup), MoveResult: res}, nil
}

// ReplaceStepInput contains parameters for the ReplaceStep operation.
type ReplaceStepInput struct {
	ID              string
	ExpectedVersion int64
	Index           int
	PoseID          pose.ID
}

// ReplaceStep swaps the pose at Index for another catalog pose, keeping the
// slot's timing and transition.
func ReplaceStep(ctx context.Context, d *Deps, input ReplaceStepInput) (*EditOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	p, ok := s.catalog.Lookup(input.PoseID)
	if !ok {
		return nil, errors.NewNotFound("pose", fmt.Sprint(input.PoseID))
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	plan, dropped, err := sequence.ReplacePose(s.plan, input.Index, p, lookup)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if err := d.commit(ctx, s, plan); err != nil {
		return nil, err
	}
	return &EditOutput{Sequence: buildView(s, lookup), DroppedBlocks: dropped}, nil
}

// RemoveStepInput contains parameters for the RemoveStep operation.
type RemoveStepInput struct {
	ID              string
	ExpectedVersion int64
	Index           int
}

// RemoveStep deletes a single step. The last remaining step cannot be
// removed.
func RemoveStep(ctx context.Context, d *Deps, input RemoveStepInput) (*EditOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if s.plan.Len() <= 1 {
		return nil, errors.NewInvalidRequest("cannot remove the only step of a sequence")
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	plan, dropped, err := sequence.RemoveStep(s.plan, input.Index, lookup)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if minimum := sequence.PoseRange(s.row.Duration).Minimum; plan.Len() < minimum {
		d.logger().WarnContext(ctx, "sequence below minimum length",
			"id", s.row.ID,
			"poses", plan.Len(),
			"minimum", minimum,
		)
	}
	if err := d.commit(ctx, s, plan); err != nil {
		return nil, err
	}
	return &EditOutput{Sequence: buildView(s, lookup), DroppedBlocks: dropped}, nil
}

// findFlowBlock resolves a block by id, falling back to its name.
func (d *Deps) findFlowBlock(ctx context.Context, id, name string) (*db.FlowBlockRow, error) {
	if id = strings.TrimSpace(id); id != "" {
		return db.GetFlowBlock(ctx, d.DB, id)
	}
	if norm := pose.Normalize(name); norm != "" {
		return db.GetFlowBlockByName(ctx, d.DB, norm)
	}
	return nil, errors.NewInvalidRequest("flow block id or name is required")
}
