package sequence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hpungsan/vinyasa/internal/pose"
)

// ErrEmptyBlock is returned when splicing a flow block with no poses.
var ErrEmptyBlock = errors.New("flow block has no poses")

type sectionKindT int

const (
	kindMain sectionKindT = iota
	kindWarmUp
	kindCoolDown
)

// sectionKind classifies a block category or section name.
func sectionKind(name string) sectionKindT {
	n := strings.NewReplacer("-", "", " ", "", "_", "").Replace(pose.Normalize(name))
	switch n {
	case "warmup":
		return kindWarmUp
	case "cooldown":
		return kindCoolDown
	default:
		return kindMain
	}
}

// InsertOptions tunes Insert.
type InsertOptions struct {
	// SectionStart is where non warm-up/cool-down blocks go.
	SectionStart int

	// CoolDownLength overrides the computed cool-down section length when > 0.
	CoolDownLength int

	// Repetitions overrides the block's own repetition count when > 0.
	Repetitions int

	DefaultHold       string
	DefaultTransition string

	// RefID is the id given to the new reference; generated when empty.
	RefID string

	// Lookup resolves existing references so a position inside a referenced
	// span can be moved to the span's start. Nil skips the adjustment.
	Lookup BlockLookup
}

// InsertResult describes a completed Insert.
type InsertResult struct {
	Ref BlockRef `json:"ref"`

	// Clamped is set when the requested position fell outside the sequence.
	Clamped bool `json:"clamped,omitempty"`

	// Snapped is set when the position fell inside an existing block span
	// and the new block went in front of that span instead.
	Snapped bool `json:"snapped,omitempty"`
}

// InsertPosition computes where a block lands in a sequence of n steps.
// Warm-up blocks go first, cool-down blocks go before the cool-down section,
// anything else at opts.SectionStart. The result is clamped to [0, n].
func InsertPosition(n int, block FlowBlock, opts InsertOptions) (position int, clamped bool) {
	switch sectionKind(block.Category) {
	case kindWarmUp:
		position = 0
	case kindCoolDown:
		coolDown := opts.CoolDownLength
		if coolDown <= 0 {
			coolDown = SectionsFor(n).CoolDownLen
		}
		position = n - coolDown
	default:
		position = opts.SectionStart
	}
	if position < 0 {
		return 0, true
	}
	if position > n {
		return n, true
	}
	return position, false
}

// Insert splices block into plan. Spliced steps take the block's timing
// (defaultHold where missing) and transitions between consecutive block poses
// (defaultTransition where missing); the transitions into and out of the
// block are left to the surrounding sequence. References at or after the
// insertion point shift by the block length, and a reference to the new span
// is appended.
func Insert(plan Plan, block FlowBlock, opts InsertOptions) (Plan, InsertResult, error) {
	k := block.Len()
	if k == 0 {
		return plan, InsertResult{}, ErrEmptyBlock
	}

	position, clamped := InsertPosition(plan.Len(), block, opts)
	position, snapped := spanStart(plan, position, opts.Lookup)

	spliced := make([]Step, k)
	for i, p := range block.Poses {
		timing := ""
		if i < len(block.Timing) {
			timing = strings.TrimSpace(block.Timing[i])
		}
		if timing == "" {
			timing = opts.DefaultHold
		}
		transition := ""
		if i < k-1 {
			if i < len(block.Transitions) {
				transition = strings.TrimSpace(block.Transitions[i])
			}
			if transition == "" {
				transition = opts.DefaultTransition
			}
		}
		spliced[i] = Step{Pose: p, Timing: timing, Transition: transition}
	}

	out := plan.Clone()
	steps := make([]Step, 0, len(out.Steps)+k)
	steps = append(steps, out.Steps[:position]...)
	steps = append(steps, spliced...)
	steps = append(steps, out.Steps[position:]...)
	out.Steps = steps

	for i := range out.Blocks {
		if out.Blocks[i].Position >= position {
			out.Blocks[i].Position += k
		}
	}

	reps := opts.Repetitions
	if reps <= 0 {
		reps = block.Repetitions
	}
	if reps <= 0 {
		reps = 1
	}

	refID := opts.RefID
	if refID == "" {
		refID = uuid.NewString()
	}
	ref := BlockRef{
		ID:          refID,
		FlowBlockID: block.ID,
		Position:    position,
		Repetitions: reps,
	}
	out.Blocks = append(out.Blocks, ref)

	if reps > 1 {
		key := RepetitionKey(pose.IDs(block.Poses))
		if out.Repetitions == nil {
			out.Repetitions = make(RepetitionMap)
		}
		if _, exists := out.Repetitions[key]; !exists {
			out.Repetitions[key] = Repetition{
				Count: reps,
				Note:  fmt.Sprintf("Repeat %s %d times", block.Name, reps),
			}
		}
	}

	return out, InsertResult{Ref: ref, Clamped: clamped, Snapped: snapped}, nil
}

// spanStart returns the start of the referenced span that strictly contains
// position, or position itself when none does. Only spans that still hold
// their block's poses count.
func spanStart(plan Plan, position int, lookup BlockLookup) (int, bool) {
	if lookup == nil {
		return position, false
	}
	for _, r := range plan.Blocks {
		block, ok := lookup(r.FlowBlockID)
		if !ok || !spanMatches(plan, r.Position, block) {
			continue
		}
		if position > r.Position && position < r.Position+block.Len() {
			return r.Position, true
		}
	}
	return position, false
}

// RemoveResult describes the outcome of Remove. Removed is false for the
// no-op cases; Reason then says why.
type RemoveResult struct {
	Removed bool      `json:"removed"`
	Reason  string    `json:"reason,omitempty"`
	Ref     *BlockRef `json:"ref,omitempty"`
	Length  int       `json:"length,omitempty"`

	// Inconsistent is set when the reference exists but its block definition
	// could not be found, or the steps at the reference no longer hold the
	// block's poses.
	Inconsistent bool `json:"inconsistent,omitempty"`

	// Clamped is set when the block ran past the end of the sequence and only
	// the remaining steps were removed.
	Clamped bool `json:"clamped,omitempty"`
}

// Remove deletes the block whose reference starts at position. With no
// reference there, when the block definition is gone, or when the span no
// longer holds the block's poses, the plan is returned unchanged.
func Remove(plan Plan, position int, lookup BlockLookup) (Plan, RemoveResult) {
	idx, ok := plan.RefAt(position)
	if !ok {
		return plan, RemoveResult{Reason: fmt.Sprintf("no flow block reference at position %d", position)}
	}
	ref := plan.Blocks[idx]

	var block FlowBlock
	found := false
	if lookup != nil {
		block, found = lookup(ref.FlowBlockID)
	}
	if !found {
		return plan, RemoveResult{
			Reason:       fmt.Sprintf("flow block %s no longer exists; reference left in place", ref.FlowBlockID),
			Ref:          &ref,
			Inconsistent: true,
		}
	}

	k := block.Len()
	clamped := false
	if position+k > plan.Len() {
		k = plan.Len() - position
		clamped = true
	}
	end := position + k

	for i := 0; i < k; i++ {
		if plan.Steps[position+i].Pose.ID != block.Poses[i].ID {
			return plan, RemoveResult{
				Reason:       fmt.Sprintf("steps at position %d no longer match flow block %s; reference left in place", position, ref.FlowBlockID),
				Ref:          &ref,
				Inconsistent: true,
			}
		}
	}

	out := plan.Clone()
	signature := RepetitionKey(pose.IDs(out.Poses()[position:end]))

	steps := make([]Step, 0, len(out.Steps)-k)
	steps = append(steps, out.Steps[:position]...)
	steps = append(steps, out.Steps[end:]...)
	out.Steps = steps

	refs := make([]BlockRef, 0, len(out.Blocks))
	for i, r := range out.Blocks {
		switch {
		case i == idx:
			continue
		case r.Position >= end:
			r.Position -= k
		case r.Position > position:
			// started inside the removed span
			continue
		}
		refs = append(refs, r)
	}
	out.Blocks = refs
	if len(out.Blocks) == 0 {
		out.Blocks = nil
	}

	if !sharesSignature(out, signature, lookup) {
		delete(out.Repetitions, signature)
	}
	if len(out.Repetitions) == 0 {
		out.Repetitions = nil
	}

	return out, RemoveResult{Removed: true, Ref: &ref, Length: k, Clamped: clamped}
}

// sharesSignature reports whether a remaining reference still covers a span
// with the given repetition key.
func sharesSignature(plan Plan, signature string, lookup BlockLookup) bool {
	for _, r := range plan.Blocks {
		block, ok := lookup(r.FlowBlockID)
		if !ok || !spanMatches(plan, r.Position, block) {
			continue
		}
		if RepetitionKey(pose.IDs(block.Poses)) == signature {
			return true
		}
	}
	return false
}
