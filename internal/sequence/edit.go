package sequence

import (
	"fmt"

	"github.com/hpungsan/vinyasa/internal/pose"
)

// ReplacePose swaps the pose at index, keeping the slot's timing and
// transition. References whose span no longer matches their block are pruned.
func ReplacePose(plan Plan, index int, p pose.Pose, lookup BlockLookup) (Plan, []BlockRef, error) {
	if index < 0 || index >= plan.Len() {
		return plan, nil, fmt.Errorf("step index %d out of range [0, %d)", index, plan.Len())
	}
	out := plan.Clone()
	out.Steps[index].Pose = p
	out, dropped := PruneBlocks(out, lookup)
	return out, dropped, nil
}

// RemoveStep deletes the step at index. When the last step is removed the
// new last step loses its outgoing transition.
func RemoveStep(plan Plan, index int, lookup BlockLookup) (Plan, []BlockRef, error) {
	if index < 0 || index >= plan.Len() {
		return plan, nil, fmt.Errorf("step index %d out of range [0, %d)", index, plan.Len())
	}
	out := plan.Clone()
	out.Steps = append(out.Steps[:index], out.Steps[index+1:]...)
	if n := len(out.Steps); n > 0 && index == n {
		out.Steps[n-1].Transition = ""
	}
	for i := range out.Blocks {
		if out.Blocks[i].Position > index {
			out.Blocks[i].Position--
		}
	}
	out, dropped := PruneBlocks(out, lookup)
	return out, dropped, nil
}

// PruneBlocks drops references that point outside the sequence or whose span
// no longer holds the block's poses in order. References whose block cannot
// be looked up are kept as long as their position is valid.
func PruneBlocks(plan Plan, lookup BlockLookup) (Plan, []BlockRef) {
	if len(plan.Blocks) == 0 {
		return plan, nil
	}
	out := plan.Clone()
	var kept, dropped []BlockRef
	for _, r := range out.Blocks {
		if r.Position < 0 || r.Position >= out.Len() {
			dropped = append(dropped, r)
			continue
		}
		if lookup != nil {
			if block, ok := lookup(r.FlowBlockID); ok && !spanMatches(out, r.Position, block) {
				dropped = append(dropped, r)
				continue
			}
		}
		kept = append(kept, r)
	}
	out.Blocks = kept
	return out, dropped
}

func spanMatches(plan Plan, position int, block FlowBlock) bool {
	if position+block.Len() > plan.Len() {
		return false
	}
	for i, p := range block.Poses {
		if plan.Steps[position+i].Pose.ID != p.ID {
			return false
		}
	}
	return true
}

// inBlock reports whether index falls inside any referenced block span.
func inBlock(plan Plan, index int, lookup BlockLookup) bool {
	for _, r := range plan.Blocks {
		length := 1
		if lookup != nil {
			if block, ok := lookup(r.FlowBlockID); ok {
				length = block.Len()
			}
		}
		if index >= r.Position && index < r.Position+length {
			return true
		}
	}
	return false
}

// Trim removes trailing steps until the plan has n steps, skipping steps that
// belong to a referenced block. It stops early when only block steps remain
// past n. Returns the number of steps removed.
func Trim(plan Plan, n int, lookup BlockLookup) (Plan, int) {
	out := plan
	removed := 0
	for i := out.Len() - 1; i >= 0 && out.Len() > n; i-- {
		if inBlock(out, i, lookup) {
			continue
		}
		next, _, err := RemoveStep(out, i, lookup)
		if err != nil {
			break
		}
		out = next
		removed++
	}
	return out, removed
}
