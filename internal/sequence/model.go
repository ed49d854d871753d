// Package sequence is the composition engine: an ordered list of steps
// (pose, timing, transition to the next step), a repetition map and a list
// of flow-block references into the step index space.
//
// Every exported operation takes a Plan by value and returns a new Plan; the
// input is never mutated. Operations never panic on bad indexes: they clamp or
// report a no-op instead.
package sequence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/vinyasa/internal/pose"
)

// Step is one slot of the sequence. Transition describes the move from this
// step to the next one and is empty for the last step.
type Step struct {
	Pose       pose.Pose `json:"pose"`
	Timing     string    `json:"timing"`
	Transition string    `json:"transition,omitempty"`
}

// Repetition marks a pose or a mini-flow to be repeated.
type Repetition struct {
	Count int    `json:"repeat"`
	Note  string `json:"note"`
}

// UnmarshalJSON accepts both the oracle shape {repeat, note} and the older
// stored shape {count, note}.
func (r *Repetition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Repeat *int   `json:"repeat"`
		Count  *int   `json:"count"`
		Note   string `json:"note"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Note = raw.Note
	r.Count = 0
	switch {
	case raw.Repeat != nil:
		r.Count = *raw.Repeat
	case raw.Count != nil:
		r.Count = *raw.Count
	}
	return nil
}

// RepetitionMap is keyed by a single pose id or a dash-joined run of ids.
type RepetitionMap map[string]Repetition

// RepetitionKey builds the map key for a run of poses.
func RepetitionKey(ids []pose.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, "-")
}

// BlockRef is a weak reference from the step index space into a flow block.
// The block occupies Position .. Position+len(block)-1 until the next
// structural edit.
type BlockRef struct {
	ID          string `json:"id"`
	FlowBlockID string `json:"flow_block_id"`
	Position    int    `json:"position"`
	Repetitions int    `json:"repetitions"`
}

// FlowBlock is a reusable sub-sequence with its own timing. It is owned by
// the flow-block store; a Plan only refers to it.
type FlowBlock struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Poses       []pose.Pose `json:"poses"`
	Timing      []string    `json:"timing,omitempty"`
	Transitions []string    `json:"transitions,omitempty"`
	Repetitions int         `json:"repetitions"`
}

// Len returns the number of poses in the block.
func (b FlowBlock) Len() int { return len(b.Poses) }

// BlockLookup resolves a flow-block id to its definition.
type BlockLookup func(flowBlockID string) (FlowBlock, bool)

// Plan is the aggregate the engine operates on.
type Plan struct {
	Steps       []Step        `json:"steps"`
	Repetitions RepetitionMap `json:"repetitions,omitempty"`
	Blocks      []BlockRef    `json:"blocks,omitempty"`
}

// Len returns the number of steps.
func (p Plan) Len() int { return len(p.Steps) }

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := Plan{
		Steps:  append([]Step(nil), p.Steps...),
		Blocks: append([]BlockRef(nil), p.Blocks...),
	}
	if p.Repetitions != nil {
		out.Repetitions = make(RepetitionMap, len(p.Repetitions))
		for k, v := range p.Repetitions {
			out.Repetitions[k] = v
		}
	}
	return out
}

// Poses returns the poses in order.
func (p Plan) Poses() []pose.Pose {
	out := make([]pose.Pose, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Pose
	}
	return out
}

// PoseIDs returns the pose ids in order.
func (p Plan) PoseIDs() []pose.ID {
	return pose.IDs(p.Poses())
}

// Timing returns one timing string per step.
func (p Plan) Timing() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Timing
	}
	return out
}

// Transitions returns the transitions between consecutive steps (length N-1).
func (p Plan) Transitions() []string {
	if len(p.Steps) < 2 {
		return []string{}
	}
	out := make([]string, len(p.Steps)-1)
	for i := range out {
		out[i] = p.Steps[i].Transition
	}
	return out
}

// New builds a plan from parallel lists, normalizing lengths: missing timing
// entries get defaultHold, extra ones are dropped; transitions are fitted to
// N-1 entries, missing ones left empty.
func New(poses []pose.Pose, timing, transitions []string, defaultHold string) Plan {
	steps := make([]Step, len(poses))
	for i, p := range poses {
		steps[i] = Step{Pose: p}
	}
	plan := Plan{Steps: steps}
	return plan.WithTiming(timing, transitions, defaultHold)
}

// WithTiming returns a copy of p with timing and transitions replaced,
// normalized the same way as New.
func (p Plan) WithTiming(timing, transitions []string, defaultHold string) Plan {
	out := p.Clone()
	for i := range out.Steps {
		t := ""
		if i < len(timing) {
			t = strings.TrimSpace(timing[i])
		}
		if t == "" {
			t = defaultHold
		}
		out.Steps[i].Timing = t

		tr := ""
		if i < len(out.Steps)-1 && i < len(transitions) {
			tr = strings.TrimSpace(transitions[i])
		}
		out.Steps[i].Transition = tr
	}
	return out
}

// WithRepetitions returns a copy of p with the repetition map replaced.
func (p Plan) WithRepetitions(reps RepetitionMap) Plan {
	out := p.Clone()
	out.Repetitions = nil
	if len(reps) > 0 {
		out.Repetitions = make(RepetitionMap, len(reps))
		for k, v := range reps {
			out.Repetitions[k] = v
		}
	}
	return out
}

// Append returns a copy of p with poses appended, each holding defaultHold.
func (p Plan) Append(poses []pose.Pose, defaultHold string) Plan {
	out := p.Clone()
	for _, ps := range poses {
		out.Steps = append(out.Steps, Step{Pose: ps, Timing: defaultHold})
	}
	return out
}

// Contains reports whether a pose id is already in the plan.
func (p Plan) Contains(id pose.ID) bool {
	for _, s := range p.Steps {
		if s.Pose.ID == id {
			return true
		}
	}
	return false
}

// RefAt returns the index into Blocks of the reference starting at position.
func (p Plan) RefAt(position int) (int, bool) {
	for i, r := range p.Blocks {
		if r.Position == position {
			return i, true
		}
	}
	return -1, false
}

// Check verifies the structural invariants every public operation must
// preserve.
func (p Plan) Check() error {
	seen := make(map[string]bool, len(p.Blocks))
	for _, r := range p.Blocks {
		if r.Position < 0 || r.Position >= len(p.Steps) {
			return fmt.Errorf("block reference %s at position %d outside sequence of %d steps", r.ID, r.Position, len(p.Steps))
		}
		if r.ID != "" {
			if seen[r.ID] {
				return fmt.Errorf("duplicate block reference id %s", r.ID)
			}
			seen[r.ID] = true
		}
	}
	for i, s := range p.Steps {
		if strings.TrimSpace(s.Timing) == "" {
			return fmt.Errorf("step %d has no timing", i)
		}
	}
	return nil
}

// Equal reports whether two plans have the same poses, timing and transitions.
// Block references and repetitions are not compared.
func (p Plan) Equal(other Plan) bool {
	if len(p.Steps) != len(other.Steps) {
		return false
	}
	for i := range p.Steps {
		a, b := p.Steps[i], other.Steps[i]
		if a.Pose.ID != b.Pose.ID || a.Timing != b.Timing || a.Transition != b.Transition {
			return false
		}
	}
	return true
}

// SameOrder reports whether two id lists are identical.
func SameOrder(a, b []pose.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
