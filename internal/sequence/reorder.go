package sequence

// MoveResult describes the outcome of Move.
type MoveResult struct {
	Moved       bool   `json:"moved"`
	Source      int    `json:"source"`
	Destination int    `json:"destination"`
	Reason      string `json:"reason,omitempty"`

	// Clamped is set when destination was pulled back into range.
	Clamped bool `json:"clamped,omitempty"`
}

// Move relocates the pose at source to destination. Timing and transitions
// belong to the slot, not the pose, so they stay where they are. Block
// references are shifted to follow the poses around them:
//
//	position == source                      -> destination
//	source < position <= destination        -> position-1
//	destination <= position < source        -> position+1
func Move(plan Plan, source, destination int) (Plan, MoveResult) {
	n := plan.Len()
	res := MoveResult{Source: source, Destination: destination}

	if source < 0 || source >= n {
		res.Reason = "source index out of range"
		return plan, res
	}
	if destination < 0 {
		destination, res.Clamped = 0, true
	}
	if destination >= n {
		destination, res.Clamped = n-1, true
	}
	res.Destination = destination
	if source == destination {
		res.Reason = "source equals destination"
		return plan, res
	}

	out := plan.Clone()
	poses := out.Poses()
	moved := poses[source]
	if source < destination {
		copy(poses[source:destination], poses[source+1:destination+1])
	} else {
		copy(poses[destination+1:source+1], poses[destination:source])
	}
	poses[destination] = moved
	for i := range out.Steps {
		out.Steps[i].Pose = poses[i]
	}

	for i := range out.Blocks {
		out.Blocks[i].Position = shiftPosition(out.Blocks[i].Position, source, destination)
	}

	res.Moved = true
	return out, res
}

func shiftPosition(position, source, destination int) int {
	switch {
	case position == source:
		return destination
	case source < position && position <= destination:
		return position - 1
	case destination <= position && position < source:
		return position + 1
	default:
		return position
	}
}
