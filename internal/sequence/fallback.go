package sequence

import (
	"slices"

	"github.com/hpungsan/vinyasa/internal/pose"
)

// SelectFallback picks up to count poses without the oracle. Candidates must
// match difficulty and not already be in current. Poses whose category or
// description mentions a focus area rank first; ties keep pool order, so the
// result is fully determined by the inputs.
//
// A short or empty result is valid when the pool runs out.
func SelectFallback(current []pose.Pose, pool []pose.Pose, focusAreas []string, difficulty pose.Difficulty, count int) []pose.Pose {
	if count <= 0 {
		return nil
	}

	taken := make(map[pose.ID]bool, len(current))
	for _, p := range current {
		taken[p.ID] = true
	}

	type candidate struct {
		pose  pose.Pose
		score int
	}
	var candidates []candidate
	for _, p := range pool {
		if p.Difficulty != difficulty || taken[p.ID] {
			continue
		}
		// a pool may list the same pose twice
		taken[p.ID] = true
		score := 0
		if p.Matches(focusAreas) {
			score = 1
		}
		candidates = append(candidates, candidate{pose: p, score: score})
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.score - a.score
	})

	n := min(count, len(candidates))
	out := make([]pose.Pose, n)
	for i := range n {
		out[i] = candidates[i].pose
	}
	return out
}
