package compose

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// InsightsInput holds the parameters of an insights fetch.
type InsightsInput struct {
	Plan       sequence.Plan
	Duration   int
	Difficulty pose.Difficulty
	FocusAreas []string
}

// Insights carries the improvement suggestions and per-pose alternatives for
// a finished sequence. Either half may be missing; its error is then set.
type Insights struct {
	Suggestions  []oracle.Suggestion     `json:"suggestions"`
	Alternatives map[string][]pose.Pose `json:"alternatives"`

	SuggestionsError  string `json:"suggestions_error,omitempty"`
	AlternativesError string `json:"alternatives_error,omitempty"`
}

// Insights fetches suggestions and alternatives in parallel. Both are best
// effort: a failure in one never blocks or cancels the other, and Insights
// itself does not fail.
func (c *Composer) Insights(ctx context.Context, in InsightsInput) *Insights {
	req := oracle.InsightsRequest{
		Sequence:   in.Plan.PoseIDs(),
		FocusAreas: nonNil(in.FocusAreas),
		Level:      string(in.Difficulty),
		Duration:   in.Duration,
	}
	out := &Insights{
		Suggestions:  []oracle.Suggestion{},
		Alternatives: map[string][]pose.Pose{},
	}

	var g errgroup.Group
	g.Go(func() error {
		resp, err := c.oracle.Suggestions(ctx, req)
		if err != nil {
			c.logger.WarnContext(ctx, "suggestions unavailable", "error", err)
			out.SuggestionsError = err.Error()
			return nil
		}
		if resp.Suggestions != nil {
			out.Suggestions = resp.Suggestions
		}
		return nil
	})
	g.Go(func() error {
		resp, err := c.oracle.Alternatives(ctx, req)
		if err != nil {
			c.logger.WarnContext(ctx, "alternatives unavailable", "error", err)
			out.AlternativesError = err.Error()
			return nil
		}
		out.Alternatives = c.resolveAlternatives(in.Plan, resp.Alternatives)
		return nil
	})
	_ = g.Wait()

	return out
}

// resolveAlternatives keeps entries for poses in the plan, resolving each
// alternative against the catalog and dropping unknown ids.
func (c *Composer) resolveAlternatives(plan sequence.Plan, raw map[string]oracle.IDList) map[string][]pose.Pose {
	out := make(map[string][]pose.Pose, len(raw))
	for key, ids := range raw {
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil || !plan.Contains(pose.ID(n)) {
			continue
		}
		poses, _ := c.catalog.Resolve(ids)
		if len(poses) > 0 {
			out[key] = poses
		}
	}
	return out
}
