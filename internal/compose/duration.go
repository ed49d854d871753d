package compose

import (
	"context"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// AdjustInput holds the parameters of a duration change.
type AdjustInput struct {
	Plan       sequence.Plan
	Duration   int
	Difficulty pose.Difficulty
	FocusAreas []string
	Pool       []pose.Pose
	Lookup     sequence.BlockLookup
}

// AdjustDuration fits an existing sequence to a new duration. Below the
// minimum it tops up; above the (advisory) maximum it trims trailing steps,
// never below the minimum and never through a flow block. Timing is then
// regenerated, keeping the previous timing if that fails.
func (c *Composer) AdjustDuration(ctx context.Context, in AdjustInput) (*Result, error) {
	if in.Duration <= 0 {
		return nil, errors.NewInvalidRequest("duration must be positive")
	}

	tg := target{
		duration:   in.Duration,
		difficulty: in.Difficulty,
		focusAreas: in.FocusAreas,
		pool:       c.poolOr(in.Pool),
	}
	r := sequence.PoseRange(in.Duration)
	res := &Result{Range: r}

	plan := in.Plan
	n := plan.Len()
	switch {
	case n < r.Minimum:
		plan, res.TopUp = c.topUp(ctx, plan, r.Shortfall(n), tg)
	case r.TrimTarget(n) < n:
		plan, res.Trimmed = sequence.Trim(plan, r.TrimTarget(n), in.Lookup)
		if plan.Len() > r.TrimTarget(n) {
			c.logger.InfoContext(ctx, "flow blocks kept sequence above maximum",
				"length", plan.Len(),
				"maximum", r.Maximum,
			)
		}
	}

	plan, ok := c.retime(ctx, plan, tg)
	res.TimingStale = !ok
	res.Plan = plan
	return res, nil
}
