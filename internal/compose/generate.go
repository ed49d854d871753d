package compose

import (
	"context"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// GenerateInput holds the parameters of an initial generation.
type GenerateInput struct {
	FocusPoses []pose.Pose
	Duration   int
	Difficulty pose.Difficulty
	FocusAreas []string

	// Pool is the candidate pool. Nil means the whole catalog.
	Pool []pose.Pose
}

// Generate builds a new sequence. An oracle failure on the initial request
// is fatal; failures while topping up or re-timing are recovered locally.
func (c *Composer) Generate(ctx context.Context, in GenerateInput) (*Result, error) {
	if in.Duration <= 0 {
		return nil, errors.NewInvalidRequest("duration must be positive")
	}
	difficulty, err := pose.ParseDifficulty(string(in.Difficulty))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	in.Difficulty = difficulty

	tg := target{
		duration:   in.Duration,
		difficulty: in.Difficulty,
		focusAreas: in.FocusAreas,
		pool:       c.poolOr(in.Pool),
	}
	r := sequence.PoseRange(in.Duration)

	resp, err := c.oracle.Generate(ctx, oracle.GenerateRequest{
		FocusPoses:      oracle.FocusPoses(in.FocusPoses),
		Duration:        in.Duration,
		DifficultyLevel: string(in.Difficulty),
		FocusAreas:      nonNil(in.FocusAreas),
		AvailablePoses:  oracle.Candidates(tg.pool),
	})
	if err != nil {
		return nil, err
	}

	poses, kept, dropped := resolve(tg.pool, resp.Sequence)
	if len(poses) == 0 {
		return nil, errors.NewEmptyResolution(len(resp.Sequence))
	}
	if len(dropped) > 0 {
		c.logger.InfoContext(ctx, "dropped unresolvable oracle ids", "dropped", dropped)
	}

	res := &Result{Range: r, Dropped: dropped}

	if len(poses) >= r.Minimum {
		plan := sequence.New(poses, alignTiming(resp.Timing, kept), alignTransitions(resp.Transitions, kept), c.defaultHold)
		res.Plan = plan.WithRepetitions(resp.Repetitions)
		return res, nil
	}

	// Top-up path: the oracle's partial timing is discarded and fetched
	// fresh for the complete list.
	plan := sequence.New(poses, nil, nil, c.defaultHold)
	plan, res.TopUp = c.topUp(ctx, plan, r.Shortfall(len(poses)), tg)

	plan, ok := c.retime(ctx, plan, tg)
	res.TimingStale = !ok
	res.Plan = plan
	return res, nil
}
