package compose

import (
	"context"
	"strings"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// ReviseSlack is how far the revised length may stray from the original.
const ReviseSlack = 3

// ReviseInput holds the parameters of a revision.
type ReviseInput struct {
	Plan sequence.Plan

	// Suggestion is a templated instruction; CustomPrompt overrides it.
	Suggestion   string
	CustomPrompt string

	Duration   int
	Difficulty pose.Difficulty
	FocusAreas []string
	Pool       []pose.Pose

	// Lookup resolves flow blocks so references whose span no longer
	// matches can be pruned. Nil keeps any in-range reference.
	Lookup sequence.BlockLookup
}

// Revise reorders an existing sequence from an instruction. The revision is
// all-or-nothing: on a fatal error the input plan is untouched.
func (c *Composer) Revise(ctx context.Context, in ReviseInput) (*Result, error) {
	suggestion := strings.TrimSpace(in.Suggestion)
	custom := strings.TrimSpace(in.CustomPrompt)
	if suggestion == "" && custom == "" {
		return nil, errors.NewInvalidRequest("suggestion or custom prompt is required")
	}
	if in.Plan.Len() == 0 {
		return nil, errors.NewInvalidRequest("cannot revise an empty sequence")
	}
	if in.Duration <= 0 {
		return nil, errors.NewInvalidRequest("duration must be positive")
	}
	if custom != "" {
		suggestion = ""
	}

	tg := target{
		duration:   in.Duration,
		difficulty: in.Difficulty,
		focusAreas: in.FocusAreas,
		pool:       c.poolOr(in.Pool),
	}
	r := sequence.PoseRange(in.Duration)
	n := in.Plan.Len()

	resp, err := c.oracle.Revise(ctx, oracle.ReviseRequest{
		Sequence:       oracle.Candidates(in.Plan.Poses()),
		Suggestion:     suggestion,
		CustomPrompt:   custom,
		Focus:          nonNil(in.FocusAreas),
		Level:          string(in.Difficulty),
		Duration:       in.Duration,
		AvailablePoses: oracle.Candidates(tg.pool),
		Constraints: &oracle.ReviseConstraints{
			MustDiffer: true,
			MinLength:  max(1, n-ReviseSlack),
			MaxLength:  n + ReviseSlack,
		},
	})
	if err != nil {
		return nil, err
	}

	poses, _, dropped := resolve(tg.pool, resp.Sequence)
	if len(poses) == 0 {
		return nil, errors.NewEmptyResolution(len(resp.Sequence))
	}
	if len(dropped) > 0 {
		c.logger.InfoContext(ctx, "dropped unresolvable oracle ids", "dropped", dropped)
	}

	res := &Result{Range: r, Dropped: dropped}
	res.NoOp = sequence.SameOrder(pose.IDs(poses), in.Plan.PoseIDs())
	if res.NoOp {
		c.logger.WarnContext(ctx, "revision returned the sequence unchanged", "poses", n)
	}

	// Steps inherit the timing of the slot they land in until fresh timing
	// arrives.
	revised := in.Plan.Clone()
	revised.Steps = make([]sequence.Step, len(poses))
	for i, p := range poses {
		revised.Steps[i] = sequence.Step{Pose: p}
	}
	revised = revised.WithTiming(in.Plan.Timing(), in.Plan.Transitions(), c.defaultHold)

	revised, res.TopUp = c.topUp(ctx, revised, r.Shortfall(revised.Len()), tg)

	revised, ok := c.retime(ctx, revised, tg)
	res.TimingStale = !ok

	revised, res.DroppedBlocks = sequence.PruneBlocks(revised, in.Lookup)
	if len(res.DroppedBlocks) > 0 {
		c.logger.InfoContext(ctx, "revision invalidated flow block references", "dropped", len(res.DroppedBlocks))
	}

	res.Plan = revised
	return res, nil
}
