// Package compose orchestrates the oracle and the sequence engine: initial
// generation, revision, duration changes, and post-generation insights.
//
// The oracle is non-deterministic. Its output is resolved against the
// candidate pool, topped up to the duration's minimum (oracle first, the
// deterministic fallback selector second) and given fresh timing whenever the
// pose list changed.
package compose

import (
	"context"
	"log/slog"

	"github.com/hpungsan/vinyasa/internal/logging"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// Options configures a Composer.
type Options struct {
	DefaultHold       string
	DefaultTransition string
	Logger            *slog.Logger
}

// Composer drives the oracle-backed operations.
type Composer struct {
	oracle            oracle.Client
	catalog           *pose.Catalog
	defaultHold       string
	defaultTransition string
	logger            *slog.Logger
}

// New returns a Composer drawing candidates from catalog.
func New(client oracle.Client, catalog *pose.Catalog, opts Options) *Composer {
	hold := opts.DefaultHold
	if hold == "" {
		hold = "5 breaths"
	}
	transition := opts.DefaultTransition
	if transition == "" {
		transition = "Flow smoothly"
	}
	return &Composer{
		oracle:            client,
		catalog:           catalog,
		defaultHold:       hold,
		defaultTransition: transition,
		logger:            logging.OrDiscard(opts.Logger),
	}
}

// DefaultHold returns the timing given to steps with none.
func (c *Composer) DefaultHold() string { return c.defaultHold }

// DefaultTransition returns the transition used inside spliced blocks.
func (c *Composer) DefaultTransition() string { return c.defaultTransition }

// Result is the outcome of Generate, Revise or AdjustDuration.
type Result struct {
	Plan  sequence.Plan  `json:"plan"`
	Range sequence.Range `json:"range"`

	// Dropped lists oracle ids that did not resolve against the pool.
	Dropped []pose.ID `json:"dropped,omitempty"`

	// TopUp reports how the sequence was brought up to the minimum.
	TopUp TopUp `json:"top_up"`

	// Trimmed is the number of trailing steps removed by AdjustDuration.
	Trimmed int `json:"trimmed,omitempty"`

	// TimingStale is set when fresh timing could not be fetched and the
	// previous (or default) timing was kept.
	TimingStale bool `json:"timing_stale,omitempty"`

	// NoOp is set when a revision returned the sequence unchanged.
	NoOp bool `json:"no_op,omitempty"`

	// DroppedBlocks lists block references removed because their span no
	// longer matched the block.
	DroppedBlocks []sequence.BlockRef `json:"dropped_blocks,omitempty"`
}

// TopUp describes poses appended to reach the minimum length.
type TopUp struct {
	Needed       int `json:"needed"`
	FromOracle   int `json:"from_oracle"`
	FromFallback int `json:"from_fallback"`

	// Shortfall is how far below the minimum the sequence still is.
	Shortfall int `json:"shortfall"`
}

// target carries the request parameters shared by top-up and timing calls.
type target struct {
	duration   int
	difficulty pose.Difficulty
	focusAreas []string
	pool       []pose.Pose
}

func (c *Composer) poolOr(pool []pose.Pose) []pose.Pose {
	if pool != nil {
		return pool
	}
	return c.catalog.All()
}

// topUp appends up to need poses, asking the oracle for complementary poses
// first and falling back to the deterministic selector for the remainder.
// It never fails: a top-up that comes up short leaves the plan shorter.
func (c *Composer) topUp(ctx context.Context, plan sequence.Plan, need int, tg target) (sequence.Plan, TopUp) {
	res := TopUp{Needed: need}
	if need <= 0 {
		return plan, res
	}

	poolCat := pose.NewCatalog(tg.pool)
	present := make(map[pose.ID]bool, plan.Len()+need)
	for _, id := range plan.PoseIDs() {
		present[id] = true
	}

	var added []pose.Pose
	resp, err := c.oracle.Complementary(ctx, oracle.ComplementaryRequest{
		CurrentSequence:       plan.PoseIDs(),
		FocusAreas:            nonNil(tg.focusAreas),
		Level:                 string(tg.difficulty),
		PosesNeeded:           need,
		TargetDurationMinutes: tg.duration,
		AvailablePoses:        oracle.Candidates(tg.pool),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "complementary poses unavailable, using fallback", "needed", need, "error", err)
	} else {
		for _, id := range resp.Poses {
			if len(added) == need {
				break
			}
			p, ok := poolCat.Lookup(id)
			if !ok || present[id] {
				continue
			}
			present[id] = true
			added = append(added, p)
		}
		res.FromOracle = len(added)
	}

	if remaining := need - len(added); remaining > 0 {
		current := append(plan.Poses(), added...)
		fallback := sequence.SelectFallback(current, tg.pool, tg.focusAreas, tg.difficulty, remaining)
		added = append(added, fallback...)
		res.FromFallback = len(fallback)
	}

	res.Shortfall = need - len(added)
	if res.Shortfall > 0 {
		c.logger.WarnContext(ctx, "fallback could not reach minimum length",
			"needed", need,
			"added", len(added),
			"shortfall", res.Shortfall,
		)
	}
	return plan.Append(added, c.defaultHold), res
}

// retime asks the oracle for timing, transitions and repetitions for the
// plan's current pose order. On failure it returns the plan unchanged and
// false.
func (c *Composer) retime(ctx context.Context, plan sequence.Plan, tg target) (sequence.Plan, bool) {
	if plan.Len() == 0 {
		return plan, true
	}
	resp, err := c.oracle.Timing(ctx, oracle.TimingRequest{
		Sequence:              plan.PoseIDs(),
		Duration:              tg.duration,
		Level:                 string(tg.difficulty),
		TargetDurationMinutes: tg.duration,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "timing regeneration failed", "poses", plan.Len(), "error", err)
		return plan, false
	}
	if len(resp.Timing) != plan.Len() {
		c.logger.DebugContext(ctx, "oracle timing length mismatch, normalizing",
			"timing", len(resp.Timing),
			"poses", plan.Len(),
		)
	}
	out := plan.WithTiming(resp.Timing, resp.Transitions, c.defaultHold).WithRepetitions(resp.Repetitions)
	return out, true
}

// resolve maps oracle ids onto the pool, dropping unknown ones. kept[i] is
// the index into ids that produced poses[i].
func resolve(pool []pose.Pose, ids []pose.ID) (poses []pose.Pose, kept []int, dropped []pose.ID) {
	poses, kept = pose.NewCatalog(pool).Resolve(ids)
	if len(kept) == len(ids) {
		return poses, kept, nil
	}
	j := 0
	for i, id := range ids {
		if j < len(kept) && kept[j] == i {
			j++
			continue
		}
		dropped = append(dropped, id)
	}
	return poses, kept, dropped
}

// alignTiming keeps timing entries for the resolved steps.
func alignTiming(timing []string, kept []int) []string {
	out := make([]string, len(kept))
	for j, i := range kept {
		if i < len(timing) {
			out[j] = timing[i]
		}
	}
	return out
}

// alignTransitions keeps a transition only when both of its ends survived
// resolution as neighbours.
func alignTransitions(transitions []string, kept []int) []string {
	if len(kept) < 2 {
		return nil
	}
	out := make([]string, len(kept)-1)
	for j := 0; j < len(kept)-1; j++ {
		i := kept[j]
		if kept[j+1] == i+1 && i < len(transitions) {
			out[j] = transitions[i]
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
