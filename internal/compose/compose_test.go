package compose

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// scriptedOracle answers each endpoint with a test-supplied function and
// records the requests it saw.
type scriptedOracle struct {
	mu sync.Mutex

	generate      func(oracle.GenerateRequest) (*oracle.SequenceResponse, error)
	complementary func(oracle.ComplementaryRequest) (*oracle.ComplementaryResponse, error)
	timing        func(oracle.TimingRequest) (*oracle.TimingResponse, error)
	revise        func(oracle.ReviseRequest) (*oracle.SequenceResponse, error)
	suggestions   func(oracle.InsightsRequest) (*oracle.SuggestionsResponse, error)
	alternatives  func(oracle.InsightsRequest) (*oracle.AlternativesResponse, error)

	calls             map[string]int
	complementaryReqs []oracle.ComplementaryRequest
	timingReqs        []oracle.TimingRequest
	reviseReqs        []oracle.ReviseRequest
}

var errDown = fmt.Errorf("connection refused")

func unavailable(endpoint string) error {
	return errors.NewOracleUnavailable(endpoint, errDown)
}

func (o *scriptedOracle) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[name]++
}

func (o *scriptedOracle) count(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[name]
}

func (o *scriptedOracle) Generate(_ context.Context, req oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
	o.record("generate")
	if o.generate == nil {
		return nil, unavailable(oracle.PathGenerate)
	}
	return o.generate(req)
}

func (o *scriptedOracle) Complementary(_ context.Context, req oracle.ComplementaryRequest) (*oracle.ComplementaryResponse, error) {
	o.record("complementary")
	o.mu.Lock()
	o.complementaryReqs = append(o.complementaryReqs, req)
	o.mu.Unlock()
	if o.complementary == nil {
		return nil, unavailable(oracle.PathComplementary)
	}
	return o.complementary(req)
}

func (o *scriptedOracle) Timing(_ context.Context, req oracle.TimingRequest) (*oracle.TimingResponse, error) {
	o.record("timing")
	o.mu.Lock()
	o.timingReqs = append(o.timingReqs, req)
	o.mu.Unlock()
	if o.timing == nil {
		return nil, unavailable(oracle.PathTiming)
	}
	return o.timing(req)
}

func (o *scriptedOracle) Revise(_ context.Context, req oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
	o.record("revise")
	o.mu.Lock()
	o.reviseReqs = append(o.reviseReqs, req)
	o.mu.Unlock()
	if o.revise == nil {
		return nil, unavailable(oracle.PathRevise)
	}
	return o.revise(req)
}

func (o *scriptedOracle) Suggestions(_ context.Context, req oracle.InsightsRequest) (*oracle.SuggestionsResponse, error) {
	o.record("suggestions")
	if o.suggestions == nil {
		return nil, unavailable(oracle.PathSuggestions)
	}
	return o.suggestions(req)
}

func (o *scriptedOracle) Alternatives(_ context.Context, req oracle.InsightsRequest) (*oracle.AlternativesResponse, error) {
	o.record("alternatives")
	if o.alternatives == nil {
		return nil, unavailable(oracle.PathAlternatives)
	}
	return o.alternatives(req)
}

// numberedTiming answers /timing with "t<id>" per pose and "<a>-><b>" transitions.
func numberedTiming(req oracle.TimingRequest) (*oracle.TimingResponse, error) {
	resp := &oracle.TimingResponse{}
	for i, id := range req.Sequence {
		resp.Timing = append(resp.Timing, fmt.Sprintf("t%d", id))
		if i > 0 {
			resp.Transitions = append(resp.Transitions, fmt.Sprintf("%d->%d", req.Sequence[i-1], id))
		}
	}
	return resp, nil
}

// testPool has Beginner poses 1..20 (11 and 15 are Core) and Intermediate 21..25.
func testPool() []pose.Pose {
	var out []pose.Pose
	for i := 1; i <= 25; i++ {
		p := pose.Pose{ID: pose.ID(i), Name: fmt.Sprintf("Pose %d", i), Difficulty: pose.Beginner, Category: "Standing"}
		if i > 20 {
			p.Difficulty = pose.Intermediate
		}
		if i == 11 || i == 15 {
			p.Category = "Core"
		}
		out = append(out, p)
	}
	return out
}

func newComposer(o oracle.Client) *Composer {
	return New(o, pose.NewCatalog(testPool()), Options{DefaultHold: "hold"})
}

func ids(n ...int) []pose.ID {
	out := make([]pose.ID, len(n))
	for i, v := range n {
		out[i] = pose.ID(v)
	}
	return out
}

func span(from, to int) []pose.ID {
	var out []pose.ID
	for i := from; i <= to; i++ {
		out = append(out, pose.ID(i))
	}
	return out
}

func planOf(t *testing.T, c *Composer, idList []pose.ID, timing []string) sequence.Plan {
	t.Helper()
	poses, kept := c.catalog.Resolve(idList)
	require.Len(t, kept, len(idList))
	var transitions []string
	for i := 1; i < len(poses); i++ {
		transitions = append(transitions, fmt.Sprintf("old%d", i))
	}
	return sequence.New(poses, timing, transitions, "hold")
}

func beginner30(focus ...string) GenerateInput {
	return GenerateInput{Duration: 30, Difficulty: pose.Beginner, FocusAreas: focus}
}

func TestGenerate_KeepsOracleTimingWhenLongEnough(t *testing.T) {
	o := &scriptedOracle{
		generate: func(req oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{
				Sequence:    oracle.IDList(span(1, 5)),
				Timing:      []string{"a", "b", "c", "d", "e"},
				Transitions: []string{"1", "2", "3", "4"},
				Repetitions: sequence.RepetitionMap{"3": {Count: 2, Note: "each side"}},
			}, nil
		},
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), GenerateInput{Duration: 15, Difficulty: pose.Beginner})
	require.NoError(t, err)

	assert.Equal(t, span(1, 5), res.Plan.PoseIDs())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, res.Plan.Timing())
	assert.Equal(t, []string{"1", "2", "3", "4"}, res.Plan.Transitions())
	assert.Equal(t, 2, res.Plan.Repetitions["3"].Count)
	assert.Equal(t, sequence.Range{Minimum: 5, Maximum: 7, Target: 15}, res.Range)
	assert.Zero(t, o.count("complementary"))
	assert.Zero(t, o.count("timing"))
	assert.False(t, res.TimingStale)
}

func TestGenerate_SendsRequestShape(t *testing.T) {
	var got oracle.GenerateRequest
	o := &scriptedOracle{
		generate: func(req oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			got = req
			return &oracle.SequenceResponse{Sequence: oracle.IDList(span(1, 10))}, nil
		},
	}
	c := newComposer(o)
	focus := []pose.Pose{testPool()[10]}

	_, err := c.Generate(context.Background(), GenerateInput{
		FocusPoses: focus,
		Duration:   30,
		Difficulty: pose.Beginner,
		FocusAreas: []string{"Core"},
	})
	require.NoError(t, err)

	assert.Equal(t, 30, got.Duration)
	assert.Equal(t, "Beginner", got.DifficultyLevel)
	assert.Equal(t, []string{"Core"}, got.FocusAreas)
	require.Len(t, got.FocusPoses, 1)
	assert.Equal(t, "Pose 11", got.FocusPoses[0].Name)
	assert.Len(t, got.AvailablePoses, 25)
}

func TestGenerate_TopUpRequestsExactShortfall(t *testing.T) {
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{
				Sequence: oracle.IDList(append(span(1, 6), 99, 100)),
				Timing:   []string{"stale", "stale", "stale", "stale", "stale", "stale", "stale", "stale"},
			}, nil
		},
		complementary: func(oracle.ComplementaryRequest) (*oracle.ComplementaryResponse, error) {
			return &oracle.ComplementaryResponse{Poses: oracle.IDList(span(7, 10))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), beginner30())
	require.NoError(t, err)

	require.Len(t, o.complementaryReqs, 1)
	req := o.complementaryReqs[0]
	assert.Equal(t, 4, req.PosesNeeded)
	assert.Equal(t, span(1, 6), req.CurrentSequence)
	assert.Equal(t, 30, req.TargetDurationMinutes)
	assert.Equal(t, "Beginner", req.Level)

	assert.Equal(t, span(1, 10), res.Plan.PoseIDs())
	assert.Equal(t, TopUp{Needed: 4, FromOracle: 4}, res.TopUp)
	assert.Equal(t, ids(99, 100), res.Dropped)

	// Timing was fetched fresh for the complete list.
	require.Len(t, o.timingReqs, 1)
	assert.Equal(t, span(1, 10), o.timingReqs[0].Sequence)
	assert.Equal(t, "t1", res.Plan.Timing()[0])
	assert.Equal(t, "t10", res.Plan.Timing()[9])
	assert.Equal(t, "9->10", res.Plan.Transitions()[8])
	assert.Len(t, res.Plan.Timing(), res.Plan.Len())
}

func TestGenerate_FallbackWhenComplementaryFails(t *testing.T) {
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(span(1, 6))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), beginner30("core"))
	require.NoError(t, err)

	assert.Equal(t, append(span(1, 6), 11, 15, 7, 8), res.Plan.PoseIDs())
	assert.Equal(t, TopUp{Needed: 4, FromFallback: 4}, res.TopUp)

	// Same inputs, same output.
	again, err := c.Generate(context.Background(), beginner30("core"))
	require.NoError(t, err)
	assert.Equal(t, res.Plan.PoseIDs(), again.Plan.PoseIDs())
}

func TestGenerate_ComplementaryFilteredThenFallback(t *testing.T) {
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(span(1, 6))}, nil
		},
		complementary: func(oracle.ComplementaryRequest) (*oracle.ComplementaryResponse, error) {
			// already present, new, duplicate, unknown
			return &oracle.ComplementaryResponse{Poses: oracle.IDList(ids(3, 12, 12, 99))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), beginner30())
	require.NoError(t, err)

	assert.Equal(t, append(span(1, 6), 12, 7, 8, 9), res.Plan.PoseIDs())
	assert.Equal(t, TopUp{Needed: 4, FromOracle: 1, FromFallback: 3}, res.TopUp)
}

func TestGenerate_ShortfallWhenPoolExhausted(t *testing.T) {
	pool := testPool()[:7]
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(span(1, 6))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)

	in := beginner30()
	in.Pool = pool
	res, err := c.Generate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, span(1, 7), res.Plan.PoseIDs())
	assert.Equal(t, TopUp{Needed: 4, FromFallback: 1, Shortfall: 3}, res.TopUp)
}

func TestGenerate_TimingFailureAfterTopUp(t *testing.T) {
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{
				Sequence:    oracle.IDList(span(1, 6)),
				Timing:      []string{"a", "b", "c", "d", "e", "f"},
				Transitions: []string{"x", "x", "x", "x", "x"},
			}, nil
		},
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), beginner30())
	require.NoError(t, err)

	assert.True(t, res.TimingStale)
	assert.Equal(t, 10, res.Plan.Len())
	for _, timing := range res.Plan.Timing() {
		assert.Equal(t, "hold", timing)
	}
	for _, tr := range res.Plan.Transitions() {
		assert.Empty(t, tr)
	}
	require.NoError(t, res.Plan.Check())
}

func TestGenerate_DroppedIDsRealignTiming(t *testing.T) {
	o := &scriptedOracle{
		generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{
				Sequence:    oracle.IDList(ids(1, 99, 2, 3, 4, 5)),
				Timing:      []string{"a", "b", "c", "d", "e", "f"},
				Transitions: []string{"t0", "t1", "t2", "t3", "t4"},
			}, nil
		},
	}
	c := newComposer(o)

	res, err := c.Generate(context.Background(), GenerateInput{Duration: 15, Difficulty: pose.Beginner})
	require.NoError(t, err)

	assert.Equal(t, span(1, 5), res.Plan.PoseIDs())
	assert.Equal(t, []string{"a", "c", "d", "e", "f"}, res.Plan.Timing())
	assert.Equal(t, []string{"", "t2", "t3", "t4"}, res.Plan.Transitions())
	assert.Equal(t, ids(99), res.Dropped)
}

func TestGenerate_Failures(t *testing.T) {
	t.Run("oracle unavailable is fatal", func(t *testing.T) {
		o := &scriptedOracle{}
		_, err := newComposer(o).Generate(context.Background(), beginner30())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrOracleUnavailable))
		assert.Zero(t, o.count("complementary"))
		assert.Zero(t, o.count("timing"))
	})

	t.Run("nothing resolves", func(t *testing.T) {
		o := &scriptedOracle{
			generate: func(oracle.GenerateRequest) (*oracle.SequenceResponse, error) {
				return &oracle.SequenceResponse{Sequence: oracle.IDList(ids(99, 98))}, nil
			},
		}
		_, err := newComposer(o).Generate(context.Background(), beginner30())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrEmptyResolution))
	})

	t.Run("bad input", func(t *testing.T) {
		o := &scriptedOracle{}
		c := newComposer(o)
		_, err := c.Generate(context.Background(), GenerateInput{Duration: 0, Difficulty: pose.Beginner})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		_, err = c.Generate(context.Background(), GenerateInput{Duration: 30, Difficulty: "Advanced"})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		assert.Zero(t, o.count("generate"))
	})
}

func TestRevise_AppliesNewOrderAndTiming(t *testing.T) {
	o := &scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(ids(5, 4, 3, 2, 1))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), []string{"a", "b", "c", "d", "e"})

	res, err := c.Revise(context.Background(), ReviseInput{
		Plan:         plan,
		Suggestion:   "More balance",
		CustomPrompt: "Open the hips",
		Duration:     15,
		Difficulty:   pose.Beginner,
	})
	require.NoError(t, err)

	assert.Equal(t, ids(5, 4, 3, 2, 1), res.Plan.PoseIDs())
	assert.Equal(t, []string{"t5", "t4", "t3", "t2", "t1"}, res.Plan.Timing())
	assert.False(t, res.NoOp)
	assert.False(t, res.TimingStale)

	require.Len(t, o.reviseReqs, 1)
	req := o.reviseReqs[0]
	assert.Equal(t, "Open the hips", req.CustomPrompt)
	assert.Empty(t, req.Suggestion)
	assert.Len(t, req.Sequence, 5)
	assert.Equal(t, pose.ID(1), req.Sequence[0].ID)
	assert.Equal(t, &oracle.ReviseConstraints{MustDiffer: true, MinLength: 2, MaxLength: 8}, req.Constraints)

	// input untouched
	assert.Equal(t, span(1, 5), plan.PoseIDs())
}

func TestRevise_FlagsNoOp(t *testing.T) {
	o := &scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(append(span(1, 5), 99))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), nil)

	res, err := c.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "Harder", Duration: 15, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, span(1, 5), res.Plan.PoseIDs())
}

func TestRevise_TimingFailureKeepsPrevious(t *testing.T) {
	o := &scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(ids(5, 4, 3, 2, 1))}, nil
		},
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), []string{"a", "b", "c", "d", "e"})
	plan = plan.WithRepetitions(sequence.RepetitionMap{"2": {Count: 2}})

	res, err := c.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "Calmer", Duration: 15, Difficulty: pose.Beginner})
	require.NoError(t, err)

	assert.True(t, res.TimingStale)
	assert.Equal(t, ids(5, 4, 3, 2, 1), res.Plan.PoseIDs())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, res.Plan.Timing())
	assert.Equal(t, plan.Transitions(), res.Plan.Transitions())
	assert.Equal(t, 2, res.Plan.Repetitions["2"].Count)
}

func TestRevise_TopsUpBelowMinimum(t *testing.T) {
	o := &scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(span(1, 8))}, nil
		},
		complementary: func(oracle.ComplementaryRequest) (*oracle.ComplementaryResponse, error) {
			return &oracle.ComplementaryResponse{Poses: oracle.IDList(ids(14, 13))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 10), nil)

	res, err := c.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "Shorter", Duration: 30, Difficulty: pose.Beginner})
	require.NoError(t, err)

	require.Len(t, o.complementaryReqs, 1)
	assert.Equal(t, 2, o.complementaryReqs[0].PosesNeeded)
	assert.Equal(t, append(span(1, 8), 14, 13), res.Plan.PoseIDs())
}

func TestRevise_PrunesStaleBlockRefs(t *testing.T) {
	o := &scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList(ids(5, 4, 3, 2, 1))}, nil
		},
		timing: numberedTiming,
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), nil)
	plan.Blocks = []sequence.BlockRef{{ID: "r", FlowBlockID: "b", Position: 1, Repetitions: 1}}

	blockPoses, _ := c.catalog.Resolve(ids(2, 3))
	lookup := func(id string) (sequence.FlowBlock, bool) {
		return sequence.FlowBlock{ID: "b", Poses: blockPoses}, id == "b"
	}

	res, err := c.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "Reverse", Duration: 15, Difficulty: pose.Beginner, Lookup: lookup})
	require.NoError(t, err)
	assert.Empty(t, res.Plan.Blocks)
	require.Len(t, res.DroppedBlocks, 1)
	assert.Equal(t, "r", res.DroppedBlocks[0].ID)
}

func TestRevise_Failures(t *testing.T) {
	c := newComposer(&scriptedOracle{})
	plan := planOf(t, c, span(1, 5), nil)

	_, err := c.Revise(context.Background(), ReviseInput{Plan: plan, Duration: 15, Difficulty: pose.Beginner})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = c.Revise(context.Background(), ReviseInput{Suggestion: "x", Duration: 15, Difficulty: pose.Beginner})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = c.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "x", Duration: 15, Difficulty: pose.Beginner})
	assert.True(t, errors.Is(err, errors.ErrOracleUnavailable))

	empty := newComposer(&scriptedOracle{
		revise: func(oracle.ReviseRequest) (*oracle.SequenceResponse, error) {
			return &oracle.SequenceResponse{Sequence: oracle.IDList{}}, nil
		},
	})
	_, err = empty.Revise(context.Background(), ReviseInput{Plan: plan, Suggestion: "x", Duration: 15, Difficulty: pose.Beginner})
	assert.True(t, errors.Is(err, errors.ErrEmptyResolution))
}

func TestAdjustDuration_TopsUp(t *testing.T) {
	o := &scriptedOracle{timing: numberedTiming}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), nil)

	res, err := c.AdjustDuration(context.Background(), AdjustInput{Plan: plan, Duration: 30, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.Equal(t, span(1, 10), res.Plan.PoseIDs())
	assert.Equal(t, TopUp{Needed: 5, FromFallback: 5}, res.TopUp)
	assert.Equal(t, "t10", res.Plan.Timing()[9])
}

func TestAdjustDuration_Trims(t *testing.T) {
	o := &scriptedOracle{timing: numberedTiming}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 20), nil)

	res, err := c.AdjustDuration(context.Background(), AdjustInput{Plan: plan, Duration: 30, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.Equal(t, span(1, 15), res.Plan.PoseIDs())
	assert.Equal(t, 5, res.Trimmed)
	require.Len(t, o.timingReqs, 1)
	assert.Len(t, o.timingReqs[0].Sequence, 15)
}

func TestAdjustDuration_TrimSkipsBlocks(t *testing.T) {
	o := &scriptedOracle{timing: numberedTiming}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 20), nil)
	plan.Blocks = []sequence.BlockRef{{ID: "r", FlowBlockID: "b", Position: 17, Repetitions: 1}}
	blockPoses, _ := c.catalog.Resolve(ids(18, 19, 20))
	lookup := func(id string) (sequence.FlowBlock, bool) {
		return sequence.FlowBlock{ID: "b", Poses: blockPoses}, id == "b"
	}

	res, err := c.AdjustDuration(context.Background(), AdjustInput{Plan: plan, Duration: 30, Difficulty: pose.Beginner, Lookup: lookup})
	require.NoError(t, err)
	assert.Equal(t, append(span(1, 12), 18, 19, 20), res.Plan.PoseIDs())
	require.Len(t, res.Plan.Blocks, 1)
	assert.Equal(t, 12, res.Plan.Blocks[0].Position)
}

func TestAdjustDuration_ShortClassNeverBelowMinimum(t *testing.T) {
	o := &scriptedOracle{timing: numberedTiming}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 7), nil)

	// duration 10: minimum 5, maximum 5
	res, err := c.AdjustDuration(context.Background(), AdjustInput{Plan: plan, Duration: 10, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Plan.Len())

	// duration 4: minimum 5, maximum 2; a 5-step plan is left alone
	res, err = c.AdjustDuration(context.Background(), AdjustInput{Plan: res.Plan, Duration: 4, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Plan.Len())
	assert.Zero(t, res.Trimmed)
}

func TestAdjustDuration_TimingFailureKeepsPrevious(t *testing.T) {
	c := newComposer(&scriptedOracle{})
	plan := planOf(t, c, span(1, 5), []string{"a", "b", "c", "d", "e"})

	res, err := c.AdjustDuration(context.Background(), AdjustInput{Plan: plan, Duration: 21, Difficulty: pose.Beginner})
	require.NoError(t, err)
	assert.True(t, res.TimingStale)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "hold", "hold"}, res.Plan.Timing())
	require.NoError(t, res.Plan.Check())
}

func TestInsights_BothSucceed(t *testing.T) {
	o := &scriptedOracle{
		suggestions: func(oracle.InsightsRequest) (*oracle.SuggestionsResponse, error) {
			return &oracle.SuggestionsResponse{Suggestions: []oracle.Suggestion{{Title: "Twist", Description: "Add one"}}}, nil
		},
		alternatives: func(oracle.InsightsRequest) (*oracle.AlternativesResponse, error) {
			return &oracle.AlternativesResponse{Alternatives: map[string]oracle.IDList{
				"1":  {7, 99},
				"12": {8},
				"x":  {9},
			}}, nil
		},
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), nil)

	got := c.Insights(context.Background(), InsightsInput{Plan: plan, Duration: 15, Difficulty: pose.Beginner})
	require.Len(t, got.Suggestions, 1)
	require.Len(t, got.Alternatives, 1)
	require.Len(t, got.Alternatives["1"], 1)
	assert.Equal(t, pose.ID(7), got.Alternatives["1"][0].ID)
	assert.Empty(t, got.SuggestionsError)
	assert.Empty(t, got.AlternativesError)
}

func TestInsights_BestEffort(t *testing.T) {
	o := &scriptedOracle{
		alternatives: func(oracle.InsightsRequest) (*oracle.AlternativesResponse, error) {
			return &oracle.AlternativesResponse{Alternatives: map[string]oracle.IDList{"2": {9}}}, nil
		},
	}
	c := newComposer(o)
	plan := planOf(t, c, span(1, 5), nil)

	got := c.Insights(context.Background(), InsightsInput{Plan: plan, Duration: 15, Difficulty: pose.Beginner})
	assert.Empty(t, got.Suggestions)
	assert.NotEmpty(t, got.SuggestionsError)
	assert.Len(t, got.Alternatives["2"], 1)

	none := newComposer(&scriptedOracle{}).Insights(context.Background(), InsightsInput{Plan: plan})
	assert.NotEmpty(t, none.SuggestionsError)
	assert.NotEmpty(t, none.AlternativesError)
	assert.NotNil(t, none.Alternatives)
}

func TestInsights_RunsInParallel(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	both := make(chan struct{})
	go func() {
		started.Wait()
		close(both)
	}()
	wait := func() error {
		started.Done()
		select {
		case <-both:
			return nil
		case <-time.After(2 * time.Second):
			return fmt.Errorf("other fetch never started")
		}
	}

	o := &scriptedOracle{
		suggestions: func(oracle.InsightsRequest) (*oracle.SuggestionsResponse, error) {
			if err := wait(); err != nil {
				return nil, err
			}
			return &oracle.SuggestionsResponse{}, nil
		},
		alternatives: func(oracle.InsightsRequest) (*oracle.AlternativesResponse, error) {
			if err := wait(); err != nil {
				return nil, err
			}
			return &oracle.AlternativesResponse{}, nil
		},
	}
	got := newComposer(o).Insights(context.Background(), InsightsInput{})
	assert.Empty(t, got.SuggestionsError)
	assert.Empty(t, got.AlternativesError)
}
