package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/vinyasa/internal/compose"
	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
	"github.com/hpungsan/vinyasa/internal/snapshot"
)

// ComposeOutput is returned by the oracle-backed operations.
type ComposeOutput struct {
	Sequence SequenceView `json:"sequence"`

	// Dropped lists oracle ids that did not resolve against the catalog.
	Dropped []pose.ID `json:"dropped,omitempty"`

	TopUp         compose.TopUp       `json:"top_up"`
	Trimmed       int                 `json:"trimmed,omitempty"`
	TimingStale   bool                `json:"timing_stale,omitempty"`
	NoOp          bool                `json:"no_op,omitempty"`
	DroppedBlocks []sequence.BlockRef `json:"dropped_blocks,omitempty"`
}

func composeOutput(view SequenceView, res *compose.Result) *ComposeOutput {
	return &ComposeOutput{
		Sequence:      view,
		Dropped:       res.Dropped,
		TopUp:         res.TopUp,
		Trimmed:       res.Trimmed,
		TimingStale:   res.TimingStale,
		NoOp:          res.NoOp,
		DroppedBlocks: res.DroppedBlocks,
	}
}

// GenerateInput contains parameters for the Generate operation.
type GenerateInput struct {
	Name            string    // optional, derived from duration and level when empty
	FocusPoses      []pose.ID // poses pinned as "must include"; stored as peak poses
	Duration        int       // minutes, required
	Difficulty      string    // Beginner | Intermediate | Expert
	FocusAreas      []string
	EnabledFeatures []string
}

// Generate builds a new sequence through the oracle and stores it.
func Generate(ctx context.Context, d *Deps, input GenerateInput) (*ComposeOutput, error) {
	catalog, err := db.LoadCatalog(ctx, d.DB)
	if err != nil {
		return nil, err
	}

	focus := make([]pose.Pose, 0, len(input.FocusPoses))
	for _, id := range input.FocusPoses {
		p, ok := catalog.Lookup(id)
		if !ok {
			return nil, errors.NewNotFound("pose", fmt.Sprint(id))
		}
		focus = append(focus, p)
	}
	focusAreas := cleanList(input.FocusAreas)

	res, err := d.composer(catalog).Generate(ctx, compose.GenerateInput{
		FocusPoses: focus,
		Duration:   input.Duration,
		Difficulty: pose.Difficulty(input.Difficulty),
		FocusAreas: focusAreas,
	})
	if err != nil {
		return nil, err
	}
	difficulty, _ := pose.ParseDifficulty(input.Difficulty)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = fmt.Sprintf("%d min %s flow", input.Duration, difficulty)
	}

	peak := pose.IDs(focus)
	features := cleanList(input.EnabledFeatures)
	rec, err := snapshot.Encode(res.Plan, peak, features)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	focusJSON, err := json.Marshal(focusAreas)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	row := &db.SequenceRow{
		ID:         id,
		Name:       name,
		Duration:   input.Duration,
		Difficulty: string(difficulty),
		FocusAreas: string(focusJSON),
		PoseCount:  res.Plan.Len(),
		Record:     rec,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	lookup, err := d.blockLookup(ctx, catalog)
	if err != nil {
		return nil, err
	}
	if err := db.InsertSequence(ctx, d.DB, row); err != nil {
		return nil, err
	}

	d.logger().InfoContext(ctx, "sequence generated",
		"id", id,
		"poses", res.Plan.Len(),
		"top_up", res.TopUp.FromOracle+res.TopUp.FromFallback,
	)

	s := &session{
		row:        row,
		plan:       res.Plan,
		peak:       peak,
		features:   features,
		focusAreas: focusAreas,
		difficulty: difficulty,
		catalog:    catalog,
		version:    row.Version,
	}
	return composeOutput(buildView(s, lookup), res), nil
}

// ReviseInput contains parameters for the Revise operation.
type ReviseInput struct {
	ID              string
	ExpectedVersion int64 // optional, 0 skips the check
	Suggestion      string
	CustomPrompt    string // overrides Suggestion
}

// Revise reorders a stored sequence through the oracle. The stored sequence
// is replaced only when the whole revision succeeded.
func Revise(ctx context.Context, d *Deps, input ReviseInput) (*ComposeOutput, error) {
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	res, err := d.composer(s.catalog).Revise(ctx, compose.ReviseInput{
		Plan:         s.plan,
		Suggestion:   input.Suggestion,
		CustomPrompt: input.CustomPrompt,
		Duration:     s.row.Duration,
		Difficulty:   s.difficulty,
		FocusAreas:   s.focusAreas,
		Lookup:       lookup,
	})
	if err != nil {
		return nil, err
	}

	if err := d.commit(ctx, s, res.Plan); err != nil {
		return nil, err
	}
	return composeOutput(buildView(s, lookup), res), nil
}

// DurationInput contains parameters for the ChangeDuration operation.
type DurationInput struct {
	ID              string
	ExpectedVersion int64
	Duration        int // minutes, required
}

// ChangeDuration fits a stored sequence to a new class length.
func ChangeDuration(ctx context.Context, d *Deps, input DurationInput) (*ComposeOutput, error) {
	if input.Duration <= 0 {
		return nil, errors.NewInvalidRequest("duration must be positive")
	}
	s, err := d.open(ctx, input.ID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	lookup, err := d.blockLookup(ctx, s.catalog)
	if err != nil {
		return nil, err
	}

	res, err := d.composer(s.catalog).AdjustDuration(ctx, compose.AdjustInput{
		Plan:       s.plan,
		Duration:   input.Duration,
		Difficulty: s.difficulty,
		FocusAreas: s.focusAreas,
		Lookup:     lookup,
	})
	if err != nil {
		return nil, err
	}

	s.row.Duration = input.Duration
	if err := d.commit(ctx, s, res.Plan); err != nil {
		return nil, err
	}
	return composeOutput(buildView(s, lookup), res), nil
}

// InsightsInput contains parameters for the Insights operation.
type InsightsInput struct {
	ID string
}

// InsightsOutput contains the result of the Insights operation.
type InsightsOutput struct {
	ID       string            `json:"id"`
	Version  int64             `json:"version"`
	Insights *compose.Insights `json:"insights"`
}

// Insights fetches improvement suggestions and per-pose alternatives for a
// stored sequence. Either half may be missing; the operation itself only
// fails when the sequence cannot be loaded.
func Insights(ctx context.Context, d *Deps, input InsightsInput) (*InsightsOutput, error) {
	s, err := d.open(ctx, input.ID, 0)
	if err != nil {
		return nil, err
	}
	ins := d.composer(s.catalog).Insights(ctx, compose.InsightsInput{
		Plan:       s.plan,
		Duration:   s.row.Duration,
		Difficulty: s.difficulty,
		FocusAreas: s.focusAreas,
	})
	return &InsightsOutput{ID: s.row.ID, Version: s.version, Insights: ins}, nil
}
