package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// Record is the serialized aggregate as the store keeps it. Every field holds
// a JSON document.
type Record struct {
	Poses           string
	PeakPoses       string
	Timing          string
	Transitions     string
	Repetitions     string
	EnabledFeatures string
	BlockRefs       string
}

// Encode serializes plan together with the sequence's peak poses and enabled
// features. Output is always the canonical JSON shape.
func Encode(plan sequence.Plan, peak []pose.ID, features []string) (Record, error) {
	if err := plan.Check(); err != nil {
		return Record{}, fmt.Errorf("encode sequence: %w", err)
	}
	if peak == nil {
		peak = []pose.ID{}
	}
	if features == nil {
		features = []string{}
	}
	reps := plan.Repetitions
	if reps == nil {
		reps = sequence.RepetitionMap{}
	}
	blocks := plan.Blocks
	if blocks == nil {
		blocks = []sequence.BlockRef{}
	}

	var rec Record
	fields := []struct {
		dst *string
		v   any
	}{
		{&rec.Poses, plan.PoseIDs()},
		{&rec.PeakPoses, peak},
		{&rec.Timing, plan.Timing()},
		{&rec.Transitions, plan.Transitions()},
		{&rec.Repetitions, reps},
		{&rec.EnabledFeatures, features},
		{&rec.BlockRefs, blocks},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return Record{}, fmt.Errorf("encode sequence: %w", err)
		}
		*f.dst = string(b)
	}
	return rec, nil
}

// Decoded is a Record turned back into engine values.
type Decoded struct {
	Plan            sequence.Plan
	PeakPoses       []pose.ID
	EnabledFeatures []string

	// Dropped lists stored pose ids the catalog no longer knows. Their steps
	// are removed along with the aligned timing entry.
	Dropped []pose.ID

	// Shapes records which legacy shape each list field was found in.
	Shapes map[string]Shape
}

// Decode parses rec against catalog. Missing timing entries are filled with
// defaultHold, and block references pointing outside the decoded sequence
// are dropped.
func Decode(rec Record, catalog *pose.Catalog, defaultHold string) (*Decoded, error) {
	shapes := make(map[string]Shape, 5)

	ids, shape, err := DecodeIDs("poses", rec.Poses)
	if err != nil {
		return nil, err
	}
	shapes["poses"] = shape

	peak, shape, err := DecodeIDs("peak_poses", rec.PeakPoses)
	if err != nil {
		return nil, err
	}
	shapes["peak_poses"] = shape

	timing, shape, err := DecodeStrings("timing", rec.Timing)
	if err != nil {
		return nil, err
	}
	shapes["timing"] = shape

	transitions, shape, err := DecodeStrings("transitions", rec.Transitions)
	if err != nil {
		return nil, err
	}
	shapes["transitions"] = shape

	features, shape, err := DecodeStrings("enabled_features", rec.EnabledFeatures)
	if err != nil {
		return nil, err
	}
	shapes["enabled_features"] = shape

	reps, err := DecodeRepetitions(rec.Repetitions)
	if err != nil {
		return nil, err
	}
	refs, err := DecodeBlockRefs(rec.BlockRefs)
	if err != nil {
		return nil, err
	}

	poses, kept := catalog.Resolve(ids)
	var dropped []pose.ID
	if len(kept) != len(ids) {
		keep := make(map[int]bool, len(kept))
		for _, i := range kept {
			keep[i] = true
		}
		for i, id := range ids {
			if !keep[i] {
				dropped = append(dropped, id)
			}
		}
		timing = alignTo(timing, kept)
		// Transitions between surviving neighbours are no longer meaningful
		// once a step between them has gone.
		transitions = nil
		refs = nil
	}

	plan := sequence.New(poses, timing, transitions, defaultHold).WithRepetitions(reps)
	plan.Blocks = refs
	plan, _ = sequence.PruneBlocks(plan, nil)

	return &Decoded{
		Plan:            plan,
		PeakPoses:       peak,
		EnabledFeatures: features,
		Dropped:         dropped,
		Shapes:          shapes,
	}, nil
}

// alignTo keeps the entries of list at the given source indexes.
func alignTo(list []string, kept []int) []string {
	out := make([]string, 0, len(kept))
	for _, i := range kept {
		if i < len(list) {
			out = append(out, list[i])
		} else {
			out = append(out, "")
		}
	}
	return out
}
