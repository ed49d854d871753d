package ops

import (
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// Section names reported per step.
const (
	SectionWarmUp   = "warm-up"
	SectionMain     = "main"
	SectionCoolDown = "cool-down"
)

// StepView is one step of a sequence as returned to callers.
type StepView struct {
	Index      int       `json:"index"`
	Pose       pose.Pose `json:"pose"`
	Timing     string    `json:"timing"`
	Transition string    `json:"transition,omitempty"`
	Section    string    `json:"section"`

	// BlockRefID is set when the step belongs to a flow block span.
	BlockRefID string `json:"block_ref_id,omitempty"`
}

// BlockView is a flow-block reference with its resolved definition.
type BlockView struct {
	sequence.BlockRef
	Name   string `json:"name,omitempty"`
	Length int    `json:"length"`

	// Missing is set when the referenced block definition no longer exists.
	Missing bool `json:"missing,omitempty"`
}

// SequenceView is the full read model of a stored sequence.
type SequenceView struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Duration        int                    `json:"duration"`
	Difficulty      string                 `json:"difficulty"`
	FocusAreas      []string               `json:"focus_areas"`
	Steps           []StepView             `json:"steps"`
	Repetitions     sequence.RepetitionMap `json:"repetitions,omitempty"`
	Blocks          []BlockView            `json:"blocks"`
	PeakPoses       []pose.ID              `json:"peak_poses"`
	EnabledFeatures []string               `json:"enabled_features"`
	Range           sequence.Range         `json:"range"`
	Sections        sequence.Sections      `json:"sections"`
	Version         int64                  `json:"version"`
	CreatedAt       int64                  `json:"created_at"`
	UpdatedAt       int64                  `json:"updated_at"`
	DeletedAt       *int64                 `json:"deleted_at,omitempty"`

	// Dropped lists stored pose ids the catalog no longer knows.
	Dropped []pose.ID `json:"dropped,omitempty"`
}

func buildView(s *session, lookup sequence.BlockLookup) SequenceView {
	plan := s.plan
	n := plan.Len()
	sections := sequence.SectionsFor(n)

	blocks := make([]BlockView, 0, len(plan.Blocks))
	spanOwner := make([]string, n)
	for _, ref := range plan.Blocks {
		bv := BlockView{BlockRef: ref, Length: 1, Missing: true}
		if lookup != nil {
			if block, ok := lookup(ref.FlowBlockID); ok {
				bv.Name = block.Name
				bv.Length = block.Len()
				bv.Missing = false
			}
		}
		for i := ref.Position; i < ref.Position+bv.Length && i < n; i++ {
			if spanOwner[i] == "" {
				spanOwner[i] = ref.ID
			}
		}
		blocks = append(blocks, bv)
	}

	steps := make([]StepView, n)
	for i, st := range plan.Steps {
		section := SectionMain
		switch {
		case i < sections.WarmUpLen:
			section = SectionWarmUp
		case i >= sections.CoolDown:
			section = SectionCoolDown
		}
		steps[i] = StepView{
			Index:      i,
			Pose:       st.Pose,
			Timing:     st.Timing,
			Transition: st.Transition,
			Section:    section,
			BlockRefID: spanOwner[i],
		}
	}

	peak := s.peak
	if peak == nil {
		peak = []pose.ID{}
	}

	row := s.row
	return SequenceView{
		ID:              row.ID,
		Name:            row.Name,
		Duration:        row.Duration,
		Difficulty:      row.Difficulty,
		FocusAreas:      nonNil(s.focusAreas),
		Steps:           steps,
		Repetitions:     plan.Repetitions,
		Blocks:          blocks,
		PeakPoses:       peak,
		EnabledFeatures: nonNil(s.features),
		Range:           sequence.PoseRange(row.Duration),
		Sections:        sections,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		DeletedAt:       row.DeletedAt,
		Dropped:         s.dropped,
	}
}
