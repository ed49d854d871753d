package oracle

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// FocusPose describes a pose the user pinned. The oracle gets it by name, not id.
type FocusPose struct {
	Name         string `json:"name"`
	SanskritName string `json:"sanskrit_name"`
	Difficulty   string `json:"difficulty"`
	Category     string `json:"category"`
	Description  string `json:"description"`
}

// CandidatePose is a pose the oracle may pick from.
type CandidatePose struct {
	ID           pose.ID `json:"id"`
	Name         string  `json:"name"`
	SanskritName string  `json:"sanskrit_name"`
	Difficulty   string  `json:"difficulty"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
}

// FocusPoses converts poses to the pinned-pose wire shape.
func FocusPoses(poses []pose.Pose) []FocusPose {
	out := make([]FocusPose, len(poses))
	for i, p := range poses {
		out[i] = FocusPose{
			Name:         p.Name,
			SanskritName: p.SanskritName,
			Difficulty:   string(p.Difficulty),
			Category:     p.Category,
			Description:  p.Description,
		}
	}
	return out
}

// Candidates converts poses to the candidate wire shape.
func Candidates(poses []pose.Pose) []CandidatePose {
	out := make([]CandidatePose, len(poses))
	for i, p := range poses {
		out[i] = CandidatePose{
			ID:           p.ID,
			Name:         p.Name,
			SanskritName: p.SanskritName,
			Difficulty:   string(p.Difficulty),
			Category:     p.Category,
			Description:  p.Description,
		}
	}
	return out
}

// IDList decodes a list of pose ids the oracle returned. Items may be numbers
// or numeric strings; anything else decodes to id 0, which no catalog holds,
// so it is dropped at resolution like any other unknown id.
type IDList []pose.ID

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IDList, len(raw))
	for i, item := range raw {
		out[i] = parseID(item)
	}
	*l = out
	return nil
}

func parseID(item json.RawMessage) pose.ID {
	s := strings.TrimSpace(string(item))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pose.ID(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return pose.ID(f)
	}
	return 0
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	FocusPoses      []FocusPose     `json:"focus_poses"`
	Duration        int             `json:"duration"`
	DifficultyLevel string          `json:"difficulty_level"`
	FocusAreas      []string        `json:"focus_areas"`
	AvailablePoses  []CandidatePose `json:"available_poses"`
}

// SequenceResponse is returned by /generate and /revise.
type SequenceResponse struct {
	Sequence    IDList                 `json:"sequence"`
	Timing      []string               `json:"timing"`
	Transitions []string               `json:"transitions"`
	Repetitions sequence.RepetitionMap `json:"repetitions"`
}

// ComplementaryRequest is the body of POST /complementary-poses.
type ComplementaryRequest struct {
	CurrentSequence       []pose.ID       `json:"current_sequence"`
	FocusAreas            []string        `json:"focus_areas"`
	Level                 string          `json:"level"`
	PosesNeeded           int             `json:"poses_needed"`
	TargetDurationMinutes int             `json:"target_duration_minutes"`
	AvailablePoses        []CandidatePose `json:"available_poses"`
}

// ComplementaryResponse lists additional pose ids.
type ComplementaryResponse struct {
	Poses       IDList `json:"poses"`
	Explanation string `json:"explanation"`
}

// TimingRequest is the body of POST /timing.
type TimingRequest struct {
	Sequence              []pose.ID `json:"sequence"`
	Duration              int       `json:"duration"`
	Level                 string    `json:"level"`
	TargetDurationMinutes int       `json:"target_duration_minutes"`
}

// TimingResponse carries timing, transitions and repetitions for a sequence.
type TimingResponse struct {
	Timing      []string               `json:"timing"`
	Transitions []string               `json:"transitions"`
	Repetitions sequence.RepetitionMap `json:"repetitions"`
}

// ReviseConstraints is sent with every revision.
type ReviseConstraints struct {
	MustDiffer bool `json:"must_differ"`
	MinLength  int  `json:"min_length"`
	MaxLength  int  `json:"max_length"`
}

// ReviseRequest is the body of POST /revise. CustomPrompt, when set,
// overrides Suggestion.
type ReviseRequest struct {
	Sequence       []CandidatePose    `json:"sequence"`
	Suggestion     string             `json:"suggestion,omitempty"`
	CustomPrompt   string             `json:"customPrompt,omitempty"`
	Focus          []string           `json:"focus"`
	Level          string             `json:"level"`
	Duration       int                `json:"duration"`
	AvailablePoses []CandidatePose    `json:"available_poses"`
	Constraints    *ReviseConstraints `json:"constraints,omitempty"`
}

// InsightsRequest is the body of POST /suggestions and POST /alternatives.
type InsightsRequest struct {
	Sequence   []pose.ID `json:"sequence"`
	FocusAreas []string  `json:"focus_areas"`
	Level      string    `json:"level"`
	Duration   int       `json:"duration"`
}

// Suggestion is one improvement idea.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SuggestionsResponse is returned by /suggestions.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// AlternativesResponse maps a pose id (as a string) to replacement ids.
type AlternativesResponse struct {
	Alternatives map[string]IDList `json:"alternatives"`
}
