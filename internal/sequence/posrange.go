package sequence

// MinimumPoses is the floor on sequence length regardless of duration.
const MinimumPoses = 5

// Range is the acceptable pose count for a class duration.
type Range struct {
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
	Target  int `json:"target"`
}

// PoseRange sizes a sequence for a duration in minutes:
// minimum = max(5, d/3), maximum = d/2, target = d.
//
// Below 15 minutes Minimum exceeds Maximum. Maximum is advisory only and
// callers must never cut a sequence below Minimum to honor it.
func PoseRange(durationMinutes int) Range {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	return Range{
		Minimum: max(MinimumPoses, durationMinutes/3),
		Maximum: durationMinutes / 2,
		Target:  durationMinutes,
	}
}

// Shortfall returns how many poses a sequence of length n lacks to reach Minimum.
func (r Range) Shortfall(n int) int {
	return max(0, r.Minimum-n)
}

// TrimTarget returns the length a sequence of n steps should be cut to, or n
// when no trimming applies.
func (r Range) TrimTarget(n int) int {
	limit := max(r.Maximum, r.Minimum)
	if n > limit {
		return limit
	}
	return n
}

// Sections splits a sequence into warm-up, main and cool-down spans.
type Sections struct {
	WarmUpLen   int `json:"warm_up_len"`
	MainStart   int `json:"main_start"`
	CoolDownLen int `json:"cool_down_len"`
	CoolDown    int `json:"cool_down_start"`
}

// SectionsFor returns the section layout for a sequence of n steps. Each end
// section is a fifth of the sequence, at least one step, and the two never
// overlap.
func SectionsFor(n int) Sections {
	if n <= 0 {
		return Sections{}
	}
	edge := max(1, n/5)
	if 2*edge > n {
		edge = n / 2
	}
	return Sections{
		WarmUpLen:   edge,
		MainStart:   edge,
		CoolDownLen: edge,
		CoolDown:    n - edge,
	}
}

// SectionStart returns the first index of a named section ("warm-up", "main",
// "peak", "cool down"). Unknown names resolve to the main section.
func (s Sections) SectionStart(name string) int {
	switch sectionKind(name) {
	case kindWarmUp:
		return 0
	case kindCoolDown:
		return s.CoolDown
	default:
		return s.MainStart
	}
}
