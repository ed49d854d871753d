// Package pose holds the pose reference entity and the read-only catalog
// adapter every sequence component draws candidates from.
package pose

import (
	"fmt"
	"strings"
)

// ID identifies a pose. Built-in and user-defined poses share one id space.
type ID int64

// Difficulty is the level a pose (and a requested sequence) is pitched at.
type Difficulty string

const (
	Beginner     Difficulty = "Beginner"
	Intermediate Difficulty = "Intermediate"
	Expert       Difficulty = "Expert"
)

// Difficulties lists the valid levels in ascending order.
var Difficulties = []Difficulty{Beginner, Intermediate, Expert}

// ParseDifficulty matches s case-insensitively against the known levels.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q (want Beginner, Intermediate or Expert)", s)
}

// Pose is an immutable catalog entry. The engine moves poses around but
// never mutates one.
type Pose struct {
	ID           ID         `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	SanskritName string     `json:"sanskrit_name" yaml:"sanskrit_name"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	Category     string     `json:"category" yaml:"category"`
	Description  string     `json:"description" yaml:"description"`

	// BuiltIn is false for user-defined poses.
	BuiltIn bool `json:"built_in" yaml:"-"`
}

// Matches reports whether the pose's category or description contains any of
// the focus areas, case-insensitively. Blank focus areas never match.
func (p Pose) Matches(focusAreas []string) bool {
	category := Normalize(p.Category)
	description := Normalize(p.Description)
	for _, area := range focusAreas {
		a := Normalize(area)
		if a == "" {
			continue
		}
		if strings.Contains(category, a) || strings.Contains(description, a) {
			return true
		}
	}
	return false
}

// IDs returns the ids of poses in order.
func IDs(poses []Pose) []ID {
	ids := make([]ID, len(poses))
	for i, p := range poses {
		ids[i] = p.ID
	}
	return ids
}
