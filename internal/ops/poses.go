package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// ListPosesInput contains parameters for the ListPoses operation.
type ListPosesInput struct {
	Difficulty string // optional
	Category   string // optional, case-insensitive exact match
	Query      string // optional, matched against english and sanskrit names
}

// ListPosesOutput contains the result of the ListPoses operation.
type ListPosesOutput struct {
	Items []pose.Pose `json:"items"`
	Total int         `json:"total"`
}

// ListPoses returns catalog poses in catalog order, optionally filtered.
func ListPoses(ctx context.Context, database *sql.DB, input ListPosesInput) (*ListPosesOutput, error) {
	var difficulty pose.Difficulty
	if strings.TrimSpace(input.Difficulty) != "" {
		d, err := pose.ParseDifficulty(input.Difficulty)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		difficulty = d
	}
	category := pose.Normalize(input.Category)
	query := pose.Normalize(input.Query)

	all, err := db.ListPoses(ctx, database)
	if err != nil {
		return nil, err
	}

	items := []pose.Pose{}
	for _, p := range all {
		if difficulty != "" && p.Difficulty != difficulty {
			continue
		}
		if category != "" && pose.Normalize(p.Category) != category {
			continue
		}
		if query != "" &&
			!strings.Contains(pose.Normalize(p.Name), query) &&
			!strings.Contains(pose.Normalize(p.SanskritName), query) {
			continue
		}
		items = append(items, p)
	}
	return &ListPosesOutput{Items: items, Total: len(items)}, nil
}

// StorePoseInput contains parameters for the StorePose operation.
type StorePoseInput struct {
	Name         string // required, unique after normalization
	SanskritName string
	Difficulty   string // required
	Category     string
	Description  string // markdown
}

// StorePoseOutput contains the result of the StorePose operation.
type StorePoseOutput struct {
	Pose pose.Pose `json:"pose"`
}

// StorePose adds a user-defined pose to the catalog.
func StorePose(ctx context.Context, database *sql.DB, input StorePoseInput) (*StorePoseOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	difficulty, err := pose.ParseDifficulty(input.Difficulty)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	stored, err := db.InsertPose(ctx, database, pose.Pose{
		Name:         name,
		SanskritName: strings.TrimSpace(input.SanskritName),
		Difficulty:   difficulty,
		Category:     strings.TrimSpace(input.Category),
		Description:  strings.TrimSpace(input.Description),
	})
	if err != nil {
		return nil, err
	}
	return &StorePoseOutput{Pose: *stored}, nil
}
