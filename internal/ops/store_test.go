package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/pose"
)

func intPtr(i int) *int { return &i }

func TestList_Pagination(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		storeSequence(t, d, tenIDs, 30)
	}

	out, err := List(ctx, d.DB, ListInput{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 || !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("page 1 = %d items, pagination %+v", len(out.Items), out.Pagination)
	}
	if out.Sort != "updated_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}

	out, err = List(ctx, d.DB, ListInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("page 2 = %d items, pagination %+v", len(out.Items), out.Pagination)
	}
}

func TestList_Bounds(t *testing.T) {
	d := newTestDeps(t, nil)

	out, err := List(context.Background(), d.DB, ListInput{Limit: 500, Offset: -3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit || out.Pagination.Offset != 0 {
		t.Errorf("pagination = %+v, want limit %d offset 0", out.Pagination, MaxListLimit)
	}
	if out.Items == nil {
		t.Error("Items is nil, want empty slice")
	}

	out, err = List(context.Background(), d.DB, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, DefaultListLimit)
	}
}

func TestDeleteFetchPurge(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()
	gone := storeSequence(t, d, tenIDs, 30)
	kept := storeSequence(t, d, tenIDs, 30)

	del, err := Delete(ctx, d.DB, DeleteInput{ID: gone})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !del.Deleted || del.ID != gone {
		t.Errorf("Delete = %+v", del)
	}

	if _, err := Fetch(ctx, d, FetchInput{ID: gone}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Fetch deleted: got %v, want NOT_FOUND", err)
	}
	fetched, err := Fetch(ctx, d, FetchInput{ID: gone, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Fetch with IncludeDeleted failed: %v", err)
	}
	if fetched.DeletedAt == nil {
		t.Error("DeletedAt = nil, want set")
	}

	// edits never touch deleted sequences
	if _, err := Move(ctx, d, MoveInput{ID: gone, From: 0, To: 1}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Move on deleted: got %v, want NOT_FOUND", err)
	}
	if _, err := Delete(ctx, d.DB, DeleteInput{ID: gone}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete: got %v, want NOT_FOUND", err)
	}

	list, err := List(ctx, d.DB, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list.Pagination.Total != 1 || list.Items[0].ID != kept {
		t.Errorf("List = %+v", list.Items)
	}

	purge, err := Purge(ctx, d.DB, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if purge.Purged.Sequences != 1 || purge.Message != "Permanently deleted 1 sequence" {
		t.Errorf("Purge = %+v", purge)
	}
	if _, err := Fetch(ctx, d, FetchInput{ID: gone, IncludeDeleted: true}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Fetch purged: got %v, want NOT_FOUND", err)
	}
}

func TestPurge_OlderThanKeepsRecent(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()
	id := storeSequence(t, d, tenIDs, 30)
	if _, err := Delete(ctx, d.DB, DeleteInput{ID: id}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	out, err := Purge(ctx, d.DB, PurgeInput{OlderThanDays: intPtr(7)})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged.Sequences != 0 || out.Message != "No deleted sequences or flow blocks to purge" {
		t.Errorf("Purge = %+v", out)
	}

	if _, err := Purge(ctx, d.DB, PurgeInput{OlderThanDays: intPtr(-1)}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("negative days: got %v, want INVALID_REQUEST", err)
	}
}

func TestFormatPurgeMessage(t *testing.T) {
	tests := []struct {
		name   string
		counts db.PurgeCounts
		days   *int
		want   string
	}{
		{"nothing", db.PurgeCounts{}, nil, "No deleted sequences or flow blocks to purge"},
		{"one sequence", db.PurgeCounts{Sequences: 1}, nil, "Permanently deleted 1 sequence"},
		{"blocks only", db.PurgeCounts{FlowBlocks: 2}, nil, "Permanently deleted 2 flow blocks"},
		{"both with days", db.PurgeCounts{Sequences: 3, FlowBlocks: 1}, intPtr(30),
			"Permanently deleted 3 sequences and 1 flow block (deleted more than 30 days ago)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatPurgeMessage(tc.counts, tc.days); got != tc.want {
				t.Errorf("formatPurgeMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestListPoses_Filters(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ListPosesInput
		want  int
	}{
		{"all", ListPosesInput{}, 32},
		{"expert", ListPosesInput{Difficulty: "expert"}, 8},
		{"query english", ListPosesInput{Query: "Warrior"}, 2},
		{"query sanskrit", ListPosesInput{Query: "vrksa"}, 1},
		{"category", ListPosesInput{Category: "BALANCE"}, 4},
		{"combined", ListPosesInput{Difficulty: "Intermediate", Category: "balance"}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ListPoses(ctx, d.DB, tc.input)
			if err != nil {
				t.Fatalf("ListPoses failed: %v", err)
			}
			if out.Total != tc.want || len(out.Items) != tc.want {
				t.Errorf("Total = %d (%d items), want %d", out.Total, len(out.Items), tc.want)
			}
		})
	}

	if _, err := ListPoses(ctx, d.DB, ListPosesInput{Difficulty: "guru"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad difficulty: got %v, want INVALID_REQUEST", err)
	}
}

func TestStorePose(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()

	out, err := StorePose(ctx, d.DB, StorePoseInput{
		Name:        "  Goddess Pose ",
		Difficulty:  "beginner",
		Category:    "Standing",
		Description: "Wide stance, **knees out**.",
	})
	if err != nil {
		t.Fatalf("StorePose failed: %v", err)
	}
	if out.Pose.ID != 33 || out.Pose.Name != "Goddess Pose" || out.Pose.Difficulty != pose.Beginner || out.Pose.BuiltIn {
		t.Errorf("Pose = %+v", out.Pose)
	}

	if _, err := StorePose(ctx, d.DB, StorePoseInput{Name: "goddess  pose", Difficulty: "Beginner"}); !errors.Is(err, errors.ErrNameAlreadyExists) {
		t.Errorf("duplicate: got %v, want NAME_ALREADY_EXISTS", err)
	}
	if _, err := StorePose(ctx, d.DB, StorePoseInput{Name: " ", Difficulty: "Beginner"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank name: got %v, want INVALID_REQUEST", err)
	}
	if _, err := StorePose(ctx, d.DB, StorePoseInput{Name: "Lizard"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing difficulty: got %v, want INVALID_REQUEST", err)
	}
}

func TestStoreFlowBlock(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()

	in := StoreFlowBlockInput{
		Name:        "Hip Opener Flow",
		Category:    "Hips",
		Poses:       []pose.ID{22, 8},
		Timing:      []string{"1 minute"},
		Transitions: []string{"Fold forward"},
	}
	out, err := StoreFlowBlock(ctx, d.DB, in)
	if err != nil {
		t.Fatalf("StoreFlowBlock failed: %v", err)
	}
	if out.ID == "" || out.Replaced {
		t.Errorf("StoreFlowBlock = %+v", out)
	}

	stored, err := db.GetFlowBlock(ctx, d.DB, out.ID)
	if err != nil {
		t.Fatalf("GetFlowBlock failed: %v", err)
	}
	if stored.Repetitions != 1 || len(stored.PoseIDs) != 2 {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := StoreFlowBlock(ctx, d.DB, in); !errors.Is(err, errors.ErrNameAlreadyExists) {
		t.Errorf("duplicate: got %v, want NAME_ALREADY_EXISTS", err)
	}

	in.Mode = StoreModeReplace
	in.Poses = []pose.ID{22, 14, 8}
	in.Repetitions = 2
	replaced, err := StoreFlowBlock(ctx, d.DB, in)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if !replaced.Replaced || replaced.ID != out.ID {
		t.Errorf("replace = %+v, want same id replaced", replaced)
	}
	stored, err = db.GetFlowBlock(ctx, d.DB, out.ID)
	if err != nil {
		t.Fatalf("GetFlowBlock failed: %v", err)
	}
	if len(stored.PoseIDs) != 3 || stored.Repetitions != 2 {
		t.Errorf("replaced block = %+v", stored)
	}

	list, err := ListFlowBlocks(ctx, d.DB)
	if err != nil {
		t.Fatalf("ListFlowBlocks failed: %v", err)
	}
	if list.Total != 4 {
		t.Errorf("Total = %d, want 4", list.Total)
	}
}

func TestStoreFlowBlock_Validation(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input StoreFlowBlockInput
		code  errors.ErrorCode
	}{
		{"no name", StoreFlowBlockInput{Poses: []pose.ID{1}}, errors.ErrInvalidRequest},
		{"no poses", StoreFlowBlockInput{Name: "x"}, errors.ErrInvalidRequest},
		{"unknown pose", StoreFlowBlockInput{Name: "x", Poses: []pose.ID{1, 999}}, errors.ErrNotFound},
		{"too much timing", StoreFlowBlockInput{Name: "x", Poses: []pose.ID{1}, Timing: []string{"a", "b"}}, errors.ErrInvalidRequest},
		{"too many transitions", StoreFlowBlockInput{Name: "x", Poses: []pose.ID{1, 2}, Transitions: []string{"a", "b"}}, errors.ErrInvalidRequest},
		{"bad mode", StoreFlowBlockInput{Name: "x", Poses: []pose.ID{1}, Mode: "merge"}, errors.ErrInvalidRequest},
		{"negative repetitions", StoreFlowBlockInput{Name: "x", Poses: []pose.ID{1}, Repetitions: -1}, errors.ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := StoreFlowBlock(ctx, d.DB, tc.input)
			if !errors.Is(err, tc.code) {
				t.Errorf("got %v, want %s", err, tc.code)
			}
		})
	}
}

func TestDeleteFlowBlock(t *testing.T) {
	d := newTestDeps(t, nil)
	ctx := context.Background()
	id := db.BuiltInBlockID("Gentle Cool Down")

	out, err := DeleteFlowBlock(ctx, d.DB, DeleteFlowBlockInput{ID: id})
	if err != nil {
		t.Fatalf("DeleteFlowBlock failed: %v", err)
	}
	if !out.Deleted {
		t.Error("Deleted = false")
	}
	if _, err := DeleteFlowBlock(ctx, d.DB, DeleteFlowBlockInput{ID: id}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete: got %v, want NOT_FOUND", err)
	}

	// the name is free again once the block is deleted
	if _, err := StoreFlowBlock(ctx, d.DB, StoreFlowBlockInput{Name: "Gentle Cool Down", Poses: []pose.ID{15}}); err != nil {
		t.Errorf("re-create after delete failed: %v", err)
	}

	purge, err := Purge(ctx, d.DB, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if purge.Purged.FlowBlocks != 1 {
		t.Errorf("purged flow blocks = %d, want 1", purge.Purged.FlowBlocks)
	}
}
