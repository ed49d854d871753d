package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"Beginner", Beginner, false},
		{"intermediate", Intermediate, false},
		{" EXPERT ", Expert, false},
		{"advanced", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDifficulty(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPose_Matches(t *testing.T) {
	p := Pose{Category: "Balance", Description: "Strengthens the CORE and ankles."}

	assert.True(t, p.Matches([]string{"balance"}))
	assert.True(t, p.Matches([]string{"hips", "core"}))
	assert.False(t, p.Matches([]string{"hips"}))
	assert.False(t, p.Matches([]string{"", "   "}))
	assert.False(t, p.Matches(nil))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sun salutation a", Normalize("  Sun   Salutation\tA "))
	assert.Equal(t, "", Normalize("   "))
}

func TestCatalog_LookupAndOrder(t *testing.T) {
	c := NewCatalog([]Pose{
		{ID: 3, Name: "c"},
		{ID: 1, Name: "a"},
		{ID: 3, Name: "duplicate"},
	})

	require.Equal(t, 2, c.Len())
	p, ok := c.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, "c", p.Name)

	_, ok = c.Lookup(99)
	assert.False(t, ok)

	assert.Equal(t, []ID{3, 1}, IDs(c.All()))
}

func TestCatalog_Resolve_DropsUnknown(t *testing.T) {
	c := NewCatalog([]Pose{{ID: 1}, {ID: 2}, {ID: 3}})

	poses, kept := c.Resolve([]ID{2, 42, 3, 2, -1})

	assert.Equal(t, []ID{2, 3, 2}, IDs(poses))
	assert.Equal(t, []int{0, 2, 3}, kept)
}

func TestCatalog_NilSafe(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.All())
	_, ok := c.Lookup(1)
	assert.False(t, ok)
}

func TestBuiltIn(t *testing.T) {
	f, err := BuiltIn()
	require.NoError(t, err)
	require.NotEmpty(t, f.Poses)
	require.NotEmpty(t, f.FlowBlocks)

	c := NewCatalog(f.Poses)
	for _, p := range f.Poses {
		assert.True(t, p.BuiltIn, "pose %q should be built in", p.Name)
	}
	for _, d := range Difficulties {
		assert.NotEmpty(t, c.ByDifficulty(d), "no %s poses", d)
	}
	for _, b := range f.FlowBlocks {
		for _, id := range b.Poses {
			_, ok := c.Lookup(id)
			assert.True(t, ok, "block %q references unknown pose %d", b.Name, id)
		}
		if len(b.Timing) > 0 {
			assert.Len(t, b.Timing, len(b.Poses), "block %q timing", b.Name)
		}
	}
}

func TestParseFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "poses: [::"},
		{"missing name", "poses:\n  - id: 1\n    difficulty: Beginner\n"},
		{"bad difficulty", "poses:\n  - id: 1\n    name: X\n    difficulty: Legendary\n"},
		{"duplicate id", "poses:\n  - {id: 1, name: A, difficulty: Beginner}\n  - {id: 1, name: B, difficulty: Beginner}\n"},
		{"empty block", "poses: []\nflow_blocks:\n  - name: Empty\n    poses: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}
