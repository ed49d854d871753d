package mcp

import "github.com/mark3labs/mcp-go/mcp"

var (
	stringItems = mcp.Items(map[string]any{"type": "string"})
	intItems    = mcp.Items(map[string]any{"type": "integer"})
)

func idParam() mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(), mcp.Description("Sequence id (ULID)"))
}

func expectedVersionParam() mcp.ToolOption {
	return mcp.WithNumber("expected_version",
		mcp.Description("Reject the call with CONFLICT unless the stored sequence is at this version"))
}

var generateToolDef = mcp.NewTool("sequence_generate",
	mcp.WithDescription("Generate and store a new yoga sequence through the sequence oracle. "+
		"Sequences shorter than the duration's pose range are topped up with complementary or fallback poses."),
	mcp.WithNumber("duration", mcp.Required(), mcp.Description("Class length in minutes")),
	mcp.WithString("difficulty", mcp.Required(), mcp.Enum("Beginner", "Intermediate", "Expert")),
	mcp.WithString("name", mcp.Description("Sequence name (default: '<duration> min <difficulty> flow')")),
	mcp.WithArray("focus_poses", intItems, mcp.Description("Pose ids that must be included; stored as peak poses")),
	mcp.WithArray("focus_areas", stringItems, mcp.Description("Body areas or themes, e.g. hips, balance")),
	mcp.WithArray("enabled_features", stringItems),
)

var reviseToolDef = mcp.NewTool("sequence_revise",
	mcp.WithDescription("Ask the oracle to reorder a stored sequence. The stored sequence is replaced only if the whole revision succeeds."),
	idParam(),
	expectedVersionParam(),
	mcp.WithString("suggestion", mcp.Description("Suggestion text, e.g. one returned by sequence_insights")),
	mcp.WithString("custom_prompt", mcp.Description("Free-form instruction; overrides suggestion")),
)

var durationToolDef = mcp.NewTool("sequence_duration",
	mcp.WithDescription("Fit a stored sequence to a new duration: top up below the pose range, trim trailing poses above it."),
	idParam(),
	expectedVersionParam(),
	mcp.WithNumber("duration", mcp.Required(), mcp.Description("New class length in minutes")),
)

var blockInsertToolDef = mcp.NewTool("sequence_block_insert",
	mcp.WithDescription("Splice a flow block into a stored sequence. Warm-up blocks go first, cool-down blocks before the cool-down section."),
	idParam(),
	expectedVersionParam(),
	mcp.WithString("flow_block_id", mcp.Description("Flow block id (wins over flow_block_name)")),
	mcp.WithString("flow_block_name", mcp.Description("Flow block name, case-insensitive")),
	mcp.WithString("section", mcp.Enum("warm-up", "main", "peak", "cool-down"),
		mcp.Description("Where a main-section block goes (default: start of main)")),
	mcp.WithNumber("position", mcp.Description("Explicit step index; clamped to the sequence")),
	mcp.WithNumber("repetitions", mcp.Description("Override the block's repetition count")),
)

var blockRemoveToolDef = mcp.NewTool("sequence_block_remove",
	mcp.WithDescription("Remove the flow block spliced at a position. Returns removed=false with a reason when nothing matches."),
	idParam(),
	expectedVersionParam(),
	mcp.WithNumber("position", mcp.Required(), mcp.Description("Start index of the block span")),
)

var moveToolDef = mcp.NewTool("sequence_move",
	mcp.WithDescription("Move one step to a new index. Timing and transitions move with the pose; block references are shifted."),
	idParam(),
	expectedVersionParam(),
	mcp.WithNumber("from", mcp.Required()),
	mcp.WithNumber("to", mcp.Required(), mcp.Description("Clamped to the last index")),
)

var replaceStepToolDef = mcp.NewTool("sequence_replace_step",
	mcp.WithDescription("Swap the pose at an index for another catalog pose, keeping the slot's timing."),
	idParam(),
	expectedVersionParam(),
	mcp.WithNumber("index", mcp.Required()),
	mcp.WithNumber("pose_id", mcp.Required()),
)

var removeStepToolDef = mcp.NewTool("sequence_remove_step",
	mcp.WithDescription("Remove the step at an index. The last step cannot be removed."),
	idParam(),
	expectedVersionParam(),
	mcp.WithNumber("index", mcp.Required()),
)

var fetchToolDef = mcp.NewTool("sequence_fetch",
	mcp.WithDescription("Fetch a stored sequence with its steps, sections and flow block references."),
	idParam(),
	mcp.WithBoolean("include_deleted"),
)

var listToolDef = mcp.NewTool("sequence_list",
	mcp.WithDescription("List stored sequences, most recently updated first."),
	mcp.WithNumber("limit", mcp.Description("Default 20, max 100")),
	mcp.WithNumber("offset"),
	mcp.WithBoolean("include_deleted"),
)

var deleteToolDef = mcp.NewTool("sequence_delete",
	mcp.WithDescription("Soft-delete a stored sequence."),
	idParam(),
)

var insightsToolDef = mcp.NewTool("sequence_insights",
	mcp.WithDescription("Fetch improvement suggestions and alternative poses for a stored sequence. Both parts are best effort."),
	idParam(),
)

var poseListToolDef = mcp.NewTool("pose_list",
	mcp.WithDescription("List catalog poses, optionally filtered."),
	mcp.WithString("difficulty", mcp.Enum("Beginner", "Intermediate", "Expert")),
	mcp.WithString("category", mcp.Description("Exact category, case-insensitive")),
	mcp.WithString("query", mcp.Description("Substring of the english or sanskrit name")),
)

var flowBlockListToolDef = mcp.NewTool("flowblock_list",
	mcp.WithDescription("List flow block definitions."),
)

var flowBlockStoreToolDef = mcp.NewTool("flowblock_store",
	mcp.WithDescription("Create a flow block, or replace one by name with mode=replace."),
	mcp.WithString("name", mcp.Required()),
	mcp.WithString("category", mcp.Description("Warm-up, Cool Down, or any main-section label")),
	mcp.WithArray("poses", mcp.Required(), intItems),
	mcp.WithArray("timing", stringItems, mcp.Description("At most one entry per pose")),
	mcp.WithArray("transitions", stringItems, mcp.Description("At most one entry between each pair of poses")),
	mcp.WithNumber("repetitions"),
	mcp.WithString("mode", mcp.Enum("error", "replace")),
)
