package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/ops"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

func (h *Handlers) config() *config.Config {
	if h.deps.Config == nil {
		return config.DefaultConfig()
	}
	return h.deps.Config
}

// Request types for each tool

// GenerateRequest represents the arguments for sequence_generate.
type GenerateRequest struct {
	Name            string    `json:"name,omitempty"`
	Duration        int       `json:"duration"`
	Difficulty      string    `json:"difficulty"`
	FocusPoses      []pose.ID `json:"focus_poses,omitempty"`
	FocusAreas      []string  `json:"focus_areas,omitempty"`
	EnabledFeatures []string  `json:"enabled_features,omitempty"`
}

// ReviseRequest represents the arguments for sequence_revise.
type ReviseRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Suggestion      string `json:"suggestion,omitempty"`
	CustomPrompt    string `json:"custom_prompt,omitempty"`
}

// DurationRequest represents the arguments for sequence_duration.
type DurationRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Duration        int    `json:"duration"`
}

// BlockInsertRequest represents the arguments for sequence_block_insert.
type BlockInsertRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	FlowBlockID     string `json:"flow_block_id,omitempty"`
	FlowBlockName   string `json:"flow_block_name,omitempty"`
	Section         string `json:"section,omitempty"`
	Position        *int   `json:"position,omitempty"`
	Repetitions     int    `json:"repetitions,omitempty"`
}

// BlockRemoveRequest represents the arguments for sequence_block_remove.
type BlockRemoveRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Position        int    `json:"position"`
}

// MoveRequest represents the arguments for sequence_move.
type MoveRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	From            int    `json:"from"`
	To              int    `json:"to"`
}

// StepRequest represents the arguments for sequence_replace_step and
// sequence_remove_step.
type StepRequest struct {
	ID              string  `json:"id"`
	ExpectedVersion int64   `json:"expected_version,omitempty"`
	Index           int     `json:"index"`
	PoseID          pose.ID `json:"pose_id,omitempty"`
}

// FetchRequest represents the arguments for sequence_fetch.
type FetchRequest struct {
	ID             string `json:"id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ListRequest represents the arguments for sequence_list.
type ListRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// IDRequest represents the arguments for tools that only take an id.
type IDRequest struct {
	ID string `json:"id"`
}

// PoseListRequest represents the arguments for pose_list.
type PoseListRequest struct {
	Difficulty string `json:"difficulty,omitempty"`
	Category   string `json:"category,omitempty"`
	Query      string `json:"query,omitempty"`
}

// FlowBlockStoreRequest represents the arguments for flowblock_store.
type FlowBlockStoreRequest struct {
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Poses       []pose.ID `json:"poses"`
	Timing      []string  `json:"timing,omitempty"`
	Transitions []string  `json:"transitions,omitempty"`
	Repetitions int       `json:"repetitions,omitempty"`
	Mode        string    `json:"mode,omitempty"`
}

// Handler implementations

// HandleGenerate handles the sequence_generate tool call.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Generate(ctx, h.deps, ops.GenerateInput{
		Name:            input.Name,
		FocusPoses:      input.FocusPoses,
		Duration:        input.Duration,
		Difficulty:      input.Difficulty,
		FocusAreas:      input.FocusAreas,
		EnabledFeatures: input.EnabledFeatures,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRevise handles the sequence_revise tool call.
func (h *Handlers) HandleRevise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReviseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Revise(ctx, h.deps, ops.ReviseInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		Suggestion:      input.Suggestion,
		CustomPrompt:    input.CustomPrompt,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDuration handles the sequence_duration tool call.
func (h *Handlers) HandleDuration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DurationRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ChangeDuration(ctx, h.deps, ops.DurationInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		Duration:        input.Duration,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBlockInsert handles the sequence_block_insert tool call.
func (h *Handlers) HandleBlockInsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BlockInsertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.InsertBlock(ctx, h.deps, ops.InsertBlockInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		FlowBlockID:     input.FlowBlockID,
		FlowBlockName:   input.FlowBlockName,
		Section:         input.Section,
		Position:        input.Position,
		Repetitions:     input.Repetitions,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBlockRemove handles the sequence_block_remove tool call.
func (h *Handlers) HandleBlockRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BlockRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RemoveBlock(ctx, h.deps, ops.RemoveBlockInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		Position:        input.Position,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMove handles the sequence_move tool call.
func (h *Handlers) HandleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Move(ctx, h.deps, ops.MoveInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		From:            input.From,
		To:              input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReplaceStep handles the sequence_replace_step tool call.
func (h *Handlers) HandleReplaceStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StepRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ReplaceStep(ctx, h.deps, ops.ReplaceStepInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		Index:           input.Index,
		PoseID:          input.PoseID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRemoveStep handles the sequence_remove_step tool call.
func (h *Handlers) HandleRemoveStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StepRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RemoveStep(ctx, h.deps, ops.RemoveStepInput{
		ID:              input.ID,
		ExpectedVersion: input.ExpectedVersion,
		Index:           input.Index,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the sequence_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.deps, ops.FetchInput{
		ID:             input.ID,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the sequence_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.deps.DB, ops.ListInput{
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the sequence_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.deps.DB, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInsights handles the sequence_insights tool call.
func (h *Handlers) HandleInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Insights(ctx, h.deps, ops.InsightsInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePoseList handles the pose_list tool call.
func (h *Handlers) HandlePoseList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PoseListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListPoses(ctx, h.deps.DB, ops.ListPosesInput{
		Difficulty: input.Difficulty,
		Category:   input.Category,
		Query:      input.Query,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFlowBlockList handles the flowblock_list tool call.
func (h *Handlers) HandleFlowBlockList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListFlowBlocks(ctx, h.deps.DB)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFlowBlockStore handles the flowblock_store tool call.
func (h *Handlers) HandleFlowBlockStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FlowBlockStoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.StoreFlowBlock(ctx, h.deps.DB, ops.StoreFlowBlockInput{
		Name:        input.Name,
		Category:    input.Category,
		Poses:       input.Poses,
		Timing:      input.Timing,
		Transitions: input.Transitions,
		Repetitions: input.Repetitions,
		Mode:        ops.StoreMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	ve := errors.As(err)

	errorObj := map[string]any{
		"code":    ve.Code,
		"message": ve.Message,
		"status":  ve.Status,
	}
	if ve.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if ve.Details != nil {
		errorObj["details"] = ve.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
