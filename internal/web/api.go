package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/ops"
	"github.com/hpungsan/vinyasa/internal/pose"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type generateBody struct {
	Name            string    `json:"name"`
	Duration        int       `json:"duration"`
	Difficulty      string    `json:"difficulty"`
	FocusPoses      []pose.ID `json:"focus_poses"`
	FocusAreas      []string  `json:"focus_areas"`
	EnabledFeatures []string  `json:"enabled_features"`
}

type reviseBody struct {
	ExpectedVersion int64  `json:"expected_version"`
	Suggestion      string `json:"suggestion"`
	CustomPrompt    string `json:"custom_prompt"`
}

type durationBody struct {
	ExpectedVersion int64 `json:"expected_version"`
	Duration        int   `json:"duration"`
}

type blockInsertBody struct {
	ExpectedVersion int64  `json:"expected_version"`
	FlowBlockID     string `json:"flow_block_id"`
	FlowBlockName   string `json:"flow_block_name"`
	Section         string `json:"section"`
	Position        *int   `json:"position"`
	Repetitions     int    `json:"repetitions"`
}

type moveBody struct {
	ExpectedVersion int64 `json:"expected_version"`
	From            int   `json:"from"`
	To              int   `json:"to"`
}

type replaceStepBody struct {
	ExpectedVersion int64   `json:"expected_version"`
	PoseID          pose.ID `json:"pose_id"`
}

type poseBody struct {
	Name         string `json:"name"`
	SanskritName string `json:"sanskrit_name"`
	Difficulty   string `json:"difficulty"`
	Category     string `json:"category"`
	Description  string `json:"description"`
}

type flowBlockBody struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Poses       []pose.ID `json:"poses"`
	Timing      []string  `json:"timing"`
	Transitions []string  `json:"transitions"`
	Repetitions int       `json:"repetitions"`
	Mode        string    `json:"mode"`
}

type purgeBody struct {
	OlderThanDays *int `json:"older_than_days"`
}

// decodeBody reads a JSON request body into T. An empty body yields T's zero value.
func decodeBody[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil && err != io.EOF {
		return v, errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return v, nil
}

// pathInt reads an integer path value.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// queryVersion reads the optional expected_version query parameter used by
// DELETE routes, which carry no body.
func queryVersion(r *http.Request) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get("expected_version"), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// respond writes result as JSON, or the error envelope when err is set.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, result any, err error) {
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, status, result)
}

// APIList handles GET /api/sequences.
func (h *Handlers) APIList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.deps.DB, ops.ListInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIGenerate handles POST /api/sequences.
func (h *Handlers) APIGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[generateBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.Generate(r.Context(), h.deps, ops.GenerateInput{
		Name:            body.Name,
		FocusPoses:      body.FocusPoses,
		Duration:        body.Duration,
		Difficulty:      body.Difficulty,
		FocusAreas:      body.FocusAreas,
		EnabledFeatures: body.EnabledFeatures,
	})
	h.respond(w, r, http.StatusCreated, result, err)
}

// APIFetch handles GET /api/sequences/{id}.
func (h *Handlers) APIFetch(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(r.Context(), h.deps, ops.FetchInput{
		ID:             r.PathValue("id"),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIDelete handles DELETE /api/sequences/{id}.
func (h *Handlers) APIDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.deps.DB, ops.DeleteInput{ID: r.PathValue("id")})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIRevise handles POST /api/sequences/{id}/revise.
func (h *Handlers) APIRevise(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[reviseBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.Revise(r.Context(), h.deps, ops.ReviseInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: body.ExpectedVersion,
		Suggestion:      body.Suggestion,
		CustomPrompt:    body.CustomPrompt,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIDuration handles POST /api/sequences/{id}/duration.
func (h *Handlers) APIDuration(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[durationBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.ChangeDuration(r.Context(), h.deps, ops.DurationInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: body.ExpectedVersion,
		Duration:        body.Duration,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIInsertBlock handles POST /api/sequences/{id}/blocks.
func (h *Handlers) APIInsertBlock(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[blockInsertBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.InsertBlock(r.Context(), h.deps, ops.InsertBlockInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: body.ExpectedVersion,
		FlowBlockID:     body.FlowBlockID,
		FlowBlockName:   body.FlowBlockName,
		Section:         body.Section,
		Position:        body.Position,
		Repetitions:     body.Repetitions,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIRemoveBlock handles DELETE /api/sequences/{id}/blocks/{position}.
func (h *Handlers) APIRemoveBlock(w http.ResponseWriter, r *http.Request) {
	position, err := pathInt(r, "position")
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.RemoveBlock(r.Context(), h.deps, ops.RemoveBlockInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: queryVersion(r),
		Position:        position,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIMove handles POST /api/sequences/{id}/move.
func (h *Handlers) APIMove(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[moveBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.Move(r.Context(), h.deps, ops.MoveInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: body.ExpectedVersion,
		From:            body.From,
		To:              body.To,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIReplaceStep handles PUT /api/sequences/{id}/steps/{index}.
func (h *Handlers) APIReplaceStep(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	body, err := decodeBody[replaceStepBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.ReplaceStep(r.Context(), h.deps, ops.ReplaceStepInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: body.ExpectedVersion,
		Index:           index,
		PoseID:          body.PoseID,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIRemoveStep handles DELETE /api/sequences/{id}/steps/{index}.
func (h *Handlers) APIRemoveStep(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.RemoveStep(r.Context(), h.deps, ops.RemoveStepInput{
		ID:              r.PathValue("id"),
		ExpectedVersion: queryVersion(r),
		Index:           index,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIInsights handles GET /api/sequences/{id}/insights.
func (h *Handlers) APIInsights(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Insights(r.Context(), h.deps, ops.InsightsInput{ID: r.PathValue("id")})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIListPoses handles GET /api/poses.
func (h *Handlers) APIListPoses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.ListPoses(r.Context(), h.deps.DB, ops.ListPosesInput{
		Difficulty: q.Get("difficulty"),
		Category:   q.Get("category"),
		Query:      q.Get("q"),
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIStorePose handles POST /api/poses.
func (h *Handlers) APIStorePose(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[poseBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.StorePose(r.Context(), h.deps.DB, ops.StorePoseInput{
		Name:         body.Name,
		SanskritName: body.SanskritName,
		Difficulty:   body.Difficulty,
		Category:     body.Category,
		Description:  body.Description,
	})
	h.respond(w, r, http.StatusCreated, result, err)
}

// APIListFlowBlocks handles GET /api/flow-blocks.
func (h *Handlers) APIListFlowBlocks(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListFlowBlocks(r.Context(), h.deps.DB)
	h.respond(w, r, http.StatusOK, result, err)
}

// APIStoreFlowBlock handles POST /api/flow-blocks.
func (h *Handlers) APIStoreFlowBlock(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[flowBlockBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.StoreFlowBlock(r.Context(), h.deps.DB, ops.StoreFlowBlockInput{
		Name:        body.Name,
		Category:    body.Category,
		Poses:       body.Poses,
		Timing:      body.Timing,
		Transitions: body.Transitions,
		Repetitions: body.Repetitions,
		Mode:        ops.StoreMode(body.Mode),
	})
	status := http.StatusCreated
	if result != nil && result.Replaced {
		status = http.StatusOK
	}
	h.respond(w, r, status, result, err)
}

// APIDeleteFlowBlock handles DELETE /api/flow-blocks/{id}.
func (h *Handlers) APIDeleteFlowBlock(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DeleteFlowBlock(r.Context(), h.deps.DB, ops.DeleteFlowBlockInput{ID: r.PathValue("id")})
	h.respond(w, r, http.StatusOK, result, err)
}

// APIPurge handles POST /api/purge.
func (h *Handlers) APIPurge(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[purgeBody](r)
	if err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	result, err := ops.Purge(r.Context(), h.deps.DB, ops.PurgeInput{OlderThanDays: body.OlderThanDays})
	h.respond(w, r, http.StatusOK, result, err)
}
