package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/ops"
)

// oracleServer answers /generate with a fixed ten-pose sequence and fails
// every other endpoint.
func oracleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != oracle.PathGenerate {
			http.Error(w, "not available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"sequence": [1, 2, 3, 4, 5, 6, 7, 9, 12, 15],
			"timing": ["1 min", "5 breaths", "5 breaths", "5 breaths", "5 breaths",
			           "5 breaths", "5 breaths", "5 breaths", "1 min", "3 min"],
			"transitions": ["Raise arms", "Fold"]
		}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testSetup creates a temporary database and ops dependencies for testing.
func testSetup(t *testing.T) (*ops.Deps, func()) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	srv := oracleServer(t)
	deps := &ops.Deps{
		DB:     database,
		Config: cfg,
		Oracle: oracle.NewHTTPClient(srv.URL, "", cfg.OracleTimeout(), nil),
	}

	cleanup := func() {
		database.Close()
	}
	return deps, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// generate stores a sequence through the handler and returns its id.
func generate(t *testing.T, h *Handlers) string {
	t.Helper()
	result, err := h.HandleGenerate(context.Background(), makeRequest(map[string]any{
		"duration":    30,
		"difficulty":  "beginner",
		"focus_areas": []any{"balance"},
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	seq := output["sequence"].(map[string]any)
	return seq["id"].(string)
}

func TestHandleGenerate(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "generate valid",
			args: map[string]any{"duration": 30, "difficulty": "Beginner", "focus_poses": []any{12}},
		},
		{
			name:      "missing duration",
			args:      map[string]any{"difficulty": "Beginner"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown difficulty",
			args:      map[string]any{"duration": 30, "difficulty": "guru"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown focus pose",
			args:      map[string]any{"duration": 30, "difficulty": "Beginner", "focus_poses": []any{999}},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "malformed arguments",
			args:      map[string]any{"duration": "thirty", "difficulty": "Beginner"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleGenerate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleGenerate_OracleUnavailable(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	deps.Oracle = oracle.NewHTTPClient("", "", deps.Config.OracleTimeout(), nil)
	h := NewHandlers(deps)

	result, err := h.HandleGenerate(context.Background(), makeRequest(map[string]any{
		"duration": 30, "difficulty": "Beginner",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "ORACLE_UNAVAILABLE")
}

func TestHandleFetchMoveList(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()
	id := generate(t, h)

	result, err := h.HandleMove(ctx, makeRequest(map[string]any{
		"id": id, "from": 0, "to": 2, "expected_version": 1,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["moved"] != true {
		t.Errorf("moved = %v, want true", output["moved"])
	}

	// a stale expected version is rejected
	result, err = h.HandleMove(ctx, makeRequest(map[string]any{
		"id": id, "from": 0, "to": 2, "expected_version": 1,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "CONFLICT")

	result, err = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["version"].(float64) != 2 {
		t.Errorf("version = %v, want 2", output["version"])
	}
	steps := output["steps"].([]any)
	first := steps[0].(map[string]any)["pose"].(map[string]any)
	if first["id"].(float64) != 2 {
		t.Errorf("first pose = %v, want 2", first["id"])
	}
	if steps[2].(map[string]any)["timing"] != "1 min" {
		t.Errorf("moved step timing = %v, want 1 min", steps[2].(map[string]any)["timing"])
	}

	result, err = h.HandleList(ctx, makeRequest(map[string]any{"limit": 5}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	pagination := output["pagination"].(map[string]any)
	if pagination["total"].(float64) != 1 || pagination["limit"].(float64) != 5 {
		t.Errorf("pagination = %v", pagination)
	}

	result, err = h.HandleFetch(ctx, makeRequest(map[string]any{"id": "missing"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleBlockInsertRemove(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()
	id := generate(t, h)

	result, err := h.HandleBlockInsert(ctx, makeRequest(map[string]any{
		"id": id, "flow_block_name": "warrior flow", "position": 4,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	ref := output["ref"].(map[string]any)
	if ref["position"].(float64) != 4 {
		t.Errorf("ref position = %v, want 4", ref["position"])
	}
	seq := output["sequence"].(map[string]any)
	if n := len(seq["steps"].([]any)); n != 14 {
		t.Errorf("steps = %d, want 14", n)
	}

	// nothing starts at position 0
	result, err = h.HandleBlockRemove(ctx, makeRequest(map[string]any{"id": id, "position": 0}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["removed"] != false {
		t.Errorf("removed = %v, want false", output["removed"])
	}

	result, err = h.HandleBlockRemove(ctx, makeRequest(map[string]any{"id": id, "position": 4}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["removed"] != true {
		t.Errorf("removed = %v, want true", output["removed"])
	}
	seq = output["sequence"].(map[string]any)
	if n := len(seq["steps"].([]any)); n != 10 {
		t.Errorf("steps = %d, want 10", n)
	}

	result, err = h.HandleBlockInsert(ctx, makeRequest(map[string]any{"id": id, "flow_block_name": "nope"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleSteps(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()
	id := generate(t, h)

	result, err := h.HandleReplaceStep(ctx, makeRequest(map[string]any{"id": id, "index": 0, "pose_id": 16}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	steps := output["sequence"].(map[string]any)["steps"].([]any)
	if steps[0].(map[string]any)["pose"].(map[string]any)["name"] != "Triangle Pose" {
		t.Errorf("step 0 = %v, want Triangle Pose", steps[0])
	}

	result, err = h.HandleRemoveStep(ctx, makeRequest(map[string]any{"id": id, "index": 9}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if n := len(output["sequence"].(map[string]any)["steps"].([]any)); n != 9 {
		t.Errorf("steps = %d, want 9", n)
	}

	result, err = h.HandleRemoveStep(ctx, makeRequest(map[string]any{"id": id, "index": 42}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleReviseAndDuration_OracleDown(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()
	id := generate(t, h)

	result, err := h.HandleRevise(ctx, makeRequest(map[string]any{"id": id, "suggestion": "More hips"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "ORACLE_UNAVAILABLE")

	// trimming needs no oracle; timing regeneration fails and is reported stale
	result, err = h.HandleDuration(ctx, makeRequest(map[string]any{"id": id, "duration": 10}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["timing_stale"] != true {
		t.Errorf("timing_stale = %v, want true", output["timing_stale"])
	}
	if output["trimmed"].(float64) != 5 {
		t.Errorf("trimmed = %v, want 5", output["trimmed"])
	}
}

func TestHandleInsights_BestEffort(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	id := generate(t, h)

	result, err := h.HandleInsights(context.Background(), makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["id"] != id {
		t.Errorf("id = %v, want %s", output["id"], id)
	}
}

func TestHandleDelete(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()
	id := generate(t, h)

	result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["deleted"] != true {
		t.Errorf("deleted = %v, want true", output["deleted"])
	}

	result, err = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id, "include_deleted": true}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Errorf("fetch with include_deleted failed: %s", extractErrorMessage(result))
	}

	result, err = h.HandleDelete(ctx, makeRequest(map[string]any{"id": ""}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandlePoseList(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)

	result, err := h.HandlePoseList(context.Background(), makeRequest(map[string]any{"difficulty": "Expert"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["total"].(float64) != 8 {
		t.Errorf("total = %v, want 8", output["total"])
	}
}

func TestHandleFlowBlocks(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(deps)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "store new block",
			args: map[string]any{"name": "Hip Flow", "poses": []any{22, 8}, "timing": []any{"1 minute"}},
		},
		{
			name:      "duplicate name",
			args:      map[string]any{"name": "hip flow", "poses": []any{22}},
			wantError: true,
			errorCode: "NAME_ALREADY_EXISTS",
		},
		{
			name: "replace by name",
			args: map[string]any{"name": "hip flow", "poses": []any{22, 14}, "mode": "replace"},
		},
		{
			name:      "unknown pose",
			args:      map[string]any{"name": "Other", "poses": []any{999}},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "no poses",
			args:      map[string]any{"name": "Empty"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFlowBlockStore(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}

	result, err := h.HandleFlowBlockList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["total"].(float64) != 4 {
		t.Errorf("total = %v, want 4", output["total"])
	}
}

func TestServerRegistration(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(deps, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"sequence_generate",
		"sequence_revise",
		"sequence_duration",
		"sequence_block_insert",
		"sequence_block_remove",
		"sequence_move",
		"sequence_replace_step",
		"sequence_remove_step",
		"sequence_fetch",
		"sequence_list",
		"sequence_delete",
		"sequence_insights",
		"pose_list",
		"flowblock_list",
		"flowblock_store",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()

	deps.Config.DisabledTools = []string{"sequence_delete", "flowblock_store", "sequence_delete"}
	tools := NewServer(deps, "test").ListTools()

	if len(tools) != 13 {
		t.Errorf("registered tool count = %d, want 13", len(tools))
	}
	for _, name := range []string{"sequence_delete", "flowblock_store"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()

	deps.Config.DisabledTypes = []string{"pose", "flowblock"}
	tools := NewServer(deps, "test").ListTools()

	if len(tools) != 12 {
		t.Errorf("registered tool count = %d, want 12", len(tools))
	}
	for name := range tools {
		if !strings.HasPrefix(name, "sequence_") {
			t.Errorf("tool %q should be disabled by type", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	deps, cleanup := testSetup(t)
	defer cleanup()

	deps.Config.DisabledTools = AllToolNames()
	tools := NewServer(deps, "test").ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"sequence_delete", "pose_list"}, 0},
		{"one unknown", []string{"sequence_delete", "breath_count"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"sequence", "pose", "flowblock"}); len(unknown) != 0 {
		t.Errorf("unexpected unknown types: %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"breathwork"}); len(unknown) != 1 {
		t.Errorf("unknown = %v, want [breathwork]", unknown)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := map[string]string{
		"sequence_block_insert": "sequence",
		"pose_list":             "pose",
		"flowblock_store":       "flowblock",
		"bare":                  "",
	}
	for tool, want := range tests {
		if got := GetTypeForTool(tool); got != want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", tool, got, want)
		}
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 15 {
		t.Errorf("AllToolNames() returned %d names, want 15", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Fatal("expected INTERNAL message to hide the cause")
	}
}

func TestErrorResult_WrappedErrorPreservesCode(t *testing.T) {
	wrapped := fmt.Errorf("step 3: %w", errors.NewConflict("abc", 1, 2))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrConflict) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrConflict)
	}
	details := errObj["details"].(map[string]any)
	if details["actual_version"].(float64) != 2 {
		t.Errorf("details = %v", details)
	}
}

// Helper functions

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success", expectedCode)
		return
	}
	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q (%s)", code, expectedCode, extractErrorMessage(result))
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
