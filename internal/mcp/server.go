package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/vinyasa/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"sequence", "pose", "flowblock"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"sequence_generate": {
		def:     generateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGenerate },
	},
	"sequence_revise": {
		def:     reviseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRevise },
	},
	"sequence_duration": {
		def:     durationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDuration },
	},
	"sequence_block_insert": {
		def:     blockInsertToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBlockInsert },
	},
	"sequence_block_remove": {
		def:     blockRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBlockRemove },
	},
	"sequence_move": {
		def:     moveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMove },
	},
	"sequence_replace_step": {
		def:     replaceStepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReplaceStep },
	},
	"sequence_remove_step": {
		def:     removeStepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemoveStep },
	},
	"sequence_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"sequence_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"sequence_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"sequence_insights": {
		def:     insightsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInsights },
	},
	"pose_list": {
		def:     poseListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePoseList },
	},
	"flowblock_list": {
		def:     flowBlockListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFlowBlockList },
	},
	"flowblock_store": {
		def:     flowBlockStoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFlowBlockStore },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "sequence_move" → "sequence").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Vinyasa tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes are excluded
// from registration.
func NewServer(deps *ops.Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vinyasa",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)
	cfg := h.config()

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps *ops.Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
