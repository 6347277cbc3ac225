// Package mcp implements the Model Context Protocol (MCP) server for Factum.
// It exposes the memory store as JSON-RPC 2.0 tools for AI assistants.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/factumhq/factum/pkg/types"
)

// MaxFactLength bounds the fact text accepted by the tool layer.
const MaxFactLength = 10000

// AddMemoryArgs contains arguments for the add_memory tool.
type AddMemoryArgs struct {
	Fact     string   `json:"fact"`               // free text (required)
	Tags     []string `json:"tags,omitempty"`     // stored lowercase
	Pinned   bool     `json:"pinned,omitempty"`   // pinned memories list first
	TTLHours float64  `json:"ttlHours,omitempty"` // 0 = permanent
}

// UnmarshalJSON handles the case where some MCP clients send array fields
// like "tags" as a JSON-encoded string ("[\"a\",\"b\"]") or a comma-separated
// string rather than a proper JSON array. All three forms are accepted.
func (a *AddMemoryArgs) UnmarshalJSON(data []byte) error {
	type Alias AddMemoryArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	a.Tags = decodeTagsField(aux.Tags)
	return nil
}

// decodeTagsField accepts a JSON array, a JSON-encoded array string, or a
// comma-separated string. Unrecognised shapes yield nil rather than an error.
func decodeTagsField(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &tags)
		return tags
	}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// GetMemoryArgs contains arguments for the get_memory tool.
type GetMemoryArgs struct {
	ID string `json:"id"` // memory ID (required)
}

// GetMemoryResult wraps a single lookup. Memory is null when the id is
// unknown or the record has expired; the two cases are indistinguishable.
type GetMemoryResult struct {
	Memory *types.Memory `json:"memory"`
	Found  bool          `json:"found"`
}

// ListMemoriesArgs contains arguments for the list_memories tool.
type ListMemoriesArgs struct {
	Limit  int `json:"limit,omitempty"`  // default 50, max 200
	Offset int `json:"offset,omitempty"` // default 0
}

// ListMemoriesResult contains a page of memories, pinned first then
// newest-first.
type ListMemoriesResult struct {
	Memories []*types.Memory `json:"memories"`
	Count    int             `json:"count"`
}

// SearchArgs contains arguments for the search_memories and
// smart_search_memories tools.
type SearchArgs struct {
	Query string `json:"query"` // search text (required)
}

// SearchResult contains plain substring search matches.
type SearchResult struct {
	Memories []*types.Memory `json:"memories"`
	Count    int             `json:"count"`
}

// ScoredSearchResult contains relevance- or similarity-ranked matches.
type ScoredSearchResult struct {
	Matches []ScoredMatch `json:"matches"`
	Count   int           `json:"count"`
}

// ScoredMatch pairs a memory with its score.
type ScoredMatch struct {
	Memory *types.Memory `json:"memory"`
	Score  float64       `json:"score"`
}

// SearchByTagsArgs contains arguments for the search_by_tags tool.
type SearchByTagsArgs struct {
	Tags []string `json:"tags"` // any-of match, max 30 used
}

// UnmarshalJSON applies the same tolerant tags decoding as AddMemoryArgs.
func (a *SearchByTagsArgs) UnmarshalJSON(data []byte) error {
	var aux struct {
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Tags = decodeTagsField(aux.Tags)
	return nil
}

// SemanticSearchArgs contains arguments for the semantic_search tool.
type SemanticSearchArgs struct {
	Query string `json:"query"`           // natural-language query (required)
	Limit int    `json:"limit,omitempty"` // max results (default 50)
}

// UpdateMemoryArgs contains arguments for the update_memory tool. Omitted
// fields leave the stored value unchanged; ttlHours <= 0 clears the expiry.
type UpdateMemoryArgs struct {
	ID       string   `json:"id"` // memory ID (required)
	Fact     *string  `json:"fact,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Pinned   *bool    `json:"pinned,omitempty"`
	TTLHours *float64 `json:"ttlHours,omitempty"`
}

// DeleteMemoryArgs contains arguments for the delete_memory tool.
type DeleteMemoryArgs struct {
	ID string `json:"id"` // memory ID (required)
}

// DeleteMemoryResult reports whether anything was removed. Deleting an
// unknown id is not an error.
type DeleteMemoryResult struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// TogglePinArgs contains arguments for the toggle_pin tool.
type TogglePinArgs struct {
	ID string `json:"id"` // memory ID (required)
}

// AddBulkArgs contains arguments for the add_memories_bulk tool. At most 20
// items are processed; the rest are dropped.
type AddBulkArgs struct {
	Items []AddMemoryArgs `json:"items"`
}

// DeleteBulkArgs contains arguments for the delete_memories_bulk tool. At
// most 20 ids are processed.
type DeleteBulkArgs struct {
	IDs []string `json:"ids"`
}

// BulkResult reports per-item outcomes of a bulk or import call.
type BulkResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	IDs       []string `json:"ids,omitempty"`
}

// LinkArgs contains arguments for the link_memories and unlink_memories
// tools.
type LinkArgs struct {
	SourceID string `json:"sourceId"` // (required)
	TargetID string `json:"targetId"` // (required)
}

// LinkResult acknowledges a link or unlink call.
type LinkResult struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Linked   bool   `json:"linked"` // false after unlink
}

// GetRelatedArgs contains arguments for the get_related tool.
type GetRelatedArgs struct {
	ID string `json:"id"` // memory ID (required)
}

// GetRelatedResult lists the live memories related to the source.
type GetRelatedResult struct {
	Memories []*types.Memory `json:"memories"`
	Count    int             `json:"count"`
}

// ImportArgs contains arguments for the import_memories tool. Data is the
// envelope produced by export_memories.
type ImportArgs struct {
	Data *types.Export `json:"data"`           // (required)
	Mode string        `json:"mode,omitempty"` // "merge" (default) or "replace"
}

// CleanupResult reports how many expired memories were removed.
type CleanupResult struct {
	Removed int `json:"removed"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // must be "2.0"
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"` // string, number, or null
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // invalid JSON
	ErrCodeInvalidRequest = -32600 // invalid request object
	ErrCodeMethodNotFound = -32601 // method not found
	ErrCodeInvalidParams  = -32602 // invalid method parameters
	ErrCodeInternalError  = -32603 // internal JSON-RPC error
	ErrCodeServerError    = -32000 // server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams are the parameters of the initialize handshake.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via tools/list.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
