package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/factumhq/factum/internal/engine"
	"github.com/factumhq/factum/pkg/types"
)

// memoryEngine is the subset of engine.Engine used by the MCP server. Using
// an interface keeps the MCP package loosely coupled and testable.
type memoryEngine interface {
	Add(ctx context.Context, fact string, opts engine.AddOptions) (*types.Memory, error)
	Get(ctx context.Context, id string) (*types.Memory, error)
	GetAll(ctx context.Context, limit, offset int) ([]*types.Memory, error)
	Search(ctx context.Context, query string) ([]*types.Memory, error)
	SmartSearch(ctx context.Context, query string) ([]engine.ScoredMemory, error)
	SearchByTags(ctx context.Context, tags []string) ([]*types.Memory, error)
	SemanticSearchText(ctx context.Context, query string, limit int) ([]engine.ScoredMemory, error)
	Update(ctx context.Context, id string, req engine.UpdateRequest) (*types.Memory, error)
	Delete(ctx context.Context, id string) (bool, error)
	TogglePin(ctx context.Context, id string) (*types.Memory, error)
	AddBulk(ctx context.Context, items []engine.AddBulkItem) (*engine.BulkResult, error)
	DeleteBulk(ctx context.Context, ids []string) (*engine.BulkResult, error)
	Link(ctx context.Context, idA, idB string) error
	Unlink(ctx context.Context, idA, idB string) error
	GetRelated(ctx context.Context, id string) ([]*types.Memory, error)
	ExportAll(ctx context.Context) (*types.Export, error)
	ImportAll(ctx context.Context, data *types.Export, mode engine.ImportMode) (*engine.BulkResult, error)
	Stats(ctx context.Context) (*types.Stats, error)
	CleanupExpired(ctx context.Context) (int, error)
	HasEmbedder() bool
}

// Server implements the Model Context Protocol for the Factum memory store.
type Server struct {
	engine    memoryEngine
	logger    *log.Logger
	sessionID string
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an MCP server over the given engine.
func NewServer(eng memoryEngine, opts ...ServerOption) *Server {
	s := &Server{
		engine:    eng,
		logger:    log.New(os.Stderr).With("component", "mcp"),
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("session started", "session", s.sessionID)
	return s
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", nil)
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		// Notification; return an empty object so the frame stays valid.
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		// Native JSON-RPC dispatch for direct callers.
		var known bool
		result, known, err = s.dispatchTool(ctx, req.Method, req.Params)
		if !known {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
		}
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}
	return s.successResponse(req.ID, result)
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(_ context.Context, _ interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "factum",
			Version: "1.0.0",
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(_ context.Context) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request and wraps the result in
// the MCP content envelope. Tool-level failures become isError content, not
// protocol errors, so the client can show them to the model.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	result, known, err := s.dispatchTool(ctx, p.Name, p.Arguments)
	if !known {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}
	if err != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// dispatchTool routes a tool name to its handler. The second return value
// reports whether the name was recognised at all.
func (s *Server) dispatchTool(ctx context.Context, name string, params interface{}) (interface{}, bool, error) {
	var result interface{}
	var err error

	switch name {
	case "add_memory":
		result, err = s.handleAdd(ctx, params)
	case "get_memory":
		result, err = s.handleGet(ctx, params)
	case "list_memories":
		result, err = s.handleList(ctx, params)
	case "search_memories":
		result, err = s.handleSearch(ctx, params)
	case "smart_search_memories":
		result, err = s.handleSmartSearch(ctx, params)
	case "search_by_tags":
		result, err = s.handleSearchByTags(ctx, params)
	case "semantic_search":
		result, err = s.handleSemanticSearch(ctx, params)
	case "update_memory":
		result, err = s.handleUpdate(ctx, params)
	case "delete_memory":
		result, err = s.handleDelete(ctx, params)
	case "toggle_pin":
		result, err = s.handleTogglePin(ctx, params)
	case "add_memories_bulk":
		result, err = s.handleAddBulk(ctx, params)
	case "delete_memories_bulk":
		result, err = s.handleDeleteBulk(ctx, params)
	case "link_memories":
		result, err = s.handleLink(ctx, params)
	case "unlink_memories":
		result, err = s.handleUnlink(ctx, params)
	case "get_related":
		result, err = s.handleGetRelated(ctx, params)
	case "export_memories":
		result, err = s.handleExport(ctx)
	case "import_memories":
		result, err = s.handleImport(ctx, params)
	case "get_stats":
		result, err = s.handleStats(ctx)
	case "cleanup_expired":
		result, err = s.handleCleanup(ctx)
	default:
		return nil, false, nil
	}
	return result, true, err
}

func (s *Server) handleAdd(ctx context.Context, params interface{}) (interface{}, error) {
	var args AddMemoryArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if err := validateFact(args.Fact); err != nil {
		return nil, err
	}
	return s.engine.Add(ctx, args.Fact, engine.AddOptions{
		Tags:     args.Tags,
		Pinned:   args.Pinned,
		TTLHours: args.TTLHours,
	})
}

func (s *Server) handleGet(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetMemoryArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	m, err := s.engine.Get(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &GetMemoryResult{Memory: m, Found: m != nil}, nil
}

func (s *Server) handleList(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListMemoriesArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	memories, err := s.engine.GetAll(ctx, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}
	return &ListMemoriesResult{Memories: memories, Count: len(memories)}, nil
}

func (s *Server) handleSearch(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	memories, err := s.engine.Search(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	if memories == nil {
		memories = []*types.Memory{}
	}
	return &SearchResult{Memories: memories, Count: len(memories)}, nil
}

func (s *Server) handleSmartSearch(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	scored, err := s.engine.SmartSearch(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	return scoredResult(scored), nil
}

func (s *Server) handleSearchByTags(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchByTagsArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if len(args.Tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	memories, err := s.engine.SearchByTags(ctx, args.Tags)
	if err != nil {
		return nil, err
	}
	if memories == nil {
		memories = []*types.Memory{}
	}
	return &SearchResult{Memories: memories, Count: len(memories)}, nil
}

func (s *Server) handleSemanticSearch(ctx context.Context, params interface{}) (interface{}, error) {
	var args SemanticSearchArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if !s.engine.HasEmbedder() {
		return nil, fmt.Errorf("semantic search is unavailable: no embedding provider configured")
	}
	scored, err := s.engine.SemanticSearchText(ctx, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}
	return scoredResult(scored), nil
}

func (s *Server) handleUpdate(ctx context.Context, params interface{}) (interface{}, error) {
	var args UpdateMemoryArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if args.Fact != nil {
		if err := validateFact(*args.Fact); err != nil {
			return nil, err
		}
	}
	return s.engine.Update(ctx, args.ID, engine.UpdateRequest{
		Fact:     args.Fact,
		Tags:     args.Tags,
		Pinned:   args.Pinned,
		TTLHours: args.TTLHours,
	})
}

func (s *Server) handleDelete(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteMemoryArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	deleted, err := s.engine.Delete(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteMemoryResult{Deleted: deleted, ID: args.ID}, nil
}

func (s *Server) handleTogglePin(ctx context.Context, params interface{}) (interface{}, error) {
	var args TogglePinArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	return s.engine.TogglePin(ctx, args.ID)
}

func (s *Server) handleAddBulk(ctx context.Context, params interface{}) (interface{}, error) {
	var args AddBulkArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	items := make([]engine.AddBulkItem, 0, len(args.Items))
	for _, item := range args.Items {
		items = append(items, engine.AddBulkItem{
			Fact:     item.Fact,
			Tags:     item.Tags,
			Pinned:   item.Pinned,
			TTLHours: item.TTLHours,
		})
	}
	res, err := s.engine.AddBulk(ctx, items)
	if err != nil {
		return nil, err
	}
	return bulkResult(res), nil
}

func (s *Server) handleDeleteBulk(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteBulkArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	res, err := s.engine.DeleteBulk(ctx, args.IDs)
	if err != nil {
		return nil, err
	}
	return bulkResult(res), nil
}

func (s *Server) handleLink(ctx context.Context, params interface{}) (interface{}, error) {
	var args LinkArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.SourceID == "" || args.TargetID == "" {
		return nil, fmt.Errorf("sourceId and targetId are required")
	}
	if err := s.engine.Link(ctx, args.SourceID, args.TargetID); err != nil {
		return nil, err
	}
	return &LinkResult{SourceID: args.SourceID, TargetID: args.TargetID, Linked: true}, nil
}

func (s *Server) handleUnlink(ctx context.Context, params interface{}) (interface{}, error) {
	var args LinkArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.SourceID == "" || args.TargetID == "" {
		return nil, fmt.Errorf("sourceId and targetId are required")
	}
	if err := s.engine.Unlink(ctx, args.SourceID, args.TargetID); err != nil {
		return nil, err
	}
	return &LinkResult{SourceID: args.SourceID, TargetID: args.TargetID, Linked: false}, nil
}

func (s *Server) handleGetRelated(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetRelatedArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	memories, err := s.engine.GetRelated(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	if memories == nil {
		memories = []*types.Memory{}
	}
	return &GetRelatedResult{Memories: memories, Count: len(memories)}, nil
}

func (s *Server) handleExport(ctx context.Context) (interface{}, error) {
	return s.engine.ExportAll(ctx)
}

func (s *Server) handleImport(ctx context.Context, params interface{}) (interface{}, error) {
	var args ImportArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.Data == nil {
		return nil, fmt.Errorf("data is required")
	}
	mode := engine.ImportMode(args.Mode)
	if args.Mode == "" {
		mode = engine.ImportMerge
	}
	res, err := s.engine.ImportAll(ctx, args.Data, mode)
	if err != nil {
		return nil, err
	}
	return bulkResult(res), nil
}

func (s *Server) handleStats(ctx context.Context) (interface{}, error) {
	return s.engine.Stats(ctx)
}

func (s *Server) handleCleanup(ctx context.Context) (interface{}, error) {
	removed, err := s.engine.CleanupExpired(ctx)
	if err != nil {
		return nil, err
	}
	return &CleanupResult{Removed: removed}, nil
}

func validateFact(fact string) error {
	if strings.TrimSpace(fact) == "" {
		return fmt.Errorf("fact is required")
	}
	if len(fact) > MaxFactLength {
		return fmt.Errorf("fact exceeds maximum length of %d characters", MaxFactLength)
	}
	return nil
}

func scoredResult(scored []engine.ScoredMemory) *ScoredSearchResult {
	matches := make([]ScoredMatch, 0, len(scored))
	for _, sm := range scored {
		matches = append(matches, ScoredMatch{Memory: sm.Memory, Score: sm.Score})
	}
	return &ScoredSearchResult{Matches: matches, Count: len(matches)}
}

func bulkResult(res *engine.BulkResult) *BulkResult {
	return &BulkResult{
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Errors:    res.Errors,
		IDs:       res.IDs,
	}
}

// unmarshalParams converts loosely-typed params into a concrete args struct
// by round-tripping through JSON.
func unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	})
}
