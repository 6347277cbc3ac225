package mcp

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	num := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "number", "description": desc}
	}
	integer := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}
	boolean := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "boolean", "description": desc}
	}
	strArray := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": desc,
		}
	}

	tools := []MCPTool{
		{
			Name:        "add_memory",
			Description: "Store a new fact. Tags are lowercased; an optional TTL in hours makes the memory expire.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"fact"},
				"properties": map[string]interface{}{
					"fact":     str("The fact to remember (required, max 10000 characters)"),
					"tags":     strArray("Optional tags for categorization"),
					"pinned":   boolean("Pinned memories list before unpinned ones"),
					"ttlHours": num("Hours until the memory expires; omit for permanent"),
				},
			},
		},
		{
			Name:        "get_memory",
			Description: "Look up one memory by id. Expired memories read as not found.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": str("Memory id (required)"),
				},
			},
		},
		{
			Name:        "list_memories",
			Description: "List memories, pinned first then newest first, with pagination.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit":  integer("Max results (default 50, max 200)"),
					"offset": integer("Number of results to skip"),
				},
			},
		},
		{
			Name:        "search_memories",
			Description: "Case-insensitive substring search over fact text.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query": str("Search text (required)"),
				},
			},
		},
		{
			Name:        "smart_search_memories",
			Description: "Relevance-ranked lexical search: word and partial-word matching over facts and tags, best matches first.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query": str("Search text (required)"),
				},
			},
		},
		{
			Name:        "search_by_tags",
			Description: "Find memories carrying at least one of the given tags (up to 30 tags).",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"tags"},
				"properties": map[string]interface{}{
					"tags": strArray("Tags to match (any-of)"),
				},
			},
		},
		{
			Name:        "semantic_search",
			Description: "Vector similarity search over memory embeddings. Requires an embedding provider.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query": str("Natural-language query (required)"),
					"limit": integer("Max results (default 50)"),
				},
			},
		},
		{
			Name:        "update_memory",
			Description: "Partially update a memory. Omitted fields stay unchanged; ttlHours of 0 clears the expiry.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id":       str("Memory id (required)"),
					"fact":     str("New fact text"),
					"tags":     strArray("Replacement tag list"),
					"pinned":   boolean("New pinned state"),
					"ttlHours": num("New TTL in hours; 0 clears the expiry"),
				},
			},
		},
		{
			Name:        "delete_memory",
			Description: "Delete a memory by id. Reports whether anything was removed; unknown ids are not an error.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": str("Memory id (required)"),
				},
			},
		},
		{
			Name:        "toggle_pin",
			Description: "Flip a memory's pinned flag.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": str("Memory id (required)"),
				},
			},
		},
		{
			Name:        "add_memories_bulk",
			Description: "Store up to 20 facts in one call. Per-item failures are reported in the result, not raised as errors.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"items"},
				"properties": map[string]interface{}{
					"items": map[string]interface{}{
						"type":        "array",
						"description": "Facts to store (max 20 processed)",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []string{"fact"},
							"properties": map[string]interface{}{
								"fact":     str("The fact to remember"),
								"tags":     strArray("Optional tags"),
								"pinned":   boolean("Pin this memory"),
								"ttlHours": num("Hours until expiry"),
							},
						},
					},
				},
			},
		},
		{
			Name:        "delete_memories_bulk",
			Description: "Delete up to 20 memories by id. Missing ids are reported per item.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"ids"},
				"properties": map[string]interface{}{
					"ids": strArray("Memory ids to delete (max 20 processed)"),
				},
			},
		},
		{
			Name:        "link_memories",
			Description: "Create a symmetric relationship between two memories. Both must exist.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"sourceId", "targetId"},
				"properties": map[string]interface{}{
					"sourceId": str("First memory id (required)"),
					"targetId": str("Second memory id (required)"),
				},
			},
		},
		{
			Name:        "unlink_memories",
			Description: "Remove the relationship between two memories. Safe to call after one side has been deleted.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"sourceId", "targetId"},
				"properties": map[string]interface{}{
					"sourceId": str("First memory id (required)"),
					"targetId": str("Second memory id (required)"),
				},
			},
		},
		{
			Name:        "get_related",
			Description: "List the live memories related to the given one.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": str("Memory id (required)"),
				},
			},
		},
		{
			Name:        "export_memories",
			Description: "Export every live memory as a versioned envelope suitable for import_memories.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "import_memories",
			Description: "Import an export envelope. Merge mode skips existing ids; replace mode wipes the collection first.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"data"},
				"properties": map[string]interface{}{
					"data": map[string]interface{}{"type": "object", "description": "Envelope produced by export_memories"},
					"mode": str("Import mode: merge (default) or replace"),
				},
			},
		},
		{
			Name:        "get_stats",
			Description: "Collection statistics: count plus oldest and newest creation times.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "cleanup_expired",
			Description: "Permanently remove every expired memory and report how many were swept.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
	return tools
}
