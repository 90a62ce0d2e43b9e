package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
	ErrorCodeLoadFailed    = -32002 // Corpus load failed
)

// handleLoadCorpus handles the load_corpus tool invocation.
func (s *Server) handleLoadCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	showProgress := getBoolDefault(args, "show_progress", false)

	if s.watcher != nil {
		s.watcher.Reset()
	}

	ok := s.index.Load(ctx, showProgress)
	if !ok {
		return nil, newMCPError(ErrorCodeLoadFailed, "corpus load failed", map[string]interface{}{
			"state": s.index.State().String(),
		})
	}

	stats := s.index.Stats()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"loaded":     stats.Loaded,
		"state":      s.index.State().String(),
		"num_chunks": stats.NumChunks,
		"num_files":  stats.NumFiles,
	})), nil
}

// handleRetrieveContext handles the retrieve_context tool invocation.
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxTokens := getIntDefault(args, "max_tokens", s.cfg.ContextBudget())
	if maxTokens < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_tokens must be positive", map[string]interface{}{
			"param": "max_tokens",
			"value": maxTokens,
		})
	}
	topK := getIntDefault(args, "top_k", s.cfg.Retrieval.TopK)

	s.reloadIfDirty(ctx)

	text, tokens := s.index.Retrieve(ctx, query, s.tok, maxTokens, topK)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"context":     text,
		"tokens_used": tokens,
		"loaded":      s.index.IsLoaded(),
	})), nil
}

// handleCorpusStats handles the corpus_stats tool invocation.
func (s *Server) handleCorpusStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.index.Stats()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"loaded":     stats.Loaded,
		"state":      s.index.State().String(),
		"num_chunks": stats.NumChunks,
		"num_files":  stats.NumFiles,
		"files":      stats.Files,
	})), nil
}

// newMCPError builds a protocol error; the framework handles encoding.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
