package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// loadCorpusTool returns the tool definition for load_corpus
func loadCorpusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "load_corpus",
		Description: "Scan the document directory and (re)build the retrieval index, reusing cached embeddings for unchanged files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"show_progress": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, log per-file progress during loading",
					"default":     false,
				},
			},
		},
	}
}

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the document chunks most similar to a query, within a token budget",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query to match against the corpus",
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget for the returned context (defaults to the configured share of the prompt window)",
					"minimum":     1,
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of highest-similarity candidates to consider",
					"default":     10,
					"minimum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// corpusStatsTool returns the tool definition for corpus_stats
func corpusStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "corpus_stats",
		Description: "Report the state of the retrieval index: chunk and file counts and indexed filenames",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
