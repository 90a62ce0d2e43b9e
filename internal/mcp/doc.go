// Package mcp exposes the retrieval engine to chat frontends as an MCP
// stdio server with load_corpus, retrieve_context, and corpus_stats tools.
package mcp
