package mcp

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"ragchat/internal/config"
	"ragchat/internal/corpus"
	"ragchat/internal/tokenizer"
)

const (
	// ServerName is the MCP server name
	ServerName = "ragchat"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes the retrieval engine over MCP stdio. Tool handlers run on
// the protocol loop, which serializes all access to the index.
type Server struct {
	mcp     *server.MCPServer
	cfg     *config.Config
	index   *corpus.Index
	watcher *corpus.Watcher
	tok     *tokenizer.Heuristic
}

// NewServer creates an MCP server around an already constructed index. The
// watcher is optional.
func NewServer(cfg *config.Config, index *corpus.Index, watcher *corpus.Watcher) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		cfg:     cfg,
		index:   index,
		watcher: watcher,
		tok:     tokenizer.NewHeuristic(0),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(loadCorpusTool(), s.handleLoadCorpus)
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(corpusStatsTool(), s.handleCorpusStats)
}

// reloadIfDirty rebuilds the index when the watcher reports corpus changes
// since the last load.
func (s *Server) reloadIfDirty(ctx context.Context) {
	if s.watcher == nil || !s.watcher.Dirty() {
		return
	}
	log.Printf("corpus changed on disk, reloading index")
	s.watcher.Reset()
	if !s.index.Load(ctx, false) {
		log.Printf("corpus reload failed, retrieval degraded")
	}
}
