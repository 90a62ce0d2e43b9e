package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/config"
	"ragchat/internal/corpus"
	"ragchat/internal/embedder"
	"ragchat/internal/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ragchat.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ragchat retrieval server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		os.Exit(0)
	}

	// Log to stderr; stdout is reserved for the MCP protocol.
	log.SetOutput(os.Stderr)
	log.Printf("ragchat v%s starting...", version)

	// .env is optional; real environment always wins.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	emb, err := embedder.New(embedder.Config{
		Backend:   cfg.Embedder.Backend,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey(),
		Model:     cfg.Embedder.Model,
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}
	defer func() { _ = emb.Close() }()
	log.Printf("embedding backend: %s (%s)", emb.Backend(), emb.Model())

	index := corpus.New(corpus.Config{
		Dir:          cfg.Corpus.Dir,
		Extensions:   cfg.Corpus.Extensions,
		Excluded:     cfg.Corpus.Excluded,
		MaxChars:     cfg.Corpus.MaxChars,
		OverlapChars: cfg.Corpus.OverlapChars,
		TopK:         cfg.Retrieval.TopK,
		FillRatio:    cfg.Retrieval.FillRatio,
	}, emb)

	if !index.Load(context.Background(), true) {
		// The engine keeps running; retrieval is a no-op until a
		// successful reload.
		log.Printf("initial corpus load failed, retrieval disabled")
	}

	var watcher *corpus.Watcher
	if cfg.Corpus.Watch {
		watcher, err = corpus.NewWatcher(cfg.Corpus.Dir, cfg.Corpus.Extensions, cfg.Corpus.Excluded)
		if err != nil {
			log.Printf("could not watch corpus directory: %v", err)
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	server := mcp.NewServer(cfg, index, watcher)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Printf("MCP server ready, listening on stdio...")
		return server.Serve(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("server stopped")
}
