package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jskelly/semdex/internal/config"
	"github.com/jskelly/semdex/internal/embedder"
	"github.com/jskelly/semdex/internal/indexer"
	"github.com/jskelly/semdex/internal/kv"
	"github.com/jskelly/semdex/internal/mcp"
	"github.com/jskelly/semdex/internal/vectorstore"
	"github.com/jskelly/semdex/internal/watcher"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to semdex.yaml (optional)")
		workspace   = flag.String("workspace", "", "workspace root to index (default: current directory)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("semdex MCP server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", kv.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", kv.DriverName)
		os.Exit(0)
	}

	// Log to stderr; stdout is reserved for the MCP protocol
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig(*configPath, *workspace)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("semdex starting",
		zap.String("version", version),
		zap.String("workspace", cfg.Workspace),
		zap.String("store", cfg.Store.Backend),
		zap.String("provider", cfg.Embedding.Provider))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = backend.Close() }()

	emb, err := newEmbedder(cfg)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer func() { _ = emb.Close() }()

	store := vectorstore.New(backend, cfg.Workspace)

	idx, err := indexer.New(cfg.Workspace, emb, store, indexer.Config{
		ChunkLines:   cfg.Indexing.ChunkLines,
		OverlapLines: cfg.Indexing.OverlapLines,
		Extensions:   cfg.Indexing.Extensions,
		IgnoreDirs:   cfg.Indexing.IgnoreDirs,
		MaxFileSize:  cfg.Indexing.MaxFileSize,
		Workers:      cfg.Indexing.Workers,
		BatchSize:    cfg.Embedding.BatchSize,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create indexer: %v", err)
	}

	if cfg.Watch.Enabled {
		w := startWatcher(ctx, cfg, idx, logger)
		defer w.Stop()
	}

	server := mcp.NewServer(idx, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	logger.Info("server stopped")
}

// loadConfig merges the config file, flags, and defaults.
func loadConfig(configPath, workspaceFlag string) (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default("")
	}

	if workspaceFlag != "" {
		cfg.Workspace = workspaceFlag
	}
	if cfg.Workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.Workspace = cwd
	}

	abs, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = abs

	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	// stdout carries the MCP protocol
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func openBackend(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendRedis:
		return kv.NewRedisStore(ctx, kv.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
		return kv.NewSQLiteStore(cfg.Store.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	if cfg.Embedding.Provider != "" {
		return embedder.New(embedder.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			CacheSize: cfg.Embedding.CacheSize,
		})
	}
	return embedder.NewFromEnv()
}

// startWatcher wires file events into single-file index updates.
func startWatcher(ctx context.Context, cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	extensions := cfg.Indexing.Extensions
	if len(extensions) == 0 {
		extensions = indexer.DefaultExtensions
	}
	ignoreDirs := cfg.Indexing.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = indexer.DefaultIgnoreDirs
	}

	onChange := func(relPath string) {
		if _, err := idx.UpdateFile(ctx, relPath); err != nil {
			logger.Warn("watch update failed", zap.String("path", relPath), zap.Error(err))
		}
	}
	onRemove := func(relPath string) {
		if _, err := idx.Remove(ctx, relPath); err != nil {
			logger.Warn("watch remove failed", zap.String("path", relPath), zap.Error(err))
		}
	}

	w := watcher.New(cfg.Workspace, extensions, ignoreDirs, onChange, onRemove,
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond))

	if err := w.Start(ctx); err != nil {
		logger.Warn("watcher failed to start", zap.Error(err))
	}
	return w
}
