package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jskelly/semdex/internal/chunker"
	"github.com/jskelly/semdex/internal/embedder"
	"github.com/jskelly/semdex/internal/vectorstore"
	"github.com/jskelly/semdex/pkg/types"
)

// ErrIndexInProgress is returned when a full index run is already active.
var ErrIndexInProgress = errors.New("indexing already in progress")

// DefaultMaxFileSize is the largest file the indexer will read.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// DefaultExtensions lists the file extensions indexed when none are
// configured.
var DefaultExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".h",
	".cpp", ".hpp", ".cs", ".rb", ".rs", ".php", ".swift", ".kt",
	".scala", ".sh", ".sql", ".md", ".yaml", ".yml", ".toml", ".json",
}

// DefaultIgnoreDirs lists directory names skipped during the workspace walk.
var DefaultIgnoreDirs = []string{
	".git", ".hg", ".svn", "node_modules", "vendor", "__pycache__",
	".venv", "venv", "dist", "build", "target", ".idea", ".vscode",
}

// Config contains configuration for the indexer
type Config struct {
	ChunkLines   int      // Lines per chunk (default: chunker.DefaultChunkLines)
	OverlapLines int      // Overlapping lines between chunks (default: chunker.DefaultOverlapLines)
	Extensions   []string // File extensions to index (default: DefaultExtensions)
	IgnoreDirs   []string // Directory names to skip (default: DefaultIgnoreDirs)
	MaxFileSize  int64    // Largest file to read in bytes (default: DefaultMaxFileSize)
	Workers      int      // Concurrent file workers (default: runtime.NumCPU())
	BatchSize    int      // Chunks per embedding batch (default: embedder.DefaultBatchSize)
}

func (c *Config) applyDefaults() {
	if c.ChunkLines == 0 {
		c.ChunkLines = chunker.DefaultChunkLines
	}
	if c.OverlapLines == 0 && c.ChunkLines == chunker.DefaultChunkLines {
		c.OverlapLines = chunker.DefaultOverlapLines
	}
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions
	}
	if c.IgnoreDirs == nil {
		c.IgnoreDirs = DefaultIgnoreDirs
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 || c.BatchSize > embedder.MaxBatchSize {
		c.BatchSize = embedder.DefaultBatchSize
	}
}

// FileError records a single file that failed during a workspace index run
type FileError struct {
	FilePath string `json:"file_path"`
	Err      string `json:"error"`
}

// Report summarizes a workspace index run
type Report struct {
	TotalFiles    int           `json:"total_files"`
	Indexed       int           `json:"indexed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	ChunksCreated int           `json:"chunks_created"`
	Duration      time.Duration `json:"duration"`
	Errors        []FileError   `json:"errors,omitempty"`
}

// Indexer coordinates the pipeline: walk -> chunk -> embed -> store. File
// paths handed to UpdateFile and Remove are relative to the workspace root.
type Indexer struct {
	workspace string
	chunker   *chunker.Chunker
	embedder  embedder.Embedder
	store     *vectorstore.Store
	cfg       Config
	logger    *zap.Logger

	indexLock IndexLock
	locks     *pathLocks

	extensions map[string]bool
	ignoreDirs map[string]bool
}

// New creates an Indexer rooted at workspace. A nil logger disables logging.
func New(workspace string, emb embedder.Embedder, store *vectorstore.Store, cfg Config, logger *zap.Logger) (*Indexer, error) {
	if workspace == "" {
		return nil, fmt.Errorf("%w: workspace path is required", types.ErrConfig)
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", types.ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", types.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.applyDefaults()

	ch, err := chunker.New(cfg.ChunkLines, cfg.OverlapLines)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		extensions[strings.ToLower(ext)] = true
	}
	ignoreDirs := make(map[string]bool, len(cfg.IgnoreDirs))
	for _, dir := range cfg.IgnoreDirs {
		ignoreDirs[dir] = true
	}

	return &Indexer{
		workspace:  workspace,
		chunker:    ch,
		embedder:   emb,
		store:      store,
		cfg:        cfg,
		logger:     logger,
		locks:      newPathLocks(),
		extensions: extensions,
		ignoreDirs: ignoreDirs,
	}, nil
}

// Workspace returns the workspace root path
func (idx *Indexer) Workspace() string {
	return idx.workspace
}

// Index walks the workspace and brings the stored index up to date with the
// files on disk. Unchanged files are skipped by content hash; files that
// disappeared since the last run are removed from the index. Only one Index
// run may be active at a time.
func (idx *Indexer) Index(ctx context.Context) (*Report, error) {
	if !idx.indexLock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.indexLock.Release()

	start := time.Now()

	files, err := idx.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: walk workspace: %v", types.ErrIO, err)
	}

	idx.logger.Info("indexing workspace",
		zap.String("workspace", idx.workspace),
		zap.Int("files", len(files)),
		zap.Int("workers", idx.cfg.Workers))

	var (
		indexed int32
		skipped int32
		failed  int32
		chunks  int32

		errMu    sync.Mutex
		fileErrs []FileError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := idx.UpdateFile(gctx, relPath)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				errMu.Lock()
				fileErrs = append(fileErrs, FileError{FilePath: relPath, Err: err.Error()})
				errMu.Unlock()
				idx.logger.Warn("file failed", zap.String("path", relPath), zap.Error(err))
				// One bad file must not abort the run
				return nil
			}

			if result.Skipped {
				atomic.AddInt32(&skipped, 1)
			} else {
				atomic.AddInt32(&indexed, 1)
				atomic.AddInt32(&chunks, int32(result.Chunks))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	removed, err := idx.removeVanished(ctx, files)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		idx.logger.Info("removed vanished files", zap.Int("count", removed))
	}

	sort.Slice(fileErrs, func(i, j int) bool { return fileErrs[i].FilePath < fileErrs[j].FilePath })

	report := &Report{
		TotalFiles:    len(files),
		Indexed:       int(indexed),
		Skipped:       int(skipped),
		Failed:        int(failed),
		ChunksCreated: int(chunks),
		Duration:      time.Since(start),
		Errors:        fileErrs,
	}

	idx.logger.Info("index run complete",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// UpdateResult describes the outcome of a single-file update
type UpdateResult struct {
	Skipped bool // true if the stored hash matched and nothing was written
	Removed bool // true if the file was gone and its records were deleted
	Chunks  int  // chunks written when not skipped or removed
}

// UpdateFile re-indexes one file. If the file no longer exists on disk its
// records are removed instead. The update is all or nothing: every chunk is
// embedded before the first store write, so a provider failure leaves the
// previous state intact.
func (idx *Indexer) UpdateFile(ctx context.Context, relPath string) (*UpdateResult, error) {
	release := idx.locks.acquire(relPath)
	defer release()

	absPath := filepath.Join(idx.workspace, relPath)

	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		removed, err := idx.removeLocked(ctx, relPath)
		if err != nil {
			return nil, err
		}
		return &UpdateResult{Removed: removed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", types.ErrIO, relPath, err)
	}
	if info.Size() > idx.cfg.MaxFileSize {
		return &UpdateResult{Skipped: true}, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrIO, relPath, err)
	}

	hash := types.HashContent(data)

	prev, err := idx.store.GetFile(ctx, relPath)
	if err != nil && !errors.Is(err, vectorstore.ErrNotFound) {
		return nil, err
	}
	if prev != nil && prev.ContentHash == hash {
		return &UpdateResult{Skipped: true}, nil
	}

	pieces := idx.chunker.Split(string(data))

	chunks := make([]types.EmbeddingChunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		chunks[i] = types.EmbeddingChunk{
			ChunkID:   types.ChunkID(relPath, i),
			FilePath:  relPath,
			Content:   piece.Content,
			LineStart: piece.LineStart,
			LineEnd:   piece.LineEnd,
		}
		texts[i] = piece.Content
	}

	// Embed everything up front; a failure here must not touch the store
	vectors, err := idx.embedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %s: %v", types.ErrProvider, relPath, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := idx.store.PutChunks(ctx, chunks); err != nil {
		return nil, err
	}

	// Drop chunk records from the previous version that no longer exist
	if prev != nil {
		newIDs := make(map[string]bool, len(chunks))
		for i := range chunks {
			newIDs[chunks[i].ChunkID] = true
		}
		var stale []string
		for _, id := range prev.ChunkIDs {
			if !newIDs[id] {
				stale = append(stale, id)
			}
		}
		if err := idx.store.DeleteChunks(ctx, stale); err != nil {
			return nil, err
		}
	}

	record := &types.IndexedFile{
		FilePath:    relPath,
		ContentHash: hash,
		ChunkIDs:    make([]string, len(chunks)),
		IndexedAt:   time.Now().UTC(),
	}
	for i := range chunks {
		record.ChunkIDs[i] = chunks[i].ChunkID
	}
	if err := idx.store.PutFile(ctx, record); err != nil {
		return nil, err
	}

	idx.logger.Debug("indexed file",
		zap.String("path", relPath),
		zap.Int("chunks", len(chunks)))

	return &UpdateResult{Chunks: len(chunks)}, nil
}

// Remove deletes every record for a file. Removing an unindexed file is a
// no-op and reports false.
func (idx *Indexer) Remove(ctx context.Context, relPath string) (bool, error) {
	release := idx.locks.acquire(relPath)
	defer release()

	return idx.removeLocked(ctx, relPath)
}

// removeLocked deletes a file's records. Caller holds the path lock.
func (idx *Indexer) removeLocked(ctx context.Context, relPath string) (bool, error) {
	record, err := idx.store.GetFile(ctx, relPath)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := idx.store.DeleteChunks(ctx, record.ChunkIDs); err != nil {
		return false, err
	}
	if err := idx.store.DeleteFile(ctx, relPath); err != nil {
		return false, err
	}

	idx.logger.Debug("removed file", zap.String("path", relPath))
	return true, nil
}

// Search embeds the query and ranks every stored chunk by cosine similarity.
// Results are ordered by descending score with ties broken by file path and
// start line so identical inputs always produce identical output. topK <= 0
// yields no results.
func (idx *Indexer) Search(ctx context.Context, query string, topK int) ([]types.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	chunks, err := idx.store.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		// Nothing to rank; skip the provider call
		return nil, nil
	}

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", types.ErrProvider, err)
	}

	results := make([]types.SearchResult, 0, len(chunks))
	for i := range chunks {
		results = append(results, types.SearchResult{
			FilePath:  chunks[i].FilePath,
			Content:   chunks[i].Content,
			Score:     cosineSimilarity(emb.Vector, chunks[i].Embedding),
			LineStart: chunks[i].LineStart,
			LineEnd:   chunks[i].LineEnd,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].LineStart < results[j].LineStart
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Stats reports the current size of the index
func (idx *Indexer) Stats(ctx context.Context) (*types.IndexStats, error) {
	nFiles, err := idx.store.CountFiles(ctx)
	if err != nil {
		return nil, err
	}
	nChunks, err := idx.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	dim, err := idx.store.Dimension(ctx)
	if err != nil {
		return nil, err
	}

	return &types.IndexStats{
		IndexedFiles: nFiles,
		TotalChunks:  nChunks,
		Dimension:    dim,
		Workspace:    idx.workspace,
	}, nil
}

// Files returns the stored records of all indexed files sorted by path
func (idx *Indexer) Files(ctx context.Context) ([]types.IndexedFile, error) {
	files, err := idx.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })
	return files, nil
}

// Clear deletes the entire index for this workspace and returns the number
// of records removed
func (idx *Indexer) Clear(ctx context.Context) (int, error) {
	removed, err := idx.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	idx.logger.Info("cleared index", zap.Int("records", removed))
	return removed, nil
}

// embedTexts returns one vector per text, in order. Providers with a batch
// endpoint are used batch-wise; others are called per text.
func (idx *Indexer) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	if batcher, ok := idx.embedder.(embedder.BatchEmbedder); ok {
		for start := 0; start < len(texts); start += idx.cfg.BatchSize {
			end := start + idx.cfg.BatchSize
			if end > len(texts) {
				end = len(texts)
			}
			resp, err := batcher.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) != end-start {
				return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Embeddings))
			}
			for _, emb := range resp.Embeddings {
				vectors = append(vectors, emb.Vector)
			}
		}
		return vectors, nil
	}

	for _, text := range texts {
		if text == "" {
			// Blank chunks still need a stable vector
			text = "\n"
		}
		emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, emb.Vector)
	}
	return vectors, nil
}

// discoverFiles walks the workspace and returns the relative paths of every
// indexable file, sorted for deterministic processing order.
func (idx *Indexer) discoverFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(idx.workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != idx.workspace && (idx.ignoreDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !idx.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(idx.workspace, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// removeVanished drops index records for files that were not seen in the
// current walk.
func (idx *Indexer) removeVanished(ctx context.Context, seen []string) (int, error) {
	seenSet := make(map[string]bool, len(seen))
	for _, path := range seen {
		seenSet[path] = true
	}

	records, err := idx.store.ListFiles(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range records {
		if seenSet[records[i].FilePath] {
			continue
		}
		ok, err := idx.Remove(ctx, records[i].FilePath)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
