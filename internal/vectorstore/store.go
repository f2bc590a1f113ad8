// Package vectorstore persists embedding chunks and file records in a
// key-value backend, namespaced per workspace so multiple codebases can share
// one database.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jskelly/semdex/internal/kv"
	"github.com/jskelly/semdex/pkg/types"
)

// ErrNotFound is returned when a requested chunk or file record does not
// exist.
var ErrNotFound = errors.New("record not found")

// Store reads and writes chunk and file records for a single workspace.
// Keys follow the layout
//
//	codebase:<workspace-id>:file:<file-id>   -> JSON types.IndexedFile
//	codebase:<workspace-id>:chunk:<chunk-id> -> JSON types.EmbeddingChunk
//
// where workspace-id and file-id are truncated SHA-256 digests of the
// workspace root and the relative file path.
type Store struct {
	backend kv.Store
	prefix  string
}

// New creates a Store for the given workspace root on top of backend
func New(backend kv.Store, workspace string) *Store {
	return &Store{
		backend: backend,
		prefix:  "codebase:" + workspaceID(workspace),
	}
}

func workspaceID(workspace string) string {
	sum := sha256.Sum256([]byte(workspace))
	return hex.EncodeToString(sum[:6])
}

func fileID(filePath string) string {
	sum := sha256.Sum256([]byte(filePath))
	return hex.EncodeToString(sum[:8])
}

func (s *Store) fileKey(filePath string) string {
	return fmt.Sprintf("%s:file:%s", s.prefix, fileID(filePath))
}

func (s *Store) chunkKey(chunkID string) string {
	return fmt.Sprintf("%s:chunk:%s", s.prefix, chunkID)
}

// PutChunks stores embedding chunks, replacing any existing records with the
// same chunk ID
func (s *Store) PutChunks(ctx context.Context, chunks []types.EmbeddingChunk) error {
	for i := range chunks {
		data, err := json.Marshal(&chunks[i])
		if err != nil {
			return fmt.Errorf("%w: marshal chunk %s: %v", types.ErrStore, chunks[i].ChunkID, err)
		}
		if err := s.backend.Set(ctx, s.chunkKey(chunks[i].ChunkID), data); err != nil {
			return fmt.Errorf("%w: put chunk %s: %v", types.ErrStore, chunks[i].ChunkID, err)
		}
	}
	return nil
}

// GetChunk retrieves a single chunk by ID
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*types.EmbeddingChunk, error) {
	data, err := s.backend.Get(ctx, s.chunkKey(chunkID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get chunk %s: %v", types.ErrStore, chunkID, err)
	}

	var chunk types.EmbeddingChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("%w: decode chunk %s: %v", types.ErrStore, chunkID, err)
	}
	return &chunk, nil
}

// DeleteChunks removes chunks by ID. Missing IDs are ignored.
func (s *Store) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	keys := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		keys[i] = s.chunkKey(id)
	}
	if _, err := s.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", types.ErrStore, err)
	}
	return nil
}

// AllChunks returns every chunk in the workspace namespace
func (s *Store) AllChunks(ctx context.Context) ([]types.EmbeddingChunk, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":chunk:*")
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", types.ErrStore, err)
	}

	chunks := make([]types.EmbeddingChunk, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			// Deleted between Keys and Get; skip
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", types.ErrStore, key, err)
		}
		var chunk types.EmbeddingChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", types.ErrStore, key, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// PutFile stores the index record for a file
func (s *Store) PutFile(ctx context.Context, file *types.IndexedFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("%w: marshal file %s: %v", types.ErrStore, file.FilePath, err)
	}
	if err := s.backend.Set(ctx, s.fileKey(file.FilePath), data); err != nil {
		return fmt.Errorf("%w: put file %s: %v", types.ErrStore, file.FilePath, err)
	}
	return nil
}

// GetFile retrieves the index record for a file path
func (s *Store) GetFile(ctx context.Context, filePath string) (*types.IndexedFile, error) {
	data, err := s.backend.Get(ctx, s.fileKey(filePath))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get file %s: %v", types.ErrStore, filePath, err)
	}

	var file types.IndexedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode file %s: %v", types.ErrStore, filePath, err)
	}
	return &file, nil
}

// DeleteFile removes a file record. Missing records are not an error.
func (s *Store) DeleteFile(ctx context.Context, filePath string) error {
	if _, err := s.backend.Delete(ctx, s.fileKey(filePath)); err != nil {
		return fmt.Errorf("%w: delete file %s: %v", types.ErrStore, filePath, err)
	}
	return nil
}

// ListFiles returns the index records of every indexed file
func (s *Store) ListFiles(ctx context.Context) ([]types.IndexedFile, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":file:*")
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", types.ErrStore, err)
	}

	files := make([]types.IndexedFile, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", types.ErrStore, key, err)
		}
		var file types.IndexedFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", types.ErrStore, key, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// CountFiles returns the number of indexed files
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":file:*")
	if err != nil {
		return 0, fmt.Errorf("%w: count files: %v", types.ErrStore, err)
	}
	return len(keys), nil
}

// CountChunks returns the number of stored chunks
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":chunk:*")
	if err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", types.ErrStore, err)
	}
	return len(keys), nil
}

// Dimension reports the embedding dimension of stored chunks, or 0 for an
// empty store
func (s *Store) Dimension(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":chunk:*")
	if err != nil {
		return 0, fmt.Errorf("%w: list chunks: %v", types.ErrStore, err)
	}

	for _, key := range keys {
		data, err := s.backend.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: get %s: %v", types.ErrStore, key, err)
		}
		var chunk types.EmbeddingChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return 0, fmt.Errorf("%w: decode %s: %v", types.ErrStore, key, err)
		}
		return len(chunk.Embedding), nil
	}
	return 0, nil
}

// Clear removes every record in the workspace namespace
func (s *Store) Clear(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":*")
	if err != nil {
		return 0, fmt.Errorf("%w: list namespace: %v", types.ErrStore, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.backend.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("%w: clear namespace: %v", types.ErrStore, err)
	}
	return removed, nil
}
