package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, rel)
}

func (r *recorder) onRemove(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, rel)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, workspace string, rec *recorder) *Watcher {
	t.Helper()
	w := New(workspace, []string{".go"}, []string{"node_modules"}, rec.onChange, rec.onRemove,
		WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReportsChanges(t *testing.T) {
	workspace := t.TempDir()
	rec := &recorder{}
	startWatcher(t, workspace, rec)

	require.NoError(t, os.WriteFile(filepath.Join(workspace, "main.go"), []byte("package main"), 0o644))

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})

	changed, _ := rec.snapshot()
	assert.Contains(t, changed, "main.go")
}

func TestWatcher_FiltersExtensions(t *testing.T) {
	workspace := t.TempDir()
	rec := &recorder{}
	startWatcher(t, workspace, rec)

	require.NoError(t, os.WriteFile(filepath.Join(workspace, "match.go"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "skip.png"), []byte("b"), 0o644))

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})

	// Give the unwanted event time to surface if it was going to
	time.Sleep(200 * time.Millisecond)

	changed, _ := rec.snapshot()
	assert.Contains(t, changed, "match.go")
	assert.NotContains(t, changed, "skip.png")
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	workspace := t.TempDir()
	path := filepath.Join(workspace, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package gone"), 0o644))

	rec := &recorder{}
	startWatcher(t, workspace, rec)

	require.NoError(t, os.Remove(path))

	waitFor(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) > 0
	})

	_, removed := rec.snapshot()
	assert.Contains(t, removed, "gone.go")
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	workspace := t.TempDir()
	rec := &recorder{}
	startWatcher(t, workspace, rec)

	path := filepath.Join(workspace, "busy.go")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package busy"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})
	time.Sleep(200 * time.Millisecond)

	changed, _ := rec.snapshot()
	count := 0
	for _, rel := range changed {
		if rel == "busy.go" {
			count++
		}
	}
	assert.LessOrEqual(t, count, 2, "rapid writes should coalesce")
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	workspace := t.TempDir()
	rec := &recorder{}
	startWatcher(t, workspace, rec)

	sub := filepath.Join(workspace, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// fsnotify needs a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "code.go"), []byte("package pkg"), 0o644))

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		for _, rel := range changed {
			if rel == "pkg/code.go" {
				return true
			}
		}
		return false
	})
}

func TestWatcher_IgnoresConfiguredDirs(t *testing.T) {
	workspace := t.TempDir()
	ignored := filepath.Join(workspace, "node_modules")
	require.NoError(t, os.Mkdir(ignored, 0o755))

	rec := &recorder{}
	startWatcher(t, workspace, rec)

	require.NoError(t, os.WriteFile(filepath.Join(ignored, "dep.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "real.go"), []byte("y"), 0o644))

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})
	time.Sleep(200 * time.Millisecond)

	changed, _ := rec.snapshot()
	assert.Contains(t, changed, "real.go")
	assert.NotContains(t, changed, "node_modules/dep.go")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	workspace := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, workspace, rec)

	w.Stop()
	w.Stop()
}
