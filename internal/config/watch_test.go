package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsReloadedConfigOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drift_zscore_threshold: 3.0\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, errs := w.Watch(ctx)

	require.NoError(t, os.WriteFile(path, []byte("drift_zscore_threshold: 4.0\n"), 0o644))

	select {
	case cfg := <-changes:
		require.Equal(t, 4.0, cfg.DriftZScoreThreshold)
	case err := <-errs:
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drift_zscore_threshold: 3.0\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, errs := w.Watch(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload from unrelated file write: %+v", cfg)
	case err := <-errs:
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(300 * time.Millisecond):
		// expected: no event for the unrelated file
	}
}
