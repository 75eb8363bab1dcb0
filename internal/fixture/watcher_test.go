package fixture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestIsFixtureFile(t *testing.T) {
	for path, want := range map[string]bool{
		"fixtures/lists.json":       true,
		"fixtures/cards.YML":        true,
		"fixtures/movingCards.yaml": true,
		"fixtures/.env":             true,
		"fixtures/lists.json.swp":   false,
		"fixtures/notes.txt":        false,
	} {
		assert.Equal(t, want, IsFixtureFile(path), path)
	}
}

func TestWatcherBatchesChanges(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var batches [][]string
	w, err := NewWatcher(dir, 50*time.Millisecond, func(_ context.Context, paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	lists := filepath.Join(dir, "lists.json")
	require.NoError(t, os.WriteFile(lists, []byte(`{"lists":["To Do"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(lists, []byte(`{"lists":["To Do","Done"]}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{lists}, batches[0])
	mu.Unlock()

	stats := w.Stats()
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, lists, stats.LastEventPath)
}

func TestWatcherStartMissingDir(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), 0, nil, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
