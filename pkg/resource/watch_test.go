package resource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/resource"
)

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{"sub/a.md": ""})

	changed := make(chan struct{}, 16)
	w, err := resource.NewWatcher(func(context.Context) {
		changed <- struct{}{}
	}, resource.WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })

	require.NoError(t, w.Add(t.Context(), dir, filepath.Join(dir, "absent")))
	assert.Equal(t, 2, w.Dirs())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Writes in a burst are coalesced.
	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.md"), []byte{byte('a' + i)}, 0o600))
	}

	waitFor(t, changed)

	// New directories are watched as they appear.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "new"), 0o755))
	waitFor(t, changed)
	require.Eventually(t, func() bool { return w.Dirs() == 3 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new", "b.md"), []byte("b"), 0o600))
	waitFor(t, changed)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherSymlinkedRoot(t *testing.T) {
	t.Parallel()

	target := realDir(t)
	writeTree(t, target, map[string]string{"sub/a.md": ""})

	link := filepath.Join(realDir(t), "personas")
	require.NoError(t, os.Symlink(target, link))

	w, err := resource.NewWatcher(func(context.Context) {})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })

	require.NoError(t, w.Add(t.Context(), link))
	assert.Equal(t, 2, w.Dirs())
}

func TestWatcherRecreatedTree(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{"ir/malware/a.md": ""})

	changed := make(chan struct{}, 16)
	w, err := resource.NewWatcher(func(context.Context) {
		changed <- struct{}{}
	}, resource.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })

	require.NoError(t, w.Add(t.Context(), dir))
	require.Equal(t, 3, w.Dirs())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Moving a tree away forgets its sub-directories too.
	require.NoError(t, os.Rename(filepath.Join(dir, "ir"), filepath.Join(realDir(t), "ir")))
	require.Eventually(t, func() bool { return w.Dirs() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ir", "malware"), 0o755))
	require.Eventually(t, func() bool { return w.Dirs() == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
