package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchTargetsOnlyExisting(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})

	targets, err := b.watchTargets()
	require.NoError(t, err)
	assert.Equal(t, []string{b.rootPath("src"), b.rootPath("fonts"), b.rootPath("images")}, targets)
}

func TestWatchNothingToWatch(t *testing.T) {
	b := newTestBuilder(t, Options{Root: t.TempDir()})
	assert.Error(t, b.watch(context.Background()))
}

func TestWatchRebuildsOnChange(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.watch(ctx) }()

	time.Sleep(3 * watchPollInterval)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "styles", "global.css"), []byte("a{color:red}"), 0o644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(b.outPath("css", "styles.css"))
		return err == nil && strings.Contains(string(data), "color:red")
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchContinuesAfterFailedBuild(t *testing.T) {
	root := newProject(t)
	b := newTestBuilder(t, Options{Root: root})
	require.NoError(t, b.Run())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.watch(ctx) }()

	time.Sleep(3 * watchPollInterval)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.ts"), []byte("const = ;"), 0o644))
	time.Sleep(2 * rebuildInterval)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.ts"), []byte(`console.log("fixed")`), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(b.outPath("js", "main.js"))
		return err == nil && strings.Contains(string(data), "fixed")
	}, 10*time.Second, 50*time.Millisecond)
}
