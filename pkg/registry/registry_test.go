package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

const pingDefinition = `
id: ping
version: "1"
initial_state: idle
states:
  - name: idle
  - name: done
    is_final: true
events:
  - name: go
    allowed_roles: ["*"]
transitions:
  - from: idle
    event: go
    to: done
`

func writeDefinition(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestGetOrLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	r := New(dir)
	p, err := r.GetOrLoad("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", p.ID)

	// Now cached: Get works without I/O.
	cached, ok := r.Get("ping")
	require.True(t, ok)
	assert.Same(t, p, cached)
}

func TestGetOrLoadYMLFallback(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yml", pingDefinition)

	r := New(dir)
	_, err := r.GetOrLoad("ping")
	require.NoError(t, err)
}

func TestGetOrLoadMissing(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.GetOrLoad("ghost")
	require.ErrorIs(t, err, ErrProcessNotFound)
}

func TestInvalidDefinitionReadsAsNotFound(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "bad.yaml", "id: bad\nthis is not a process")

	r := New(dir)
	_, err := r.GetOrLoad("bad")
	require.ErrorIs(t, err, ErrProcessNotFound)

	// Invalid definitions are never cached.
	_, ok := r.Get("bad")
	assert.False(t, ok)
}

func TestMemoizationSurvivesFileDeletion(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	r := New(dir)
	_, err := r.GetOrLoad("ping")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "ping.yaml")))

	// Still served from cache.
	_, err = r.GetOrLoad("ping")
	require.NoError(t, err)
}

func TestConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	r := New(dir)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.GetOrLoad("ping")
			assert.NoError(t, err)
			assert.Equal(t, "ping", p.ID)
		}()
	}
	wg.Wait()
}

func TestInstallAndInvalidate(t *testing.T) {
	r := New(t.TempDir())
	r.Install(&process.Process{ID: "manual"})

	_, ok := r.Get("manual")
	require.True(t, ok)

	r.Invalidate("manual")
	_, ok = r.Get("manual")
	assert.False(t, ok)
}

func TestListIDs(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.yaml", pingDefinition)
	writeDefinition(t, dir, "b.yml", pingDefinition)
	writeDefinition(t, dir, "notes.txt", "x")

	r := New(dir)
	ids, err := r.ListIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestWatchInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	r := New(dir)
	_, err := r.GetOrLoad("ping")
	require.NoError(t, err)

	require.NoError(t, r.Watch())
	defer func() { require.NoError(t, r.Close()) }()

	writeDefinition(t, dir, "ping.yaml", pingDefinition+"    guard: \"\"\n")

	require.Eventually(t, func() bool {
		_, cached := r.Get("ping")
		return !cached
	}, 2*time.Second, 10*time.Millisecond, "cache entry should be invalidated after the file changes")
}

func TestIDMismatchReadsAsNotFound(t *testing.T) {
	dir := t.TempDir()
	// File named other.yaml but declares id ping.
	writeDefinition(t, dir, "other.yaml", pingDefinition)

	r := New(dir)
	_, err := r.GetOrLoad("other")
	require.ErrorIs(t, err, ErrProcessNotFound)
}
