// Package registry caches validated process definitions in memory and
// lazily loads them by id from the processes directory.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/parser"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

var registryLog = logger.New("registry:registry")

// ErrProcessNotFound covers both a missing definition file and one that
// failed to parse or validate: the registry never hands out (or caches) an
// invalid definition.
var ErrProcessNotFound = errors.New("process not found")

// Registry maps process ids to validated definitions. Loads are memoized
// for the registry's lifetime unless a watcher invalidates them.
type Registry struct {
	dir       string
	mu        sync.RWMutex
	processes map[string]*process.Process
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// New creates a registry loading from dir.
func New(dir string) *Registry {
	return &Registry{
		dir:       dir,
		processes: make(map[string]*process.Process),
	}
}

// Get returns a cached process without touching the filesystem.
func (r *Registry) Get(id string) (*process.Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[id]
	return p, ok
}

// Install places an externally validated process in the cache.
func (r *Registry) Install(p *process.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes[p.ID] = p
}

// GetOrLoad returns the cached process, or loads it by trying <id>.yaml
// then <id>.yml under the registry directory. A definition that fails to
// parse or validate reads as not found. Racing loaders may both parse the
// file; the last writer wins with an identical value.
func (r *Registry) GetOrLoad(id string) (*process.Process, error) {
	if p, ok := r.Get(id); ok {
		return p, nil
	}

	path, ok := r.definitionPath(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	p, err := parser.LoadProcessFile(path)
	if err != nil {
		registryLog.Printf("definition %s failed to load: %v", path, err)
		return nil, fmt.Errorf("%w: %s (definition at %s is invalid)", ErrProcessNotFound, id, path)
	}
	if p.ID != id {
		registryLog.Printf("definition %s declares id %q, expected %q", path, p.ID, id)
		return nil, fmt.Errorf("%w: %s (definition declares id %q)", ErrProcessNotFound, id, p.ID)
	}

	r.Install(p)
	registryLog.Printf("loaded process: id=%s, version=%s, states=%d", p.ID, p.Version, len(p.States))
	return p, nil
}

func (r *Registry) definitionPath(id string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(r.dir, id+ext)
		if fileutil.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// ListIDs enumerates the process ids that have definition files on disk,
// whether or not they are loadable.
func (r *Registry) ListIDs() ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	for _, ext := range []string{".yaml", ".yml"} {
		matches, err := filepath.Glob(filepath.Join(r.dir, "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("failed to list process definitions: %w", err)
		}
		for _, m := range matches {
			id := strings.TrimSuffix(filepath.Base(m), ext)
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Invalidate drops one process from the cache; the next GetOrLoad re-reads
// the definition file.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processes, id)
}

// Watch starts an fsnotify watcher on the processes directory that
// invalidates cached definitions when their files change. Call Close to
// stop it.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create definition watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", r.dir, err)
	}

	r.watcher = watcher
	r.watchDone = make(chan struct{})
	go r.watchLoop()
	registryLog.Printf("watching process definitions in %s", r.dir)
	return nil
}

func (r *Registry) watchLoop() {
	defer close(r.watchDone)
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id := strings.TrimSuffix(filepath.Base(event.Name), ext)
			registryLog.Printf("definition changed, invalidating: id=%s, op=%s", id, event.Op)
			r.Invalidate(id)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			registryLog.Printf("definition watcher error: %v", err)
		}
	}
}

// Close stops the watcher started by Watch. Safe to call when no watcher
// is running.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	<-r.watchDone
	r.watcher = nil
	return err
}
