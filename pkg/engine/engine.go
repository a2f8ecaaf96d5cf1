// Package engine is the state-gate facade: it composes the registry, the
// run-log store, and the metadata store into the five operations every
// transport exposes. All gating decisions live here; the CLI, the MCP
// server, and the hook adapter only translate requests and errors.
package engine

import (
	"errors"
	"time"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/filelock"
	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/metadata"
	"github.com/CAPHTECH/state-gate-sub000/pkg/registry"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runlog"
)

var engineLog = logger.New("engine:engine")

// Engine wires the stores for one gate directory. It is safe for
// concurrent use; cross-process safety comes from the shared lock manager
// underneath the stores.
type Engine struct {
	root     string
	registry *registry.Registry
	logs     *runlog.Store
	meta     *metadata.Store
	now      func() time.Time
}

// New builds an engine rooted at the directory containing (or about to
// contain) the gate dir.
func New(root string) *Engine {
	locks := filelock.NewManager(filelock.Options{})
	return &Engine{
		root:     root,
		registry: registry.New(constants.GetProcessesDir(root)),
		logs:     runlog.NewStore(constants.GetRunsDir(root), locks),
		meta:     metadata.NewStore(constants.GetMetadataDir(root), locks),
		now:      time.Now,
	}
}

// WatchDefinitions makes the engine pick up edited process definitions:
// cached entries are invalidated when their files change. Meant for
// long-running servers; one-shot commands reload from disk anyway.
func (e *Engine) WatchDefinitions() error {
	return e.registry.Watch()
}

// Close stops the definition watcher, if one is running.
func (e *Engine) Close() error {
	return e.registry.Close()
}

// CreateRun instantiates a run of the named process. The effective initial
// context is the process's initial_context overlaid with the caller's
// entries, caller winning per key. The log row is written before the
// metadata sidecar so a run can never be observed without its source of
// truth.
func (e *Engine) CreateRun(processID string, initialContext map[string]any) (*CreateRunResult, error) {
	if processID == "" {
		return nil, NewError(CodeInvalidInput, "process_id is required")
	}

	p, err := e.registry.GetOrLoad(processID)
	if err != nil {
		if errors.Is(err, registry.ErrProcessNotFound) {
			return nil, NewError(CodeProcessNotFound, "process not found: %s", processID)
		}
		return nil, NewError(CodeInternal, "failed to load process %s: %v", processID, err)
	}

	runID, err := runid.New()
	if err != nil {
		return nil, NewError(CodeInternal, "%v", err)
	}

	context := map[string]any{}
	for k, v := range p.InitialContext {
		context[k] = v
	}
	for k, v := range initialContext {
		context[k] = v
	}

	createdAt := e.now().UTC()
	init := runlog.NewInitEntry(runID, p.InitialState, createdAt)
	if err := e.logs.CreateRun(runID, init); err != nil {
		return nil, NewError(CodeInternal, "failed to create run log: %v", err)
	}

	m := metadata.New(runID, p.ID, createdAt, context)
	m.ArtifactBasePath = constants.GetArtifactsDir(e.root, runID)
	if err := fileutil.EnsureDir(m.ArtifactBasePath); err != nil {
		return nil, NewError(CodeInternal, "failed to create artifact dir: %v", err)
	}
	if err := e.meta.Save(m); err != nil {
		return nil, NewError(CodeInternal, "failed to save run metadata: %v", err)
	}

	engineLog.Printf("created run: run=%s, process=%s, state=%s", runID, p.ID, p.InitialState)
	return &CreateRunResult{
		RunID:        runID,
		ProcessID:    p.ID,
		InitialState: p.InitialState,
		Revision:     init.Revision,
		Context:      context,
		CreatedAt:    createdAt,
	}, nil
}

// loadRun resolves the metadata, process, and latest log entry of a run,
// mapping store errors to the engine taxonomy.
func (e *Engine) loadRun(runID string) (*metadata.RunMetadata, *runlog.Entry, error) {
	if err := runid.Validate(runID); err != nil {
		return nil, nil, NewError(CodeInvalidInput, "%v", err)
	}

	m, err := e.meta.Load(runID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, nil, NewError(CodeRunNotFound, "run not found: %s", runID)
		}
		return nil, nil, NewError(CodeInternal, "failed to load run metadata: %v", err)
	}

	latest, err := e.logs.GetLatestEntry(runID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			return nil, nil, NewError(CodeRunNotFound, "run not found: %s", runID)
		}
		return nil, nil, NewError(CodeInternal, "failed to read run log: %v", err)
	}
	return m, latest, nil
}
