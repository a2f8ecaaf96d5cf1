// Package metadata persists the per-run JSON sidecar: process id, creation
// time, mutable context, and the optional artifact base path. Context lives
// here rather than in the log so payload merges never bloat the append-only
// audit rows.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/filelock"
	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
)

var metaLog = logger.New("metadata:store")

// ErrNotFound is returned when a run has no metadata file. It is distinct
// from InvalidError so callers can tell absence from corruption.
var ErrNotFound = errors.New("run metadata not found")

// InvalidError reports a metadata file whose shape is broken.
type InvalidError struct {
	RunID  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid metadata for %s: %s", e.RunID, e.Reason)
}

// RunMetadata is the sidecar document. CreatedAt is an ISO-8601 string.
type RunMetadata struct {
	RunID            string         `json:"run_id"`
	ProcessID        string         `json:"process_id"`
	CreatedAt        string         `json:"created_at"`
	Context          map[string]any `json:"context"`
	ArtifactBasePath string         `json:"artifact_base_path,omitempty"`
}

// New builds a metadata document with the context defaulted to an empty map.
func New(runID, processID string, createdAt time.Time, context map[string]any) *RunMetadata {
	if context == nil {
		context = map[string]any{}
	}
	return &RunMetadata{
		RunID:     runID,
		ProcessID: processID,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		Context:   context,
	}
}

// validateShape enforces the documented sidecar shape.
func (m *RunMetadata) validateShape() string {
	switch {
	case !runid.IsValid(m.RunID):
		return fmt.Sprintf("run_id %q does not match the run-id grammar", m.RunID)
	case m.ProcessID == "":
		return "process_id is empty"
	case m.CreatedAt == "":
		return "created_at is empty"
	case m.Context == nil:
		return "context is missing"
	}
	return ""
}

// Store reads and writes metadata sidecars under one directory.
type Store struct {
	dir   string
	locks *filelock.Manager
}

// NewStore creates a store rooted at dir, sharing locks with the other
// stores that touch the same runs.
func NewStore(dir string, locks *filelock.Manager) *Store {
	return &Store{dir: dir, locks: locks}
}

func (s *Store) metadataPath(runID string) string {
	return filepath.Join(s.dir, runID+constants.MetadataExtension)
}

// Save writes the whole document under the metadata file's lock.
func (s *Store) Save(m *RunMetadata) error {
	if reason := m.validateShape(); reason != "" {
		return &InvalidError{RunID: m.RunID, Reason: reason}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %w", m.RunID, err)
	}
	data = append(data, '\n')

	path := s.metadataPath(m.RunID)
	return s.locks.WithLock(path, func() error {
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write metadata for %s: %w", m.RunID, err)
		}
		metaLog.Printf("saved metadata: run=%s, process=%s", m.RunID, m.ProcessID)
		return nil
	})
}

// Load reads and shape-checks one run's metadata. A missing file returns
// ErrNotFound; a present-but-broken file returns *InvalidError.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", runID, err)
	}

	var m RunMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &InvalidError{RunID: runID, Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if reason := m.validateShape(); reason != "" {
		return nil, &InvalidError{RunID: runID, Reason: reason}
	}
	return &m, nil
}

// Exists reports whether the run has a metadata file.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.metadataPath(runID))
	return err == nil
}

// ListAll loads every readable metadata document in the directory, skipping
// files that are not named after a valid run id.
func (s *Store) ListAll() ([]*RunMetadata, error) {
	pattern := filepath.Join(s.dir, runid.Prefix+"*"+constants.MetadataExtension)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}

	var all []*RunMetadata
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), constants.MetadataExtension)
		if !runid.IsValid(id) {
			continue
		}
		m, err := s.Load(id)
		if err != nil {
			metaLog.Printf("skipping unreadable metadata %s: %v", path, err)
			continue
		}
		all = append(all, m)
	}
	return all, nil
}

// Delete removes a run's metadata file. Deleting a missing file is not an
// error.
func (s *Store) Delete(runID string) error {
	path := s.metadataPath(runID)
	return s.locks.WithLock(path, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete metadata for %s: %w", runID, err)
		}
		return nil
	})
}
