package runlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/filelock"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
)

var storeLog = logger.New("runlog:store")

// ErrRunExists is returned by CreateRun when the log file already exists.
var ErrRunExists = errors.New("run log already exists")

// ErrRunNotFound is returned when a run's log file is absent.
var ErrRunNotFound = errors.New("run log not found")

// AppendResult reports the outcome of a revision-checked append.
type AppendResult struct {
	Conflict        bool
	CurrentRevision int
}

// Store maps runs to CSV log files under one directory and provides the
// atomic append primitive the engine commits through.
type Store struct {
	dir   string
	locks *filelock.Manager
}

// NewStore creates a store rooted at dir. Locks must be shared with every
// other writer of the same files.
func NewStore(dir string, locks *filelock.Manager) *Store {
	return &Store{dir: dir, locks: locks}
}

func (s *Store) logPath(runID string) string {
	return filepath.Join(s.dir, runID+constants.RunLogExtension)
}

// CreateRun writes header plus init entry in a single write, failing if the
// run already exists.
func (s *Store) CreateRun(runID string, init Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create runs dir: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(constants.LogColumns); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if err := w.Write(encodeRecord(init)); err != nil {
		return fmt.Errorf("failed to encode init entry: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode init entry: %w", err)
	}

	path := s.logPath(runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrRunExists, runID)
		}
		return fmt.Errorf("failed to create run log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write run log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log %s: %w", path, err)
	}
	storeLog.Printf("created run log: run=%s, state=%s", runID, init.State)
	return nil
}

// AppendEntry appends one encoded row, failing if the log is absent. It
// performs no revision check; use AppendWithRevisionCheck to commit events.
func (s *Store) AppendEntry(runID string, entry Entry) error {
	path := s.logPath(runID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("failed to stat run log %s: %w", path, err)
	}
	return s.appendRow(path, entry)
}

func (s *Store) appendRow(path string, entry Entry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(encodeRecord(entry)); err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log %s for append: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to run log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log %s: %w", path, err)
	}
	return nil
}

// AppendWithRevisionCheck is the commit primitive. Under the run's
// exclusive lock it re-reads the latest row; a revision mismatch returns a
// conflict without writing, anything else appends. The re-read inside the
// lock is what closes the TOCTOU window between check and write.
func (s *Store) AppendWithRevisionCheck(runID string, entry Entry, expectedRevision int) (AppendResult, error) {
	path := s.logPath(runID)
	var result AppendResult

	err := s.locks.WithLock(path, func() error {
		latest, err := s.GetLatestEntry(runID)
		if err != nil {
			return err
		}
		if latest.Revision != expectedRevision {
			storeLog.Printf("revision conflict: run=%s, expected=%d, current=%d", runID, expectedRevision, latest.Revision)
			result = AppendResult{Conflict: true, CurrentRevision: latest.Revision}
			return nil
		}
		return s.appendRow(path, entry)
	})
	if err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// ReadEntries streams all parsed entries in file order.
func (s *Store) ReadEntries(runID string) ([]Entry, error) {
	path := s.logPath(runID)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(constants.LogColumns)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read run log header %s: %w", path, err)
	}
	if header[0] != constants.LogColumns[0] {
		return nil, fmt.Errorf("run log %s has unexpected header %v", path, header)
	}

	var entries []Entry
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse run log %s: %w", path, err)
		}
		entry, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run log %s: %w", path, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetLatestEntry returns the last row of the run's log.
func (s *Store) GetLatestEntry(runID string) (*Entry, error) {
	entries, err := s.ReadEntries(runID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s has no entries", ErrRunNotFound, runID)
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

// GetEntryByIdempotencyKey returns the row carrying the key, or nil when no
// row does.
func (s *Store) GetEntryByIdempotencyKey(runID, key string) (*Entry, error) {
	entries, err := s.ReadEntries(runID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].IdempotencyKey == key {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// Exists reports whether the run's log file is on disk.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.logPath(runID))
	return err == nil
}

// ListRunIDs enumerates run ids from log files in the store directory,
// skipping files whose stem is not a well-formed run id.
func (s *Store) ListRunIDs() ([]string, error) {
	pattern := filepath.Join(s.dir, runid.Prefix+"*"+constants.RunLogExtension)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}

	var ids []string
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), constants.RunLogExtension)
		if runid.IsValid(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
