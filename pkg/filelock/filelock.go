// Package filelock implements per-file advisory locking for single-host use.
//
// Two layers cooperate: an in-process mutex per path serializes goroutines,
// and a `<path>.lock` sentinel file created with O_EXCL excludes other
// processes. The sentinel records its owner and acquisition time; an
// acquirer that finds a sentinel older than the stale timeout may delete it
// and retry, so a crashed holder cannot wedge the gate forever.
//
// The lock makes no cross-host guarantee. Shared network filesystems are
// out of scope.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var lockLog = logger.New("filelock:manager")

// ErrLockContended is returned when the sentinel could not be acquired
// within the configured attempts.
var ErrLockContended = errors.New("lock contended: retries exhausted")

// Options tunes lock acquisition. The zero value selects the defaults from
// the constants package.
type Options struct {
	Attempts     int
	Interval     time.Duration
	StaleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = constants.LockRetryAttempts
	}
	if o.Interval <= 0 {
		o.Interval = constants.LockRetryInterval
	}
	if o.StaleTimeout <= 0 {
		o.StaleTimeout = constants.LockStaleTimeout
	}
	return o
}

// sentinel is the JSON body of a `.lock` file.
type sentinel struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager hands out per-path locks. All stores that mutate a given file
// must share one Manager so in-process acquirers queue on the same mutex.
type Manager struct {
	opts  Options
	mu    sync.Mutex
	paths map[string]*sync.Mutex
	owner string
}

// NewManager creates a lock manager with the given options.
func NewManager(opts Options) *Manager {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return &Manager{
		opts:  opts.withDefaults(),
		paths: make(map[string]*sync.Mutex),
		owner: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

func (m *Manager) pathMutex(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paths[path]
	if !ok {
		pm = &sync.Mutex{}
		m.paths[path] = pm
	}
	return pm
}

// WithLock runs fn while holding the exclusive lock for path. The sentinel
// is removed on every exit path, including a panic inside fn; removal
// failures are logged, never propagated.
func (m *Manager) WithLock(path string, fn func() error) error {
	pm := m.pathMutex(path)
	pm.Lock()
	defer pm.Unlock()

	if err := m.acquireSentinel(path); err != nil {
		return err
	}
	defer m.releaseSentinel(path)

	return fn()
}

func (m *Manager) sentinelPath(path string) string {
	return path + ".lock"
}

func (m *Manager) acquireSentinel(path string) error {
	sp := m.sentinelPath(path)
	for attempt := 0; attempt < m.opts.Attempts; attempt++ {
		f, err := os.OpenFile(sp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			body, merr := json.Marshal(sentinel{Owner: m.owner, AcquiredAt: time.Now().UTC()})
			if merr == nil {
				_, _ = f.Write(body)
			}
			if cerr := f.Close(); cerr != nil {
				lockLog.Printf("failed to close sentinel %s: %v", sp, cerr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock sentinel %s: %w", sp, err)
		}

		if m.breakIfStale(sp) {
			// Retry immediately after breaking a stale sentinel.
			continue
		}
		time.Sleep(m.opts.Interval)
	}
	return fmt.Errorf("%w: %s", ErrLockContended, sp)
}

// breakIfStale deletes the sentinel when it is older than the stale timeout.
// Returns true when the sentinel was (or already had been) removed.
func (m *Manager) breakIfStale(sp string) bool {
	data, err := os.ReadFile(sp)
	if err != nil {
		// Holder released between our O_EXCL failure and this read.
		return os.IsNotExist(err)
	}

	var s sentinel
	age := time.Duration(0)
	if err := json.Unmarshal(data, &s); err == nil && !s.AcquiredAt.IsZero() {
		age = time.Since(s.AcquiredAt)
	} else if info, serr := os.Stat(sp); serr == nil {
		// Unreadable body: fall back to the file mtime.
		age = time.Since(info.ModTime())
	}

	if age < m.opts.StaleTimeout {
		return false
	}

	lockLog.Printf("breaking stale lock %s: owner=%s, age=%s", sp, s.Owner, age)
	if err := os.Remove(sp); err != nil && !os.IsNotExist(err) {
		lockLog.Printf("failed to break stale lock %s: %v", sp, err)
		return false
	}
	return true
}

func (m *Manager) releaseSentinel(path string) {
	sp := m.sentinelPath(path)
	if err := os.Remove(sp); err != nil && !os.IsNotExist(err) {
		lockLog.Printf("failed to remove lock sentinel %s: %v", sp, err)
	}
}
