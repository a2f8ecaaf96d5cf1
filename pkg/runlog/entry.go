// Package runlog implements the append-only, human-readable run log: one
// CSV file per run holding the run's full event history. The log is the
// durable source of truth for a run's current state and revision, and the
// revision-checked append is the engine's single linearization point.
package runlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
)

// Entry is one row of a run log. Once written, an entry is immutable.
type Entry struct {
	Timestamp      time.Time
	State          string
	Revision       int
	Event          string
	IdempotencyKey string
	// ArtifactPaths is the cumulative artifact set as of this entry.
	ArtifactPaths []string
}

// InitIdempotencyKey returns the reserved key of a run's synthetic first row.
func InitIdempotencyKey(runID string) string {
	return constants.InitEventName + ":" + runID
}

// NewInitEntry builds the synthetic first row of a run log.
func NewInitEntry(runID, initialState string, now time.Time) Entry {
	return Entry{
		Timestamp:      now.UTC(),
		State:          initialState,
		Revision:       1,
		Event:          constants.InitEventName,
		IdempotencyKey: InitIdempotencyKey(runID),
	}
}

// encodeRecord maps an entry to its six CSV fields in column order.
func encodeRecord(e Entry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.State,
		strconv.Itoa(e.Revision),
		e.Event,
		e.IdempotencyKey,
		JoinArtifactPaths(e.ArtifactPaths),
	}
}

// parseRecord maps six CSV fields back to an entry. Records with the wrong
// column count or an unparseable timestamp/revision fail hard: a malformed
// log is corruption, not input.
func parseRecord(record []string) (Entry, error) {
	if len(record) != len(constants.LogColumns) {
		return Entry{}, fmt.Errorf("log row has %d columns, want %d", len(record), len(constants.LogColumns))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[0])
	if err != nil {
		return Entry{}, fmt.Errorf("log row has invalid timestamp %q: %w", record[0], err)
	}

	revision, err := strconv.Atoi(record[2])
	if err != nil {
		return Entry{}, fmt.Errorf("log row has invalid revision %q: %w", record[2], err)
	}
	if revision < 1 {
		return Entry{}, fmt.Errorf("log row has revision %d, revisions start at 1", revision)
	}

	return Entry{
		Timestamp:      ts,
		State:          record[1],
		Revision:       revision,
		Event:          record[3],
		IdempotencyKey: record[4],
		ArtifactPaths:  SplitArtifactPaths(record[5]),
	}, nil
}

// JoinArtifactPaths encodes a path list into the single log column. The
// empty list encodes to the empty string.
func JoinArtifactPaths(paths []string) string {
	return strings.Join(paths, constants.ArtifactPathSeparator)
}

// SplitArtifactPaths decodes the log column. "" is the empty list; a value
// without the separator is a one-element list; separators produce their
// surrounding segments verbatim, empty ones included.
func SplitArtifactPaths(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, constants.ArtifactPathSeparator)
}
