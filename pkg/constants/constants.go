// Package constants centralizes the on-disk layout, file naming, and
// tuning values shared across the state-gate packages.
package constants

import (
	"path/filepath"
	"time"
)

// CLIBinaryName is the name used in user-facing output to refer to the CLI.
const CLIBinaryName = "state-gate"

// GateDirName is the root directory holding all state-gate data, relative
// to the configured root (defaults to the working directory).
const GateDirName = ".state_gate"

// Subdirectories of the gate dir.
const (
	RunsDirName      = "runs"
	MetadataDirName  = "metadata"
	ArtifactsDirName = "artifacts"
	ProcessesDirName = "processes"
)

// CurrentRunFileName is the default-run pointer consumed by the CLI and
// the hook adapter: {"run_id": "...", "role": "..."}.
const CurrentRunFileName = "current_run.json"

// RunLogExtension is the extension of per-run append-only log files.
const RunLogExtension = ".log"

// MetadataExtension is the extension of per-run metadata sidecar files.
const MetadataExtension = ".json"

// InitEventName is the synthetic event recorded as the first row of every
// run log. Its idempotency key is InitEventName + ":" + runID.
const InitEventName = "__init__"

// WildcardRole permits any caller role when present in an allowed_roles list.
const WildcardRole = "*"

// ArtifactPathSeparator joins artifact paths into the single log column.
const ArtifactPathSeparator = ";"

// LogColumns is the fixed header of every run log, in column order.
var LogColumns = []string{"timestamp", "state", "revision", "event", "idempotency_key", "artifact_paths"}

// File-lock tuning. A contended acquirer retries LockRetryAttempts times at
// LockRetryInterval; a sentinel older than LockStaleTimeout is presumed
// abandoned and may be broken by any acquirer.
const (
	LockRetryAttempts = 50
	LockRetryInterval = 100 * time.Millisecond
	LockStaleTimeout  = 30 * time.Second
)

// GetGateDir returns the gate directory under the given root.
func GetGateDir(root string) string {
	return filepath.Join(root, GateDirName)
}

// GetRunsDir returns the run-log directory under the given root.
func GetRunsDir(root string) string {
	return filepath.Join(GetGateDir(root), RunsDirName)
}

// GetMetadataDir returns the metadata directory under the given root.
func GetMetadataDir(root string) string {
	return filepath.Join(GetGateDir(root), MetadataDirName)
}

// GetArtifactsDir returns the artifact tree for one run under the given root.
func GetArtifactsDir(root, runID string) string {
	return filepath.Join(GetGateDir(root), ArtifactsDirName, runID)
}

// GetProcessesDir returns the process-definition directory under the given root.
func GetProcessesDir(root string) string {
	return filepath.Join(GetGateDir(root), ProcessesDirName)
}

// GetCurrentRunFile returns the default-run pointer path under the given root.
func GetCurrentRunFile(root string) string {
	return filepath.Join(GetGateDir(root), CurrentRunFileName)
}
