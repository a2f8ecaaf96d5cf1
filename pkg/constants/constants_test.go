package constants

import (
	"path/filepath"
	"testing"
)

func TestGetRunsDir(t *testing.T) {
	expected := filepath.Join("/tmp/project", ".state_gate", "runs")
	result := GetRunsDir("/tmp/project")

	if result != expected {
		t.Errorf("GetRunsDir() = %q, want %q", result, expected)
	}
}

func TestGetArtifactsDirIsPerRun(t *testing.T) {
	a := GetArtifactsDir("/tmp/p", "run-a")
	b := GetArtifactsDir("/tmp/p", "run-b")
	if a == b {
		t.Error("artifact dirs for distinct runs should differ")
	}
	if filepath.Base(a) != "run-a" {
		t.Errorf("artifact dir should end with run id, got %q", a)
	}
}

func TestLogColumns(t *testing.T) {
	expected := []string{"timestamp", "state", "revision", "event", "idempotency_key", "artifact_paths"}
	if len(LogColumns) != len(expected) {
		t.Fatalf("LogColumns length = %d, want %d", len(LogColumns), len(expected))
	}
	for i, col := range expected {
		if LogColumns[i] != col {
			t.Errorf("LogColumns[%d] = %q, want %q", i, LogColumns[i], col)
		}
	}
}
