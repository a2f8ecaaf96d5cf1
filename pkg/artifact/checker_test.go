package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple relative", "document.md", false},
		{"nested relative", "reports/final/document.md", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent traversal", "../secret.txt", true},
		{"embedded traversal", "a/../../b.txt", true},
		{"windows drive", "C:\\temp\\x.txt", true},
		{"lowercase drive", "c:/temp/x.txt", true},
		{"dotdot in name is fine", "notes..md", false},
		{"backslash traversal", "a\\..\\b.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPathInvalid) {
				t.Errorf("error should wrap ErrPathInvalid, got %v", err)
			}
		})
	}
}

func TestPathMatchesType(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"document.md", true},
		{"document_v1.md", true},
		{"document-final.md", true},
		{"draft-document.md", true},
		{"draft_document.md", true},
		{"DOCUMENT.MD", true},
		{"reports/document_v2.txt", true},
		{"documents.md", false},
		{"mydocument.md", false},
		{"documentation.md", false},
		{"doc.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := PathMatchesType(tt.path, "document"); got != tt.want {
				t.Errorf("PathMatchesType(%q, document) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilterPathsByType(t *testing.T) {
	paths := []string{"document.md", "documents.md", "review-document.md", "notes.txt"}
	got := FilterPathsByType(paths, "document")
	want := []string{"document.md", "review-document.md"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCheckerPresence(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "document_v1.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(base)

	if !c.IsPresent("document_v1.md") {
		t.Error("document_v1.md should be present")
	}
	if c.IsPresent("missing.md") {
		t.Error("missing.md should be absent")
	}
	if c.IsPresent("../document_v1.md") {
		t.Error("traversal path must never be probed")
	}

	paths := []string{"document_v1.md", "missing.md"}
	if !c.AnyPresent(paths) {
		t.Error("AnyPresent should be true")
	}
	if got := c.CountPresent(paths); got != 1 {
		t.Errorf("CountPresent = %d, want 1", got)
	}
	if got := c.CountPresentOfType(paths, "document"); got != 1 {
		t.Errorf("CountPresentOfType = %d, want 1", got)
	}
	if c.AnyPresentOfType(paths, "report") {
		t.Error("no report artifacts should be present")
	}
}

func TestCheckerWithoutBase(t *testing.T) {
	c := NewChecker("")
	if got := c.Resolve("a/b.md"); got != "a/b.md" {
		t.Errorf("Resolve without base = %q, want a/b.md", got)
	}
}
