// Package artifact provides filesystem-backed presence predicates over the
// relative artifact paths attached to a run, plus artifact-type filtering
// of path lists.
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var checkerLog = logger.New("artifact:checker")

// ErrPathInvalid marks artifact paths rejected before any I/O: empty paths,
// paths with a ".." segment, absolute paths, and Windows drive prefixes.
var ErrPathInvalid = errors.New("invalid artifact path")

// ValidatePath rejects unsafe artifact paths. It never touches the
// filesystem.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrPathInvalid)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrPathInvalid, path)
	}
	if len(path) >= 2 && path[1] == ':' && isASCIILetter(path[0]) {
		return fmt.Errorf("%w: %q has a drive prefix", ErrPathInvalid, path)
	}
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return fmt.Errorf("%w: %q contains a parent-directory segment", ErrPathInvalid, path)
		}
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Checker resolves relative artifact paths under an optional base and
// classifies them as present or missing with a single existence probe each.
type Checker struct {
	basePath string
}

// NewChecker creates a checker. An empty basePath treats artifact paths as
// relative to the working directory.
func NewChecker(basePath string) *Checker {
	return &Checker{basePath: basePath}
}

// Resolve maps a relative artifact path to its on-disk location.
func (c *Checker) Resolve(path string) string {
	if c.basePath == "" {
		return path
	}
	return filepath.Join(c.basePath, path)
}

// IsPresent probes the filesystem for one artifact path. Invalid paths are
// rejected without I/O.
func (c *Checker) IsPresent(path string) bool {
	if err := ValidatePath(path); err != nil {
		checkerLog.Printf("rejecting path without probe: %v", err)
		return false
	}
	return fileutil.FileExists(c.Resolve(path))
}

// AnyPresent reports whether at least one of the paths exists on disk.
func (c *Checker) AnyPresent(paths []string) bool {
	for _, p := range paths {
		if c.IsPresent(p) {
			return true
		}
	}
	return false
}

// CountPresent counts the paths that exist on disk.
func (c *Checker) CountPresent(paths []string) int {
	count := 0
	for _, p := range paths {
		if c.IsPresent(p) {
			count++
		}
	}
	return count
}

// FilterPathsByType keeps the paths whose basename, stripped of its final
// extension, names the given artifact type: an exact case-insensitive
// match, or the type joined to a qualifier with "_" or "-" on either side.
// Type "document" matches "document.md", "document_v1.md" and
// "draft-document.md" but not "documents.md" or "mydocument.md".
func FilterPathsByType(paths []string, artifactType string) []string {
	var matched []string
	for _, p := range paths {
		if PathMatchesType(p, artifactType) {
			matched = append(matched, p)
		}
	}
	return matched
}

// PathMatchesType reports whether a single path names the artifact type.
func PathMatchesType(path, artifactType string) bool {
	base := filepath.Base(path)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	t := strings.ToLower(artifactType)
	if t == "" {
		return false
	}
	return stem == t ||
		strings.HasPrefix(stem, t+"_") ||
		strings.HasPrefix(stem, t+"-") ||
		strings.HasSuffix(stem, "_"+t) ||
		strings.HasSuffix(stem, "-"+t)
}

// CountPresentOfType counts present paths matching the artifact type.
func (c *Checker) CountPresentOfType(paths []string, artifactType string) int {
	return c.CountPresent(FilterPathsByType(paths, artifactType))
}

// AnyPresentOfType reports whether some present path matches the type.
func (c *Checker) AnyPresentOfType(paths []string, artifactType string) bool {
	return c.AnyPresent(FilterPathsByType(paths, artifactType))
}
