// Package parser is the YAML front end for process definitions. A
// definition file passes three gates before it may enter the registry:
// YAML decoding with positioned errors, JSON-schema shape validation, and
// the static integrity checks of the process validator.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

var parserLog = logger.New("parser:process")

// DefinitionError aggregates everything wrong with one definition file.
type DefinitionError struct {
	Path    string
	Message string
	// Validation holds static-check failures when the shape was fine.
	Validation []process.ValidationError
}

func (e *DefinitionError) Error() string {
	if len(e.Validation) == 0 {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: definition failed validation:", e.Path)
	for _, v := range e.Validation {
		fmt.Fprintf(&sb, "\n  %s", v.Error())
	}
	return sb.String()
}

// LoadProcessFile reads, parses, and validates one definition file. The
// returned process is ready for registry insertion.
func LoadProcessFile(path string) (*process.Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read process definition %s: %w", path, err)
	}
	return ParseProcess(data, path)
}

// ParseProcess parses a definition from memory. The path is used only for
// error reporting and the id consistency check.
func ParseProcess(data []byte, path string) (*process.Process, error) {
	parserLog.Printf("parsing process definition: path=%s, size=%d", path, len(data))

	// First decode into a generic document for schema validation, so shape
	// errors surface before type coercion can mangle them.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DefinitionError{Path: path, Message: "invalid YAML:\n" + FormatYAMLError(err)}
	}
	if doc == nil {
		return nil, &DefinitionError{Path: path, Message: "definition is empty"}
	}
	if err := validateAgainstSchema(doc); err != nil {
		return nil, &DefinitionError{Path: path, Message: err.Error()}
	}

	var p process.Process
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &DefinitionError{Path: path, Message: "invalid YAML:\n" + FormatYAMLError(err)}
	}

	if stem := fileStem(path); stem != "" && p.ID != stem {
		parserLog.Printf("definition id %q differs from file stem %q", p.ID, stem)
	}

	if errs := process.Validate(&p); len(errs) > 0 {
		return nil, &DefinitionError{Path: path, Message: "definition failed validation", Validation: errs}
	}

	return &p, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
