package parser

import (
	"github.com/goccy/go-yaml"

	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var yamlErrorLog = logger.New("parser:yaml_error")

// FormatYAMLError renders a YAML error with source context using
// yaml.FormatError: uncolored, with the offending source lines included, so
// definition mistakes point at the exact line and column.
func FormatYAMLError(err error) string {
	yamlErrorLog.Printf("Formatting YAML error: %v", err)
	return yaml.FormatError(err, false, true)
}
