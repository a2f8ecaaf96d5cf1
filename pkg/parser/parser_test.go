package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

const validDefinition = `
id: doc-review
version: "1.0"
initial_state: draft
initial_context:
  phase: drafting
states:
  - name: draft
    prompt: Write the document and attach it.
    tools:
      allowed: ["Edit", "Write"]
      denied: ["Bash"]
      default: ask
  - name: review
    required_artifacts: [document]
  - name: done
    is_final: true
events:
  - name: submit
    allowed_roles: [agent]
  - name: approve
    allowed_roles: [reviewer]
transitions:
  - from: draft
    event: submit
    to: review
    guard: has_document
  - from: review
    event: approve
    to: done
guards:
  has_document:
    type: artifact_exists
    artifact_type: document
artifacts:
  - type: document
    description: The document under review
roles:
  - name: agent
  - name: reviewer
`

func TestParseValidDefinition(t *testing.T) {
	p, err := ParseProcess([]byte(validDefinition), "doc-review.yaml")
	require.NoError(t, err)

	assert.Equal(t, "doc-review", p.ID)
	assert.Equal(t, "1.0", p.Version)
	assert.Equal(t, "draft", p.InitialState)
	assert.Equal(t, "drafting", p.InitialContext["phase"])
	require.Len(t, p.States, 3)
	assert.Equal(t, "Write the document and attach it.", p.States[0].Prompt)
	require.NotNil(t, p.States[0].Tools)
	assert.Equal(t, []string{"Edit", "Write"}, p.States[0].Tools.Allowed)
	assert.Equal(t, "ask", p.States[0].Tools.Default)
	assert.True(t, p.States[2].IsFinal)
	require.Len(t, p.Transitions, 2)
	assert.Equal(t, "has_document", p.Transitions[0].Guard)

	g, ok := p.GuardByName("has_document")
	require.True(t, ok)
	assert.Equal(t, process.GuardArtifactExists, g.Type)
	assert.Equal(t, "document", g.ArtifactType)
}

func TestParseRejectsBrokenYAML(t *testing.T) {
	_, err := ParseProcess([]byte("id: [unclosed"), "broken.yaml")
	var defErr *DefinitionError
	require.True(t, errors.As(err, &defErr))
	assert.Contains(t, defErr.Message, "invalid YAML")
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing states", "id: p\nversion: \"1\"\ninitial_state: a\nevents: []\ntransitions: []"},
		{"unknown top-level key", validDefinition + "\nsurprise: true"},
		{"bad guard type", strings.Replace(validDefinition, "type: artifact_exists", "type: phase_of_moon", 1)},
		{"bad tool default", strings.Replace(validDefinition, "default: ask", "default: maybe", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProcess([]byte(tt.yaml), "p.yaml")
			var defErr *DefinitionError
			require.True(t, errors.As(err, &defErr), "want DefinitionError, got %v", err)
		})
	}
}

func TestParseRejectsStaticValidationFailures(t *testing.T) {
	bad := strings.Replace(validDefinition, "initial_state: draft", "initial_state: limbo", 1)
	_, err := ParseProcess([]byte(bad), "p.yaml")

	var defErr *DefinitionError
	require.True(t, errors.As(err, &defErr))
	require.NotEmpty(t, defErr.Validation)

	found := false
	for _, v := range defErr.Validation {
		if v.Code == process.CodeInvalidInitialState {
			found = true
		}
	}
	assert.True(t, found, "expected INVALID_INITIAL_STATE, got %v", defErr.Validation)
}

func TestParseEmptyDefinition(t *testing.T) {
	_, err := ParseProcess([]byte(""), "empty.yaml")
	require.Error(t, err)
}

func TestLoadProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc-review.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDefinition), 0o644))

	p, err := LoadProcessFile(path)
	require.NoError(t, err)
	assert.Equal(t, "doc-review", p.ID)

	_, err = LoadProcessFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
