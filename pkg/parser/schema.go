package parser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var schemaLog = logger.New("parser:schema")

//go:embed schemas/process_schema.json
var processSchemaJSON string

// Compiled once and cached; schema compilation is not cheap enough to
// repeat per definition load.
var (
	processSchemaOnce     sync.Once
	compiledProcessSchema *jsonschema.Schema
	processSchemaError    error
)

func getCompiledProcessSchema() (*jsonschema.Schema, error) {
	processSchemaOnce.Do(func() {
		compiledProcessSchema, processSchemaError = compileSchema(processSchemaJSON, "https://state-gate.dev/process-schema.json")
	})
	return compiledProcessSchema, processSchemaError
}

// compileSchema compiles a JSON schema from a JSON string.
func compileSchema(schemaJSON, schemaURL string) (*jsonschema.Schema, error) {
	schemaLog.Printf("Compiling JSON schema: %s", schemaURL)

	compiler := jsonschema.NewCompiler()

	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}

// validateAgainstSchema checks a decoded definition document against the
// embedded process schema. The document is JSON round-tripped first so the
// validator sees canonical JSON value types regardless of what the YAML
// decoder produced.
func validateAgainstSchema(doc map[string]any) error {
	schema, err := getCompiledProcessSchema()
	if err != nil {
		return fmt.Errorf("process schema unavailable: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to canonicalize definition: %w", err)
	}
	var canonical any
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return fmt.Errorf("failed to canonicalize definition: %w", err)
	}

	if err := schema.Validate(canonical); err != nil {
		return fmt.Errorf("definition does not match the process schema:\n%v", err)
	}
	return nil
}
