package console

// ErrorPosition represents a position in a source file.
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// DefinitionError represents a structured process-definition error with
// position information, used for YAML and validation failures.
type DefinitionError struct {
	Position ErrorPosition
	Type     string // "error", "warning", "info"
	Message  string
	Context  []string // Source lines around the position
	Hint     string   // Optional hint for fixing the error
}

// TableConfig represents configuration for table rendering.
type TableConfig struct {
	Headers []string
	Rows    [][]string
	Title   string
}
