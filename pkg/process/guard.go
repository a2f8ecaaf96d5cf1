package process

// GuardType tags the variant of a Guard. Unknown tags are a validator
// error, never a runtime fallthrough.
type GuardType string

// The closed set of guard variants.
const (
	GuardArtifactExists   GuardType = "artifact_exists"
	GuardArtifactCount    GuardType = "artifact_count"
	GuardContextEquals    GuardType = "context_equals"
	GuardContextNotEquals GuardType = "context_not_equals"
	GuardContextIn        GuardType = "context_in"
	GuardContextNotIn     GuardType = "context_not_in"
	GuardContextExists    GuardType = "context_exists"
	GuardContextNotExists GuardType = "context_not_exists"
)

// guardTypes is used by the validator to reject unknown tags.
var guardTypes = map[GuardType]bool{
	GuardArtifactExists:   true,
	GuardArtifactCount:    true,
	GuardContextEquals:    true,
	GuardContextNotEquals: true,
	GuardContextIn:        true,
	GuardContextNotIn:     true,
	GuardContextExists:    true,
	GuardContextNotExists: true,
}

// Guard is a tagged variant: exactly the fields relevant to Type are set.
//
//   - artifact_exists:     ArtifactType
//   - artifact_count:      ArtifactType, MinCount
//   - context_equals,
//     context_not_equals:  Var, Value
//   - context_in,
//     context_not_in:      Var, Values
//   - context_exists,
//     context_not_exists:  Var
//
// Value and Values hold primitive scalars only (string, number, bool, null).
type Guard struct {
	Type         GuardType `yaml:"type" json:"type"`
	ArtifactType string    `yaml:"artifact_type,omitempty" json:"artifact_type,omitempty"`
	MinCount     *int      `yaml:"min_count,omitempty" json:"min_count,omitempty"`
	Var          string    `yaml:"var,omitempty" json:"var,omitempty"`
	Value        any       `yaml:"value,omitempty" json:"value,omitempty"`
	Values       []any     `yaml:"values,omitempty" json:"values,omitempty"`
}

// IsArtifactGuard reports whether the guard inspects artifacts rather than
// context variables.
func (g Guard) IsArtifactGuard() bool {
	return g.Type == GuardArtifactExists || g.Type == GuardArtifactCount
}
