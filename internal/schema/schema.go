package schema

// FieldType enumerates the primitive types a declared field may carry.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeBoolean    FieldType = "boolean"
	TypeStringList FieldType = "string_list"
)

// FieldSpec declares one field of an extraction target: its type, whether it
// may be absent, and the constraints a candidate value must satisfy.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Optional  bool
	MinLength int
	MaxLength int // values longer than this are truncated, never rejected
	URLShaped bool
	Min       *float64
	Max       *float64
	Normalize string // optional named normalizer: "phone"
}

// Target declares what a task extracts: the record shape and the field
// combination used to detect duplicates. Immutable after task start.
type Target struct {
	Fields   []FieldSpec
	Identity []string
}

// Field returns the spec for the named field, if declared.
func (t Target) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// CandidateRecord is the raw, untyped output of one extraction attempt.
// Absent fields are simply missing keys; extraction never errors on them.
type CandidateRecord map[string]any

// ValidatedRecord is a candidate that passed validation and cleaning.
type ValidatedRecord map[string]any
