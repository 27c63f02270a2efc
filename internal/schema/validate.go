package schema

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Violation names one constraint a candidate field failed.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// Validator classifies candidate records against a Target and produces
// cleaned ValidatedRecords. It is pure: no I/O, no shared state.
type Validator struct {
	target Target
}

// NewValidator creates a validator for the given target.
func NewValidator(target Target) *Validator {
	return &Validator{target: target}
}

// Validate checks every declared field of the candidate. On success it
// returns the cleaned record; on failure it returns the full list of
// violated constraints and a nil record. Candidates are never partially
// accepted.
func (v *Validator) Validate(candidate CandidateRecord) (ValidatedRecord, []Violation) {
	var violations []Violation
	cleaned := make(ValidatedRecord, len(v.target.Fields))

	for _, spec := range v.target.Fields {
		raw, present := candidate[spec.Name]
		if !present || raw == nil || isEmptyValue(raw) {
			if spec.Optional {
				continue
			}
			violations = append(violations, Violation{Field: spec.Name, Reason: "required field is missing or empty"})
			continue
		}

		value, err := coerce(raw, spec)
		if err != nil {
			violations = append(violations, Violation{Field: spec.Name, Reason: err.Error()})
			continue
		}

		if reason := checkConstraints(value, spec); reason != "" {
			violations = append(violations, Violation{Field: spec.Name, Reason: reason})
			continue
		}

		cleaned[spec.Name] = value
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return cleaned, nil
}

// coerce converts a raw extracted value into the declared type, applying the
// cleaning policy (trim, collapse whitespace, truncate) for string shapes.
func coerce(raw any, spec FieldSpec) (any, error) {
	switch spec.Type {
	case TypeString:
		s, ok := asString(raw)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return cleanString(s, spec), nil

	case TypeNumber:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number: %q", n)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", raw)
		}

	case TypeBoolean:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("not a boolean: %q", b)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}

	case TypeStringList:
		switch list := raw.(type) {
		case []string:
			out := make([]string, 0, len(list))
			for _, item := range list {
				if s := cleanString(item, spec); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := asString(item)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, found %T element", item)
				}
				if s = cleanString(s, spec); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		case string:
			return []string{cleanString(list, spec)}, nil
		default:
			return nil, fmt.Errorf("expected list of strings, got %T", raw)
		}

	default:
		return nil, fmt.Errorf("unknown field type %q", spec.Type)
	}
}

func checkConstraints(value any, spec FieldSpec) string {
	switch typed := value.(type) {
	case string:
		if spec.MinLength > 0 && utf8.RuneCountInString(typed) < spec.MinLength {
			return fmt.Sprintf("shorter than minimum length %d", spec.MinLength)
		}
		if spec.URLShaped {
			u, err := url.Parse(typed)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Sprintf("not URL-shaped: %q", typed)
			}
		}
	case float64:
		if spec.Min != nil && typed < *spec.Min {
			return fmt.Sprintf("below minimum %v", *spec.Min)
		}
		if spec.Max != nil && typed > *spec.Max {
			return fmt.Sprintf("above maximum %v", *spec.Max)
		}
	case []string:
		if spec.MinLength > 0 && len(typed) < spec.MinLength {
			return fmt.Sprintf("fewer than %d elements", spec.MinLength)
		}
	}
	return ""
}

func asString(raw any) (string, bool) {
	switch s := raw.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

func isEmptyValue(raw any) bool {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
