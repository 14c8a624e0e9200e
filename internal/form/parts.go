package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrMissing is wrapped by the FieldError of a required field with no value.
var ErrMissing = errors.New("missing required field")

// Role says how a field is turned into a part.
type Role int

const (
	RoleFile Role = iota // upload value, normalized
	RoleJSON             // structured value, compact JSON
)

// Field is one declared multipart field of an operation.
type Field struct {
	Name     string
	Role     Role
	Value    interface{}
	Required bool
}

// Part is one named part of a multipart body. Content is either a
// NamedReader or a *FilePart.
type Part struct {
	Name    string
	Content interface{}
}

// FieldError reports which field could not be turned into a part.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("field %q: %v", e.Field, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

// BuildParts turns fields into parts, in the order the fields are given.
// Fields with a nil value are left out entirely, unless they are required.
func BuildParts(fields []Field) ([]Part, error) {
	parts := make([]Part, 0, len(fields))
	for _, f := range fields {
		if isNil(f.Value) {
			if f.Required {
				return nil, &FieldError{Field: f.Name, Err: ErrMissing}
			}
			continue
		}
		switch f.Role {
		case RoleFile:
			content, err := Normalize(f.Value)
			if err != nil {
				return nil, &FieldError{Field: f.Name, Err: err}
			}
			parts = append(parts, Part{Name: f.Name, Content: content})
		case RoleJSON:
			b, err := json.Marshal(f.Value)
			if err != nil {
				return nil, &FieldError{Field: f.Name, Err: err}
			}
			parts = append(parts, Part{Name: f.Name, Content: &FilePart{
				Value:   b,
				Options: PartOptions{ContentType: "application/json"},
			}})
		default:
			return nil, &FieldError{Field: f.Name, Err: fmt.Errorf("unknown role %d", f.Role)}
		}
	}
	return parts, nil
}

// isNil reports nil interfaces and the typed nils callers commonly pass for
// optional fields.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Ptr, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// JSONParts returns the decoded JSON of every application/json part.
func JSONParts(parts []Part) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	for _, p := range parts {
		fp, ok := p.Content.(*FilePart)
		if !ok || fp.Options.ContentType != "application/json" {
			continue
		}
		b, ok := fp.Value.([]byte)
		if !ok {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("part %q: %w", p.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}
