// Package schema validates the JSON an operation sends, before it is sent.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
)

// Validator holds one compiled schema per operation and JSON part.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// Key names the JSON document of an operation: the operation name for JSON
// bodies, "<operation>.<part>" for JSON parts of a multipart body.
func Key(operation, part string) string {
	if part == "" {
		return operation
	}
	return operation + "." + part
}

const (
	environmentSchema = `{"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"size":{"type":"integer","minimum":0}},"additionalProperties":false}`

	collectionProperties = `"properties":{"name":{"type":"string","minLength":1},"description":{"type":"string"},"configuration_id":{"type":"string"},"language":{"type":"string"}},"additionalProperties":false`

	metadataSchema = `{"type":"object"}`
)

var builtin = map[string]string{
	Key("createEnvironment", "body"):  `{"type":"object","required":["name"],` + strings.TrimPrefix(environmentSchema, `{"type":"object",`),
	Key("updateEnvironment", ""):      environmentSchema,
	Key("createCollection", ""):       `{"type":"object","required":["name"],` + collectionProperties + `}`,
	Key("updateCollection", ""):       `{"type":"object",` + collectionProperties + `}`,
	Key("addDocument", "metadata"):    metadataSchema,
	Key("updateDocument", "metadata"): metadataSchema,
}

// NewValidator compiles the built-in schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(builtin))}
	for key, s := range builtin {
		if err := v.loadSchema(key, s); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Validator) loadSchema(key, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", key, err)
	}
	v.schemas[key] = schema
	return nil
}

// Has reports whether a schema is registered under key.
func (v *Validator) Has(key string) bool {
	_, ok := v.schemas[key]
	return ok
}

// Validate checks doc against the schema registered under key. Documents
// without a schema are accepted. Failures are InvalidParameter errors whose
// parameter is the offending field when there is exactly one.
func (v *Validator) Validate(key string, doc []byte) error {
	schema, ok := v.schemas[key]
	if !ok {
		return nil
	}
	operation, part, _ := strings.Cut(key, ".")

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errordefs.InvalidParameter(operation, part, fmt.Sprintf("malformed JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	fields := map[string]bool{}
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
		fields[field(desc)] = true
	}
	param := part
	if len(fields) == 1 {
		for f := range fields {
			if f != "" {
				param = f
			}
		}
	}
	e := errordefs.InvalidParameter(operation, param, "validation failed")
	e.Details = strings.Join(errs, "; ")
	return e
}

// field returns the top-level property a result error is about.
func field(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if p, ok := desc.Details()["property"].(string); ok {
			return p
		}
	}
	f := desc.Field()
	if f == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return ""
	}
	head, _, _ := strings.Cut(f, ".")
	return head
}
