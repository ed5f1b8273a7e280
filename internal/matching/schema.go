package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaResource is the in-memory URL schemas are registered under.
const schemaResource = "schema.json"

// CompileSchema compiles a JSON Schema (draft 2020-12) given as a decoded
// JSON value or a JSON string.
func CompileSchema(schema any) (*jsonschema.Schema, error) {
	var data []byte
	switch s := schema.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		var err error
		data, err = json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaResource, strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return compiled, nil
}

// MatchBodySchema reports whether the decoded JSON document satisfies
// schema. A nil schema matches anything; a nil document matches nothing.
func MatchBodySchema(schema *jsonschema.Schema, data any) bool {
	if schema == nil {
		return true
	}
	if data == nil {
		return false
	}
	return schema.Validate(data) == nil
}

// SchemaViolation returns the first leaf validation message for data, or ""
// when it validates.
func SchemaViolation(schema *jsonschema.Schema, data any) string {
	if schema == nil {
		return ""
	}
	err := schema.Validate(data)
	if err == nil {
		return ""
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation == "" {
		return verr.Message
	}
	return verr.InstanceLocation + ": " + verr.Message
}
