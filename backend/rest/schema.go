package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	taskSchemaURL  = "https://todosync.local/schemas/task.json"
	listSchemaURL  = "https://todosync.local/schemas/list.json"
	patchSchemaURL = "https://todosync.local/schemas/patch-response.json"
)

// taskSchema describes a single record. userId is allowed and ignored.
const taskSchema = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "title": {"type": "string"},
    "completed": {"type": "boolean"},
    "userId": {"type": "integer"}
  }
}`

const listSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "title", "completed"],
    "properties": {
      "id": {"type": "integer", "minimum": 1},
      "title": {"type": "string"},
      "completed": {"type": "boolean"},
      "userId": {"type": "integer"}
    }
  }
}`

// patchResponseSchema is looser than taskSchema: stores may echo only the
// changed fields.
const patchResponseSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "integer"},
    "title": {"type": "string"},
    "completed": {"type": "boolean"}
  }
}`

// schemas holds the compiled payload schemas
type schemas struct {
	task  *jsonschema.Schema
	list  *jsonschema.Schema
	patch *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	for url, doc := range map[string]string{
		taskSchemaURL:  taskSchema,
		listSchemaURL:  listSchema,
		patchSchemaURL: patchResponseSchema,
	} {
		if err := compiler.AddResource(url, strings.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", url, err)
		}
	}

	var s schemas
	var err error
	if s.task, err = compiler.Compile(taskSchemaURL); err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}
	if s.list, err = compiler.Compile(listSchemaURL); err != nil {
		return nil, fmt.Errorf("compile list schema: %w", err)
	}
	if s.patch, err = compiler.Compile(patchSchemaURL); err != nil {
		return nil, fmt.Errorf("compile patch schema: %w", err)
	}
	return &s, nil
}

// decodeValidated checks data against schema and then unmarshals it into v.
func decodeValidated(data []byte, schema *jsonschema.Schema, v any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("unexpected payload: %s", firstSchemaError(err))
	}
	return json.Unmarshal(data, v)
}

// firstSchemaError returns the innermost message of a validation error.
func firstSchemaError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := ve.InstanceLocation
	if location == "" {
		location = "/"
	}
	return location + ": " + ve.Message
}
