// Package schema synthesizes the typed input description of an operation and
// binds caller supplied values against it.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Reserved field names
const (
	BodyField         = "body"
	ExtraHeadersField = "extra_headers"
)

// Role tells what a field feeds in the outgoing request
type Role string

const (
	RoleParameter    Role = "parameter"
	RoleBody         Role = "body"
	RoleExtraHeaders Role = "extra_headers"
)

// Field is one input field of an InputSchema
type Field struct {
	Name        string            `json:"name" yaml:"name"`
	Role        Role              `json:"role" yaml:"role"`
	Type        models.ParamType  `json:"type" yaml:"type"`
	Required    bool              `json:"required" yaml:"required"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Parameter   *models.Parameter `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Schema      map[string]any    `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// InputSchema describes the values accepted by one operation. It is immutable
// once built and safe for concurrent use.
type InputSchema struct {
	Name      string  `json:"name" yaml:"name"`
	Operation string  `json:"operation" yaml:"operation"`
	Fields    []Field `json:"fields" yaml:"fields"`

	index    map[string]int
	document map[string]any
	compiled *jsonschema.Schema
}

// Build synthesizes the input schema of op. Building the same operation twice
// yields identical schemas.
func Build(op models.Operation) (*InputSchema, error) {
	s := &InputSchema{
		Name:      op.Name + "Input",
		Operation: op.Name,
		index:     map[string]int{},
	}

	used := map[string]bool{BodyField: true, ExtraHeadersField: true}
	for i := range op.Parameters {
		param := op.Parameters[i]
		name := fieldName(param, used)
		used[name] = true

		s.add(Field{
			Name:        name,
			Role:        RoleParameter,
			Type:        param.Type,
			Required:    param.Required || param.In == models.LocationPath,
			Description: param.Description,
			Parameter:   &param,
		})
	}

	if op.HasBody() {
		s.add(Field{
			Name:        BodyField,
			Role:        RoleBody,
			Type:        bodyType(op.RequestBody),
			Description: "Request payload",
			Schema:      op.RequestBody,
		})
	}

	s.add(Field{
		Name:        ExtraHeadersField,
		Role:        RoleExtraHeaders,
		Type:        models.TypeObject,
		Description: "Additional request headers",
	})

	s.document = s.jsonSchema()

	compiled, err := compile(s.document)
	if err != nil {
		return nil, fmt.Errorf("failed to compile input schema for %s: %w", op.Name, err)
	}
	s.compiled = compiled

	return s, nil
}

func (s *InputSchema) add(f Field) {
	s.index[f.Name] = len(s.Fields)
	s.Fields = append(s.Fields, f)
}

// fieldName cleans a parameter name into a field name. Only structural fixes
// are applied.
func fieldName(param models.Parameter, used map[string]bool) string {
	name := param.Name
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "param_" + name
	}
	if !used[name] {
		return name
	}
	base := name + "_" + string(param.In)
	name = base
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func bodyType(body map[string]any) models.ParamType {
	if t, ok := body["type"].(string); ok {
		return models.ParseParamType(t)
	}
	return models.TypeObject
}

// Field returns the field with the given name
func (s *InputSchema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Required returns the names of the required fields, in field order
func (s *InputSchema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// JSONSchema returns the JSON Schema document used for validation
func (s *InputSchema) JSONSchema() map[string]any {
	return s.jsonSchema()
}

func (s *InputSchema) jsonSchema() map[string]any {
	properties := map[string]any{}
	required := []any{}

	for _, f := range s.Fields {
		prop := map[string]any{}
		switch f.Role {
		case RoleParameter:
			prop["type"] = string(f.Type)
			if f.Type == models.TypeString && len(f.Parameter.Enum) > 0 {
				enum := make([]any, 0, len(f.Parameter.Enum))
				for _, e := range f.Parameter.Enum {
					enum = append(enum, e)
				}
				prop["enum"] = enum
			}
		case RoleExtraHeaders:
			prop["type"] = "object"
			prop["additionalProperties"] = map[string]any{"type": "string"}
		case RoleBody:
			// Free-form; the remote service validates the payload
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.Name] = prop

		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"title":                s.Name,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	return doc
}

func compile(doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("input.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	return compiler.Compile("input.json")
}

// Bind validates values against the schema and returns a bound Input. Values
// are normalized through JSON; nil values count as absent. Scalar strings are
// coerced to the declared parameter type when they parse cleanly, and numbers
// or booleans given for a string parameter keep their literal text.
func (s *InputSchema) Bind(values map[string]any) (*Input, error) {
	normalized, err := normalize(values)
	if err != nil {
		return nil, apierr.InvalidInput(s.Operation, "input is not representable as JSON", err)
	}

	var unknown []string
	for name, v := range normalized {
		f, ok := s.Field(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if f.Role == RoleParameter {
			normalized[name] = coerce(f.Type, v)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apierr.InvalidInput(s.Operation, "unknown input fields: "+strings.Join(unknown, ", "), nil)
	}

	if err := s.compiled.Validate(normalized); err != nil {
		return nil, apierr.InvalidInput(s.Operation, validationMessage(err), err)
	}

	return &Input{schema: s, values: normalized}, nil
}

func normalize(values map[string]any) (map[string]any, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	normalized := map[string]any{}
	if err := dec.Decode(&normalized); err != nil {
		return nil, err
	}

	for k, v := range normalized {
		if v == nil {
			delete(normalized, k)
		}
	}

	return normalized, nil
}

func coerce(t models.ParamType, v any) any {
	if t == models.TypeString {
		switch x := v.(type) {
		case json.Number:
			return x.String()
		case bool:
			return strconv.FormatBool(x)
		}
		return v
	}

	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)

	switch t {
	case models.TypeInteger:
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return json.Number(s)
		}
	case models.TypeNumber:
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s)
		}
	case models.TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return v
}

// validationMessage flattens a validation error to its leaf causes
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, loc+": "+e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	return "invalid input: " + strings.Join(msgs, "; ")
}
