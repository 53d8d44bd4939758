package models

import "strings"

// Location is where a parameter travels in the request
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
)

// ParseLocation maps an OpenAPI "in" value to a Location
func ParseLocation(s string) (Location, bool) {
	switch Location(strings.ToLower(s)) {
	case LocationPath:
		return LocationPath, true
	case LocationQuery:
		return LocationQuery, true
	case LocationHeader:
		return LocationHeader, true
	case LocationCookie:
		return LocationCookie, true
	}
	return "", false
}

// ParamType is the primitive or collection type of a parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// ParseParamType maps a schema type to a ParamType, defaulting to string
func ParseParamType(s string) ParamType {
	switch t := ParamType(strings.ToLower(s)); t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return t
	}
	return TypeString
}

// Methods are the HTTP methods an Operation may use, in extraction order
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Parameter describes one declared input of an operation
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	In          Location  `json:"in" yaml:"in"`
	Required    bool      `json:"required" yaml:"required"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`

	// Optional schema hints
	Format  string   `json:"format,omitempty" yaml:"format,omitempty"`
	Enum    []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default any      `json:"default,omitempty" yaml:"default,omitempty"`
	Example any      `json:"example,omitempty" yaml:"example,omitempty"`
}

// Operation is one method and path pairing from an API description.
// Operations are built once at load time and never modified afterwards.
type Operation struct {
	Name        string         `json:"name" yaml:"name"`
	OperationID string         `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
	Method      string         `json:"method" yaml:"method"`
	Path        string         `json:"path" yaml:"path"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []Parameter    `json:"parameters" yaml:"parameters"`
	RequestBody map[string]any `json:"request_body,omitempty" yaml:"request_body,omitempty"`
}

// HasBody reports whether the operation declares a JSON request body
func (o Operation) HasBody() bool {
	return o.RequestBody != nil
}

// ParametersIn returns the parameters declared at the given location
func (o Operation) ParametersIn(in Location) []Parameter {
	var params []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			params = append(params, p)
		}
	}
	return params
}

// Summary is the description or, failing that, "METHOD path"
func (o Operation) Summary() string {
	if o.Description != "" {
		return o.Description
	}
	return o.Method + " " + o.Path
}

// Clone returns a deep copy of the operation
func (o Operation) Clone() Operation {
	c := o
	c.Tags = append([]string(nil), o.Tags...)
	if o.Parameters != nil {
		c.Parameters = make([]Parameter, len(o.Parameters))
		for i, p := range o.Parameters {
			p.Enum = append([]string(nil), p.Enum...)
			p.Default = cloneValue(p.Default)
			p.Example = cloneValue(p.Example)
			c.Parameters[i] = p
		}
	}
	if o.RequestBody != nil {
		c.RequestBody = cloneValue(o.RequestBody).(map[string]any)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
