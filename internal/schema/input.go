package schema

import (
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/pathparam"
)

// Input is a value bound to and validated against an InputSchema
type Input struct {
	schema *InputSchema
	values map[string]any
}

// Schema returns the schema the input was bound against
func (in *Input) Schema() *InputSchema {
	return in.schema
}

// Values returns a copy of the bound values keyed by field name
func (in *Input) Values() map[string]any {
	out := make(map[string]any, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}
	return out
}

// Params returns the values of the parameters declared in loc, keyed by the
// original parameter name.
func (in *Input) Params(loc models.Location) map[string]any {
	out := map[string]any{}
	for _, f := range in.schema.Fields {
		if f.Role != RoleParameter || f.Parameter.In != loc {
			continue
		}
		if v, ok := in.values[f.Name]; ok {
			out[f.Parameter.Name] = v
		}
	}
	return out
}

// Body returns the request payload. ok is false when no body was supplied or
// it is empty.
func (in *Input) Body() (body any, ok bool) {
	v, present := in.values[BodyField]
	if !present || isEmpty(v) {
		return nil, false
	}
	return v, true
}

// ExtraHeaders returns the caller supplied headers
func (in *Input) ExtraHeaders() map[string]string {
	raw, _ := in.values[ExtraHeadersField].(map[string]any)
	if len(raw) == 0 {
		return nil
	}
	headers := make(map[string]string, len(raw))
	for k, v := range raw {
		headers[k] = pathparam.FormatValue(v)
	}
	return headers
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// Builder accumulates input values and binds them on Build
type Builder struct {
	schema  *InputSchema
	values  map[string]any
	headers map[string]any
}

// NewBuilder returns a builder for s
func (s *InputSchema) NewBuilder() *Builder {
	return &Builder{schema: s, values: map[string]any{}}
}

// Set assigns a field value
func (b *Builder) Set(name string, value any) *Builder {
	b.values[name] = value
	return b
}

// Body sets the request payload
func (b *Builder) Body(value any) *Builder {
	return b.Set(BodyField, value)
}

// Header adds an extra request header
func (b *Builder) Header(key, value string) *Builder {
	if b.headers == nil {
		b.headers = map[string]any{}
	}
	b.headers[key] = value
	return b
}

// Build validates the accumulated values
func (b *Builder) Build() (*Input, error) {
	values := make(map[string]any, len(b.values)+1)
	for k, v := range b.values {
		values[k] = v
	}
	if len(b.headers) > 0 {
		values[ExtraHeadersField] = b.headers
	}
	return b.schema.Bind(values)
}
