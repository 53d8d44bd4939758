package generator

import (
	"math/rand"
	"strings"
	"time"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
)

// maxDepth bounds recursion into nested body schemas
const maxDepth = 8

// Generator builds sample values from parameter descriptors and body schemas
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a new generator instance
func NewGenerator() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a generator with a fixed seed
func NewSeeded(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Sample builds an input for s, keyed by field name. With requiredOnly only
// required fields are filled and body objects carry only their required
// properties.
func (g *Generator) Sample(s *schema.InputSchema, requiredOnly bool) map[string]any {
	values := map[string]any{}

	for _, f := range s.Fields {
		switch f.Role {
		case schema.RoleParameter:
			if requiredOnly && !f.Required {
				continue
			}
			values[f.Name] = g.Parameter(*f.Parameter)
		case schema.RoleBody:
			values[f.Name] = g.Body(f.Schema, requiredOnly)
		}
	}

	return values
}

// Parameter generates a value for a parameter. Declared examples and
// defaults win over generated values.
func (g *Generator) Parameter(param models.Parameter) any {
	if param.Example != nil {
		return param.Example
	}
	if param.Default != nil {
		return param.Default
	}
	if len(param.Enum) > 0 {
		return param.Enum[0]
	}

	switch param.Type {
	case models.TypeInteger:
		return g.generateInteger(0, 100)
	case models.TypeNumber:
		return g.generateNumber(0, 100)
	case models.TypeBoolean:
		return true
	case models.TypeArray:
		return []any{"item"}
	case models.TypeObject:
		return map[string]any{}
	}

	if param.Format != "" {
		return g.generateFromFormat(param.Format)
	}
	return "test"
}

// Body generates a value for a rendered JSON schema
func (g *Generator) Body(s map[string]any, requiredOnly bool) any {
	return g.value(s, requiredOnly, 0)
}

func (g *Generator) value(s map[string]any, requiredOnly bool, depth int) any {
	if s == nil || depth > maxDepth {
		return nil
	}

	if v, ok := s["example"]; ok {
		return v
	}
	if v, ok := s["default"]; ok {
		return v
	}
	if enum, ok := s["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	// Composed schemas take their first branch
	for _, key := range []string{"allOf", "oneOf", "anyOf"} {
		if branches, ok := s[key].([]any); ok && len(branches) > 0 {
			if key == "allOf" {
				return g.mergeAllOf(branches, requiredOnly, depth)
			}
			branch, _ := branches[0].(map[string]any)
			return g.value(branch, requiredOnly, depth+1)
		}
	}

	switch schemaType(s) {
	case "string":
		return g.generateString(s)
	case "integer":
		min, max := bounds(s, 0, 100)
		return g.generateInteger(int64(min), int64(max))
	case "number":
		min, max := bounds(s, 0, 100)
		return g.generateNumber(min, max)
	case "boolean":
		return true
	case "array":
		return g.generateArray(s, requiredOnly, depth)
	case "object":
		return g.generateObject(s, requiredOnly, depth)
	}

	if format, ok := s["format"].(string); ok {
		return g.generateFromFormat(format)
	}
	return "test-value"
}

func schemaType(s map[string]any) string {
	switch t := s["type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if name, ok := item.(string); ok && name != "null" {
				return name
			}
		}
	}
	if _, ok := s["properties"]; ok {
		return "object"
	}
	if _, ok := s["items"]; ok {
		return "array"
	}
	return ""
}

func bounds(s map[string]any, min, max float64) (float64, float64) {
	if v, ok := toFloat(s["minimum"]); ok {
		min = v
	}
	if v, ok := toFloat(s["maximum"]); ok {
		max = v
	}
	if max < min {
		max = min
	}
	return min, max
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// generateString generates a string value based on schema constraints
func (g *Generator) generateString(s map[string]any) string {
	if format, ok := s["format"].(string); ok && format != "" {
		if str, ok := g.generateFromFormat(format).(string); ok {
			return str
		}
	}

	if _, ok := s["pattern"]; ok {
		// Patterns are not expanded
		return "test-string"
	}

	minLength, maxLength := 0.0, 10.0
	if v, ok := toFloat(s["minLength"]); ok {
		minLength = v
	}
	if v, ok := toFloat(s["maxLength"]); ok {
		maxLength = v
	}

	length := int(minLength)
	if maxLength > minLength {
		length = int(minLength) + g.rng.Intn(int(maxLength-minLength)+1)
	}
	if length == 0 {
		length = 5
	}

	return strings.Repeat("a", length)
}

func (g *Generator) generateInteger(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + g.rng.Int63n(max-min+1)
}

func (g *Generator) generateNumber(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

// generateArray generates an array with one to three items
func (g *Generator) generateArray(s map[string]any, requiredOnly bool, depth int) []any {
	minItems, maxItems := 1.0, 3.0
	if v, ok := toFloat(s["minItems"]); ok && v > 0 {
		minItems = v
	}
	if v, ok := toFloat(s["maxItems"]); ok {
		maxItems = v
	}

	count := int(minItems)
	if maxItems > minItems {
		count += g.rng.Intn(int(maxItems-minItems) + 1)
	}

	items, _ := s["items"].(map[string]any)
	result := make([]any, count)
	for i := range result {
		if items == nil {
			result[i] = "item"
			continue
		}
		result[i] = g.value(items, requiredOnly, depth+1)
	}

	return result
}

// generateObject fills required properties, and every property unless
// requiredOnly is set
func (g *Generator) generateObject(s map[string]any, requiredOnly bool, depth int) map[string]any {
	result := map[string]any{}

	required := map[string]bool{}
	if list, ok := s["required"].([]any); ok {
		for _, r := range list {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	props, _ := s["properties"].(map[string]any)
	for name, raw := range props {
		if requiredOnly && !required[name] {
			continue
		}
		prop, _ := raw.(map[string]any)
		if readOnly, _ := prop["readOnly"].(bool); readOnly {
			continue
		}
		result[name] = g.value(prop, requiredOnly, depth+1)
	}

	return result
}

func (g *Generator) mergeAllOf(branches []any, requiredOnly bool, depth int) any {
	merged := map[string]any{}
	for _, raw := range branches {
		branch, _ := raw.(map[string]any)
		v, ok := g.value(branch, requiredOnly, depth+1).(map[string]any)
		if !ok {
			continue
		}
		for k, val := range v {
			merged[k] = val
		}
	}
	return merged
}

// generateFromFormat generates a value based on format
func (g *Generator) generateFromFormat(format string) any {
	switch format {
	case "date":
		return time.Now().Format("2006-01-02")
	case "date-time":
		return time.Now().Format(time.RFC3339)
	case "email":
		return "test@example.com"
	case "uri", "url":
		return "https://example.com"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "int32":
		return g.rng.Int31()
	case "int64":
		return g.rng.Int63()
	case "float":
		return g.rng.Float32()
	case "double":
		return g.rng.Float64()
	default:
		return "test-value"
	}
}
