package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/pathparam"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// supportedVersions is the range of OpenAPI versions the parser accepts
const supportedVersions = ">= 3.0.0, < 4.0.0"

// Parser handles parsing OpenAPI specification files
type Parser struct {
	document libopenapi.Document
	model    *v3.Document
	log      *logrus.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithLogger sets the logger used for extraction warnings
func WithLogger(log *logrus.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// ParseFile parses an OpenAPI specification file and returns a Parser instance
func ParseFile(filePath string, opts ...Option) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}

	return Parse(specBytes, opts...)
}

// Parse parses an OpenAPI specification document and builds its v3 model.
// All references are resolved here, once.
func Parse(specBytes []byte, opts ...Option) (*Parser, error) {
	p := &Parser{log: logrus.StandardLogger()}
	for _, o := range opts {
		o(p)
	}

	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	if err := checkVersion(document.GetVersion()); err != nil {
		return nil, err
	}

	model, errs := document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}
	if model == nil {
		return nil, fmt.Errorf("failed to build v3 model: empty model")
	}

	p.document = document
	p.model = &model.Model

	return p, nil
}

func checkVersion(version string) error {
	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return err
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid OpenAPI version %q: %w", version, err)
	}

	if !constraint.Check(v) {
		return fmt.Errorf("unsupported OpenAPI version %s (want %s)", version, supportedVersions)
	}

	return nil
}

// Version returns the OpenAPI version declared by the document
func (p *Parser) Version() string {
	return p.document.GetVersion()
}

// GetServerURLs returns the server URLs from the OpenAPI spec
func (p *Parser) GetServerURLs() []string {
	servers := p.model.Servers
	if len(servers) == 0 {
		return []string{"http://localhost"}
	}

	urls := make([]string, 0, len(servers))
	for _, server := range servers {
		if server != nil && server.URL != "" {
			urls = append(urls, server.URL)
		}
	}

	return urls
}

// GetOperations extracts all operations from the OpenAPI spec, in document order
func (p *Parser) GetOperations() []models.Operation {
	var operations []models.Operation

	paths := p.model.Paths
	if paths == nil || paths.PathItems == nil {
		return operations
	}

	used := map[string]bool{}

	// Iterate over ordered map
	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		pathItem := pair.Value()
		if pathItem == nil {
			continue
		}

		for _, method := range models.Methods {
			op := operationFor(pathItem, method)
			if op == nil {
				continue
			}

			name := uniqueName(operationName(op, method, path), used)
			used[name] = true

			operations = append(operations, models.Operation{
				Name:        name,
				OperationID: op.OperationId,
				Method:      method,
				Path:        path,
				Tags:        append([]string{}, op.Tags...),
				Description: description(op),
				Parameters:  p.parameters(name, path, pathItem.Parameters, op.Parameters),
				RequestBody: p.requestBody(name, op.RequestBody),
			})
		}
	}

	return operations
}

func operationFor(pathItem *v3.PathItem, method string) *v3.Operation {
	switch method {
	case "GET":
		return pathItem.Get
	case "POST":
		return pathItem.Post
	case "PUT":
		return pathItem.Put
	case "PATCH":
		return pathItem.Patch
	case "DELETE":
		return pathItem.Delete
	}
	return nil
}

func description(op *v3.Operation) string {
	if d := strings.TrimSpace(op.Description); d != "" {
		return d
	}
	return strings.TrimSpace(op.Summary)
}

var nonNameChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// operationName prefers the operationId and falls back to method_path
func operationName(op *v3.Operation, method, path string) string {
	name := strings.TrimSpace(op.OperationId)
	if name == "" {
		slug := strings.Trim(nonNameChars.ReplaceAllString(path, "_"), "_")
		if slug == "" {
			slug = "root"
		}
		name = strings.ToLower(method) + "_" + strings.ToLower(slug)
	}

	if name[0] >= '0' && name[0] <= '9' {
		name = "op_" + name
	}

	return name
}

func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !used[candidate] {
			return candidate
		}
	}
}

// parameters merges path-level and operation-level parameters. An
// operation-level parameter overrides a path-level one with the same name and
// location; within one list the first declaration wins.
func (p *Parser) parameters(opName, path string, pathParams, opParams []*v3.Parameter) []models.Parameter {
	key := func(param *v3.Parameter) string {
		return strings.ToLower(param.In) + ":" + param.Name
	}

	overridden := map[string]bool{}
	for _, param := range opParams {
		if param != nil {
			overridden[key(param)] = true
		}
	}

	var merged []*v3.Parameter
	seen := map[string]bool{}
	add := func(param *v3.Parameter) {
		k := key(param)
		if seen[k] {
			p.log.WithFields(logrus.Fields{"operation": opName, "parameter": param.Name}).
				Warn("duplicate parameter ignored")
			return
		}
		seen[k] = true
		merged = append(merged, param)
	}

	for _, param := range pathParams {
		if param != nil && !overridden[key(param)] {
			add(param)
		}
	}
	for _, param := range opParams {
		if param != nil {
			add(param)
		}
	}

	params := make([]models.Parameter, 0, len(merged))
	declared := map[string]bool{}

	for _, param := range merged {
		converted, ok := convertParameter(param)
		if !ok {
			p.log.WithFields(logrus.Fields{"operation": opName, "parameter": param.Name, "in": param.In}).
				Warn("parameter with unknown location skipped")
			continue
		}
		if converted.In == models.LocationPath {
			declared[converted.Name] = true
		}
		params = append(params, converted)
	}

	// Every placeholder needs a path parameter
	for _, name := range pathparam.Names(path) {
		if declared[name] {
			continue
		}
		p.log.WithFields(logrus.Fields{"operation": opName, "parameter": name}).
			Warn("undeclared path placeholder, assuming required string")
		params = append(params, models.Parameter{
			Name:     name,
			In:       models.LocationPath,
			Required: true,
			Type:     models.TypeString,
		})
	}

	return params
}

func convertParameter(param *v3.Parameter) (models.Parameter, bool) {
	in, ok := models.ParseLocation(param.In)
	if !ok {
		return models.Parameter{}, false
	}

	result := models.Parameter{
		Name:        param.Name,
		In:          in,
		Required:    in == models.LocationPath || isRequired(param),
		Type:        models.TypeString,
		Description: strings.TrimSpace(param.Description),
	}

	if param.Schema != nil {
		if schema := param.Schema.Schema(); schema != nil {
			if len(schema.Type) > 0 {
				result.Type = models.ParseParamType(schema.Type[0])
			}
			result.Format = schema.Format
			for _, enumNode := range schema.Enum {
				if enumNode != nil {
					result.Enum = append(result.Enum, enumNode.Value)
				}
			}
			if schema.Default != nil {
				var v any
				if schema.Default.Decode(&v) == nil {
					result.Default = v
				}
			}
			if schema.Example != nil {
				var v any
				if schema.Example.Decode(&v) == nil {
					result.Example = v
				}
			}
			if result.Description == "" {
				result.Description = strings.TrimSpace(schema.Description)
			}
		}
	}

	if result.Example == nil && param.Example != nil {
		var v any
		if param.Example.Decode(&v) == nil {
			result.Example = v
		}
	}

	return result, true
}

func isRequired(param *v3.Parameter) bool {
	low := param.GoLow()
	return low != nil && low.Required.Value
}

// requestBody returns the application/json schema of a request body as a
// plain map. Other content types are ignored.
func (p *Parser) requestBody(opName string, rb *v3.RequestBody) map[string]any {
	if rb == nil || rb.Content == nil {
		return nil
	}

	for pair := rb.Content.First(); pair != nil; pair = pair.Next() {
		if !strings.EqualFold(pair.Key(), "application/json") {
			continue
		}

		mediaType := pair.Value()
		if mediaType == nil || mediaType.Schema == nil {
			return map[string]any{}
		}

		schema := mediaType.Schema.Schema()
		if schema == nil {
			return map[string]any{}
		}

		rendered, err := renderSchema(schema)
		if err != nil {
			p.log.WithFields(logrus.Fields{"operation": opName}).WithError(err).
				Warn("request body schema could not be rendered")
			return map[string]any{"type": "object"}
		}
		return rendered
	}

	return nil
}

// renderSchema inlines all references of a schema into a plain map
func renderSchema(schema *base.Schema) (map[string]any, error) {
	data, err := schema.RenderInline()
	if err != nil {
		// Circular references cannot be inlined
		if data, err = schema.Render(); err != nil {
			return nil, fmt.Errorf("failed to render schema: %w", err)
		}
	}

	result := map[string]any{}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode rendered schema: %w", err)
	}

	return result, nil
}
