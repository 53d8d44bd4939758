// Package registry loads a specification once and indexes its operations by
// name.
package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/invoke"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/parser"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/sirupsen/logrus"
)

// Source returns the raw specification document
type Source func() ([]byte, error)

// FromFile reads the specification from path
func FromFile(path string) Source {
	return func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
		}
		return data, nil
	}
}

// FromBytes serves an in-memory specification
func FromBytes(data []byte) Source {
	return func() ([]byte, error) {
		return data, nil
	}
}

// Filter selects operations in List. Empty fields match everything and all
// set fields must match.
type Filter struct {
	Keyword string
	Tag     string
	Method  string
	Limit   int
}

// Registry is the index of the operations of one specification. It is loaded
// exactly once, on first use or by an explicit Load; afterwards it is read
// only and lookups take no locks.
type Registry struct {
	source Source
	log    *logrus.Logger

	once sync.Once
	err  error

	operations []models.Operation
	byName     map[string]int
	schemas    map[string]*schema.InputSchema
	servers    []string
	version    string
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger for load reporting and extraction warnings
func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// New creates a registry over source. Nothing is read until first use.
func New(source Source, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load parses the specification and builds every operation and input schema.
// Only the first call does any work; later calls return the same error.
func (r *Registry) Load() error {
	r.once.Do(func() {
		r.err = r.load()
		if r.err != nil {
			r.log.WithError(r.err).Error("failed to load operation registry")
			return
		}
		r.log.WithFields(logrus.Fields{
			"operations": len(r.operations),
			"version":    r.version,
		}).Info("operation registry loaded")
	})
	return r.err
}

// load fills the index only when every step succeeds, so a failed load
// leaves the registry empty.
func (r *Registry) load() error {
	if r.source == nil {
		return fmt.Errorf("no specification source")
	}

	data, err := r.source()
	if err != nil {
		return err
	}

	p, err := parser.Parse(data, parser.WithLogger(r.log))
	if err != nil {
		return err
	}

	operations := p.GetOperations()
	byName := make(map[string]int, len(operations))
	schemas := make(map[string]*schema.InputSchema, len(operations))

	for i, op := range operations {
		s, err := schema.Build(op)
		if err != nil {
			return err
		}
		byName[op.Name] = i
		schemas[op.Name] = s
	}

	r.operations = operations
	r.byName = byName
	r.schemas = schemas
	r.servers = p.GetServerURLs()
	r.version = p.Version()

	return nil
}

// Err returns the load error, if any
func (r *Registry) Err() error {
	_ = r.Load()
	return r.err
}

// Len returns the number of loaded operations; zero after a failed load
func (r *Registry) Len() int {
	_ = r.Load()
	return len(r.operations)
}

// Servers returns the server URLs declared by the specification
func (r *Registry) Servers() []string {
	_ = r.Load()
	return append([]string(nil), r.servers...)
}

// Version returns the OpenAPI version of the loaded specification
func (r *Registry) Version() string {
	_ = r.Load()
	return r.version
}

// Get returns a copy of the operation called name
func (r *Registry) Get(name string) (models.Operation, error) {
	_ = r.Load()
	i, ok := r.byName[name]
	if !ok {
		return models.Operation{}, apierr.OperationNotFound(name)
	}
	return r.operations[i].Clone(), nil
}

// Schema returns the cached input schema of the operation called name
func (r *Registry) Schema(name string) (*schema.InputSchema, error) {
	_ = r.Load()
	s, ok := r.schemas[name]
	if !ok {
		return nil, apierr.OperationNotFound(name)
	}
	return s, nil
}

// List returns copies of the operations matching f, in document order
func (r *Registry) List(f Filter) []models.Operation {
	_ = r.Load()

	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	tag := strings.TrimSpace(f.Tag)
	method := strings.TrimSpace(f.Method)

	var out []models.Operation
	for _, op := range r.operations {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(op.Name), keyword) &&
			!strings.Contains(strings.ToLower(op.Description), keyword) {
			continue
		}
		if tag != "" && !hasTag(op.Tags, tag) {
			continue
		}
		if method != "" && !strings.EqualFold(op.Method, method) {
			continue
		}
		out = append(out, op.Clone())
	}

	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Bind validates values against the input schema of the named operation
func (r *Registry) Bind(name string, values map[string]any) (*schema.Input, error) {
	s, err := r.Schema(name)
	if err != nil {
		return nil, err
	}
	return s.Bind(values)
}

// Invoke looks up, binds and executes the named operation
func (r *Registry) Invoke(ctx context.Context, iv *invoke.Invoker, name string, values map[string]any) (*invoke.Result, error) {
	op, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	in, err := r.Bind(name, values)
	if err != nil {
		return nil, err
	}

	return iv.Invoke(ctx, op, in)
}
