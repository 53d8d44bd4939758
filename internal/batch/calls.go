package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/registry"
	"gopkg.in/yaml.v3"
)

// Call is one invocation request of a batch
type Call struct {
	Operation string         `json:"operation" yaml:"operation"`
	Input     map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
}

// LoadCalls reads calls from a JSON or YAML file. The format follows the
// file extension; anything but .yaml and .yml is read as JSON.
func LoadCalls(path string) ([]Call, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calls file: %w", err)
	}

	var calls []Call
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &calls)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&calls)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode calls file: %w", err)
	}

	for i, c := range calls {
		if strings.TrimSpace(c.Operation) == "" {
			return nil, fmt.Errorf("call %d: operation is required", i)
		}
	}

	return calls, nil
}

// GenerateCalls builds repeat sample calls for every operation in ops
func GenerateCalls(reg *registry.Registry, ops []models.Operation, gen *generator.Generator, repeat int, requiredOnly bool) ([]Call, error) {
	if repeat <= 0 {
		repeat = 1
	}

	calls := make([]Call, 0, len(ops)*repeat)
	for _, op := range ops {
		s, err := reg.Schema(op.Name)
		if err != nil {
			return nil, err
		}
		for i := 0; i < repeat; i++ {
			calls = append(calls, Call{
				Operation: op.Name,
				Input:     gen.Sample(s, requiredOnly),
			})
		}
	}

	return calls, nil
}
