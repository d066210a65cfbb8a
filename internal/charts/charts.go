// Package charts describes the chart types of the graphs runtime and the
// hint keys each one accepts.
package charts

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var builtin []byte

// Schema maps chart types to their hint keys.
type Schema struct {
	hints map[string][]string
}

// Load parses a YAML mapping of chart type to hint key list.
func Load(data []byte) (*Schema, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse chart schema: %w", err)
	}
	s := &Schema{hints: make(map[string][]string, len(raw))}
	for graphType, keys := range raw {
		keys = slices.Clone(keys)
		slices.Sort(keys)
		s.hints[graphType] = slices.Compact(keys)
	}
	return s, nil
}

var (
	defaultOnce   sync.Once
	defaultSchema *Schema
)

// Default returns the built-in schema.
func Default() *Schema {
	defaultOnce.Do(func() {
		s, err := Load(builtin)
		if err != nil {
			panic(err)
		}
		defaultSchema = s
	})
	return defaultSchema
}

// HintKeys returns the sorted hint keys of a chart type, or nil when the
// type is unknown.
func (s *Schema) HintKeys(graphType string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.hints[graphType])
}

// GraphTypes returns the known chart types in sorted order.
func (s *Schema) GraphTypes() []string {
	if s == nil {
		return nil
	}
	types := make([]string, 0, len(s.hints))
	for t := range s.hints {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
