// Package main generates JSON schemas for the structured (--format json) outputs.
package main

import (
	"encoding"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Sumatoshi-tech/deltascope/internal/features"
	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/inspector"
	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	"github.com/Sumatoshi-tech/deltascope/internal/timeline"
)

const draft07 = "https://json-schema.org/draft-07/schema#"

// Schema represents a JSON Schema. Type is a string or a list of strings.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        any                `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	AnyOf       []*Schema          `json:"anyOf,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

var textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()

// outputs maps schema file names to a sample value of each structured output.
func outputs() map[string]any {
	return map[string]any{
		"statistics":    &stats.TableStatistics{},
		"history":       &render.HistoryPage{},
		"configuration": &features.Report{},
		"timeline":      &timeline.Report{},
		"insights":      []insights.Insight{},
		"schema":        &inspector.SchemaSummary{},
	}
}

func main() {
	outputDir := flag.String("o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	all := outputs()

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := writeSchema(*outputDir, name, generateSchema(name, all[name])); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema for %s: %v\n", name, err)
			os.Exit(1)
		}

		fmt.Printf("Generated schema for %s\n", name)
	}
}

func generateSchema(name string, v any) *Schema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	defs := make(map[string]*Schema)
	root := typeToSchema(t, defs)

	// A top-level struct is inlined rather than referenced.
	if root.Ref != "" {
		root = defs[t.Name()]
		delete(defs, t.Name())
	}

	root.Schema = draft07
	root.Title = "deltascope " + name
	root.Description = fmt.Sprintf("JSON schema for the %s output", name)

	if len(defs) > 0 {
		root.Definitions = defs
	}

	return root
}

func structToProperties(t reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for i := range t.NumField() {
		field := t.Field(i)
		jsonTag := field.Tag.Get("json")

		if !field.IsExported() || jsonTag == "-" || jsonTag == "" {
			continue
		}

		jsonName, opts, _ := strings.Cut(jsonTag, ",")
		props[jsonName] = typeToSchema(field.Type, defs)

		if !strings.Contains(opts, "omitempty") {
			required = append(required, jsonName)
		}
	}

	return props, required
}

func typeToSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	if t.Kind() == reflect.Ptr {
		return nullable(typeToSchema(t.Elem(), defs))
	}

	if t.Implements(textMarshaler) {
		return &Schema{Type: "string"}
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == reflect.TypeFor[time.Duration]() {
			return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
		}

		return &Schema{Type: "integer"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}

	case reflect.Bool:
		return &Schema{Type: "boolean"}

	case reflect.Slice:
		return nullable(&Schema{Type: "array", Items: typeToSchema(t.Elem(), defs)})

	case reflect.Map:
		return nullable(&Schema{
			Type: "object",
			Description: fmt.Sprintf("Map with %s keys and %s values",
				t.Key().Kind().String(), t.Elem().Kind().String()),
		})

	case reflect.Struct:
		defName := t.Name()
		if defName == "" {
			props, required := structToProperties(t, defs)

			return &Schema{Type: "object", Properties: props, Required: required}
		}

		if _, exists := defs[defName]; !exists {
			defs[defName] = &Schema{Type: "object"}
			props, required := structToProperties(t, defs)
			defs[defName].Properties = props
			defs[defName].Required = required
		}

		return &Schema{Ref: "#/definitions/" + defName}

	default:
		return &Schema{}
	}
}

// nullable admits JSON null, which nil pointers, slices and maps encode to.
func nullable(s *Schema) *Schema {
	if kind, ok := s.Type.(string); ok && s.Ref == "" {
		s.Type = []string{kind, "null"}

		return s
	}

	if _, ok := s.Type.([]string); ok {
		return s
	}

	return &Schema{AnyOf: []*Schema{s, {Type: "null"}}}
}

func writeSchema(dir, name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	path := filepath.Join(dir, name+".json")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
