package delta

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Schema type tags used by the Delta schema serialization.
const (
	typeStruct = "struct"
	typeArray  = "array"
	typeMap    = "map"
)

// ErrInvalidSchema is returned when a metaData schemaString cannot be interpreted.
var ErrInvalidSchema = errors.New("invalid schema")

// Column is one top-level column of the table schema.
// Type is a compact descriptor: primitives keep their Delta name, nested types render as
// struct<a:int,b:string>, array<long> or map<string,int>.
type Column struct {
	Name      string `json:"name"      yaml:"name"`
	Type      string `json:"type"      yaml:"type"`
	Nullable  bool   `json:"nullable"  yaml:"nullable"`
	Partition bool   `json:"partition" yaml:"partition"`
}

type schemaField struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Nullable bool            `json:"nullable"`
}

type schemaType struct {
	Type        string          `json:"type"`
	Fields      []schemaField   `json:"fields"`
	ElementType json.RawMessage `json:"elementType"`
	KeyType     json.RawMessage `json:"keyType"`
	ValueType   json.RawMessage `json:"valueType"`
}

// Schema parses SchemaString into ordered top-level columns. Partition columns are flagged.
// An empty schema string yields no columns.
func (m Metadata) Schema() ([]Column, error) {
	if strings.TrimSpace(m.SchemaString) == "" {
		return nil, nil
	}

	var root schemaType

	err := json.Unmarshal([]byte(m.SchemaString), &root)
	if err != nil {
		return nil, fmt.Errorf("%w: decode schema string: %w", ErrInvalidSchema, err)
	}

	if root.Type != typeStruct {
		return nil, fmt.Errorf("%w: root type %q is not a struct", ErrInvalidSchema, root.Type)
	}

	columns := make([]Column, 0, len(root.Fields))

	for _, field := range root.Fields {
		descriptor, typeErr := describeType(field.Type)
		if typeErr != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidSchema, field.Name, typeErr)
		}

		columns = append(columns, Column{
			Name:      field.Name,
			Type:      descriptor,
			Nullable:  field.Nullable,
			Partition: slices.Contains(m.PartitionColumns, field.Name),
		})
	}

	return columns, nil
}

// describeType renders a serialized Delta type, either a bare primitive name or a nested object.
func describeType(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing type")
	}

	var primitive string
	if err := json.Unmarshal(raw, &primitive); err == nil {
		return primitive, nil
	}

	var nested schemaType

	err := json.Unmarshal(raw, &nested)
	if err != nil {
		return "", fmt.Errorf("decode type: %w", err)
	}

	switch nested.Type {
	case typeStruct:
		parts := make([]string, 0, len(nested.Fields))

		for _, field := range nested.Fields {
			inner, innerErr := describeType(field.Type)
			if innerErr != nil {
				return "", innerErr
			}

			parts = append(parts, field.Name+":"+inner)
		}

		return typeStruct + "<" + strings.Join(parts, ",") + ">", nil
	case typeArray:
		element, elemErr := describeType(nested.ElementType)
		if elemErr != nil {
			return "", elemErr
		}

		return typeArray + "<" + element + ">", nil
	case typeMap:
		key, keyErr := describeType(nested.KeyType)
		if keyErr != nil {
			return "", keyErr
		}

		value, valueErr := describeType(nested.ValueType)
		if valueErr != nil {
			return "", valueErr
		}

		return typeMap + "<" + key + "," + value + ">", nil
	default:
		return "", fmt.Errorf("unknown type %q", nested.Type)
	}
}
