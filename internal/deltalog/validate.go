package deltalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed actions.schema.json
var actionSchemaJSON []byte

// ErrInvalidAction is returned when a log action does not match the action schema.
var ErrInvalidAction = errors.New("invalid log action")

// maxReportedViolations caps the violations listed in one error.
const maxReportedViolations = 3

// SchemaValidator checks raw actions against the embedded action schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the embedded action schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(actionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile action schema: %w", err)
	}

	return &SchemaValidator{schema: schema}, nil
}

// Validate returns ErrInvalidAction with the first violations when raw does not conform.
func (v *SchemaValidator) Validate(raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate action: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := result.Errors()
	messages := make([]string, 0, maxReportedViolations)

	for i, violation := range violations {
		if i == maxReportedViolations {
			messages = append(messages, fmt.Sprintf("and %d more", len(violations)-i))

			break
		}

		messages = append(messages, fmt.Sprintf("%s: %s", violation.Field(), violation.Description()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidAction, strings.Join(messages, "; "))
}
