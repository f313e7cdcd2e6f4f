package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "hiring-pipeline/internal/common/errors"
)

// Schema is a compiled JSON schema that reports failures per field.
type Schema struct {
	schema *gojsonschema.Schema
	// messages overrides the library wording per field.
	messages map[string]string
}

// Compile parses schemaJSON. messages maps a field name to the message
// reported when that field fails any rule.
func Compile(schemaJSON string, messages map[string]string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s, messages: messages}, nil
}

func MustCompile(schemaJSON string, messages map[string]string) *Schema {
	s, err := Compile(schemaJSON, messages)
	if err != nil {
		panic(err)
	}
	return s
}

// Check validates doc and returns one FieldError per failing field, in the
// order the schema evaluator reported them.
func (s *Schema) Check(doc interface{}) ([]apperrors.FieldError, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	seen := make(map[string]bool, len(result.Errors()))
	fields := make([]apperrors.FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := fieldName(desc)
		if seen[field] {
			continue
		}
		seen[field] = true

		msg := desc.Description()
		if custom, ok := s.messages[field]; ok {
			msg = custom
		}
		fields = append(fields, apperrors.FieldError{
			Field:   field,
			Message: msg,
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return fields, nil
}

// Validate is Check folded into the error taxonomy.
func (s *Schema) Validate(doc interface{}) error {
	fields, err := s.Check(doc)
	if err != nil {
		return apperrors.NewInternalError("schema evaluation failed", err)
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

// fieldName resolves the failing property. Missing properties are reported
// against their parent, so the property name comes from the details.
func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY || field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}
