// Package schemas validates published files against the embedded JSON
// Schemas and decodes CV documents.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/cv-publisher/internal/types"
	schemafiles "github.com/jonathan/cv-publisher/schemas"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// resultError converts a failed result into a *ValidationError, or nil when valid.
func resultError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}

// compiled lazily compiles one embedded schema.
type compiled struct {
	file   string
	source string

	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

func (c *compiled) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.source))
		if c.err != nil {
			c.err = &SchemaLoadError{
				Path:    c.file,
				Message: "embedded schema does not compile",
				Cause:   c.err,
			}
		}
	})
	return c.schema, c.err
}

func (c *compiled) validate(what string, data []byte) error {
	schema, err := c.get()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return resultError(result)
}

var (
	documentSchema = &compiled{file: schemafiles.CVDataFile, source: schemafiles.CVData}
	manifestSchema = &compiled{file: schemafiles.ManifestFile, source: schemafiles.Manifest}
)

// ValidateDocumentJSON validates a cv-data.json payload against the embedded
// document schema.
func ValidateDocumentJSON(data []byte) error {
	return documentSchema.validate("document", data)
}

// ValidateManifest validates the files array of a deployment upload.
func ValidateManifest(files []types.ManifestFile) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return manifestSchema.validate("manifest", data)
}
