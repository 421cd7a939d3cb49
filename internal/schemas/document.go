package schemas

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/cv-publisher/internal/types"
)

// DecodeDocument validates data against the document schema, decodes it and
// runs the struct-level checks of types.Document.
func DecodeDocument(data []byte) (*types.Document, error) {
	if err := ValidateDocumentJSON(data); err != nil {
		return nil, err
	}
	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeDocumentFile decodes a document read from name. Files ending in .yaml
// or .yml are converted to JSON first so both formats pass the same schema.
func DecodeDocumentFile(name string, data []byte) (*types.Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse document YAML: %w", err)
		}
		converted, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to convert document YAML: %w", err)
		}
		data = converted
	}
	return DecodeDocument(data)
}
