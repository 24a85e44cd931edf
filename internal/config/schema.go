package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// Validate checks a kvresolve.yaml document against the configuration
// schema. Problems are reported as a ConfigError listing every violation.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return kverrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return kverrors.ConfigError{
			Message:    "configuration does not match the schema:\n  - " + strings.Join(problems, "\n  - "),
			Suggestion: "Accepted sections are version, azure, aws, gcp and resolve",
		}
	}

	return nil
}
