// Package document reads configuration documents into trees the resolver can
// walk and writes them back out.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat parses a --format value. The empty string is accepted and
// means "detect".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (expected json or yaml)", s)
}

// FormatForPath picks the format from the file extension. Anything that is
// not .json is read as YAML, which also accepts JSON.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// Document is a parsed configuration document.
type Document struct {
	Tree   map[string]any
	Format Format
}

// ReadFile parses the file at path. An empty format is detected from the
// extension; "-" reads standard input.
func ReadFile(path string, format Format) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = FormatForPath(path)
	}
	return Parse(data, format)
}

// Parse decodes data. The top level must be a mapping.
func Parse(data []byte, format Format) (*Document, error) {
	var tree map[string]any

	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&tree); err != nil {
			return nil, fmt.Errorf("invalid JSON document: %w", err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("invalid YAML document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if tree == nil {
		tree = map[string]any{}
	}
	return &Document{Tree: tree, Format: format}, nil
}

// Encode renders the tree in the document's format.
func (d *Document) Encode(w io.Writer) error {
	return Encode(w, d.Tree, d.Format)
}

// Encode renders v as format.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case YAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlValue(v)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}

// yamlValue copies v with json.Number leaves replaced by plain YAML number
// scalars carrying the original digits, so JSON input keeps its number types.
func yamlValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(t.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = yamlValue(child)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, child := range t {
			out[k] = yamlValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = yamlValue(child)
		}
		return out
	}
	return v
}

// WriteFile renders the tree to path, or to standard output when path is
// empty or "-". Files are created with mode 0600 since they hold secrets.
func (d *Document) WriteFile(path string) error {
	if path == "" || path == "-" {
		return d.Encode(os.Stdout)
	}

	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
