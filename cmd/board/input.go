package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// decodeDocument parses a JSON or YAML file into v. YAML is chosen by file
// extension and is converted through JSON so the api types' json tags apply.
func decodeDocument(path string, data []byte, v any) error {
	if !isYAMLDocument(path) {
		return json.Unmarshal(data, v)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := json.Marshal(stringifyMetadata(raw))
	if err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	return json.Unmarshal(payload, v)
}

func isYAMLDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// stringifyMetadata turns unquoted YAML scalars under "metadata" keys into
// strings, so `size: 10` decodes into the string map orders carry.
func stringifyMetadata(node any) any {
	switch value := node.(type) {
	case map[string]any:
		for key, child := range value {
			if meta, ok := child.(map[string]any); ok && key == "metadata" {
				for mk, mv := range meta {
					meta[mk] = scalarString(mv)
				}
				continue
			}
			value[key] = stringifyMetadata(child)
		}
		return value
	case []any:
		for i, child := range value {
			value[i] = stringifyMetadata(child)
		}
		return value
	default:
		return node
	}
}

func scalarString(value any) any {
	switch v := value.(type) {
	case nil, string, map[string]any, []any:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
