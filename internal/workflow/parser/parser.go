package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taskflow/internal/workflow/types"
)

// ReadDocument reads a workflow YAML file into a generic document. A top-level
// "workflow:" wrapper is unwrapped.
func ReadDocument(filePath string) (map[string]interface{}, error) {
	doc, _, err := ReadOrdered(filePath)
	return doc, err
}

// ReadOrdered is ReadDocument plus the declaration order of the ordered
// mappings, which a generic document does not keep.
func ReadOrdered(filePath string) (map[string]interface{}, KeyOrder, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, KeyOrder{}, fmt.Errorf("failed to read workflow file: %v", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, KeyOrder{}, err
	}
	return doc, ParseKeyOrder(data), nil
}

// ParseDocument parses workflow YAML bytes into a generic document.
func ParseDocument(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %v", err)
	}
	if raw == nil {
		return map[string]interface{}{}, nil
	}

	// If no "workflow" wrapper, assume the whole file is the workflow
	if wrapped, ok := raw["workflow"].(map[string]interface{}); ok && len(raw) == 1 {
		return wrapped, nil
	}
	return raw, nil
}

// ParseWorkflow reads and decodes a workflow file without input gathering or
// variable resolution.
func ParseWorkflow(filePath string) (*types.Config, error) {
	doc, order, err := ReadOrdered(filePath)
	if err != nil {
		return nil, err
	}
	var cfg types.Config
	if err := Decode(doc, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workflow struct: %v", err)
	}
	order.Apply(&cfg)
	return &cfg, nil
}

// Decode converts a generic document into a typed value by way of YAML.
func Decode(doc interface{}, out interface{}) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %v", err)
	}
	return yaml.Unmarshal(data, out)
}

// ToDocument converts a typed value into a fresh generic document. The result
// shares no memory with v.
func ToDocument(v interface{}) (map[string]interface{}, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %v", v, err)
	}
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %v", v, err)
	}
	return doc, nil
}

// ParseUserConfig parses a user configuration file (a flat or nested mapping
// of values that override workflow placeholders).
func ParseUserConfig(filePath string) (types.Vars, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %v", err)
	}

	var vars types.Vars
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("unable to load YAML user config file %q: %v", filePath, err)
	}
	if vars == nil {
		vars = make(types.Vars)
	}
	return vars, nil
}

// ParseUserConfigSafe is ParseUserConfig but returns empty vars when the file
// does not exist.
func ParseUserConfigSafe(filePath string) (types.Vars, error) {
	if _, err := os.Stat(filePath); err != nil {
		return make(types.Vars), nil
	}
	return ParseUserConfig(filePath)
}
