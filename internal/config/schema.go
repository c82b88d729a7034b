package config

import (
	_ "embed"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var workflowSchemaSource string

var (
	schemaOnce     sync.Once
	workflowSchema *jsonschema.Schema
)

// ValidateSchema checks the structure of a workflow document.
func ValidateSchema(doc map[string]interface{}) error {
	schemaOnce.Do(func() {
		workflowSchema = jsonschema.MustCompileString("schema.json", workflowSchemaSource)
	})

	// The validator expects JSON-decoded values.
	var plain interface{}
	data, err := jsoniter.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode workflow for validation: %v", err)
	}
	if err := jsoniter.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("failed to decode workflow for validation: %v", err)
	}

	if err := workflowSchema.Validate(plain); err != nil {
		return fmt.Errorf("workflow failed schema validation:\n%v", err)
	}
	return nil
}
