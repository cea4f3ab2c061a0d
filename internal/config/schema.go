package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "den.schema.json"

//go:embed den.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validateFile checks raw den.yaml content against the embedded schema, so a
// misspelled key or an unknown provider fails loudly instead of being ignored.
func validateFile(file []byte) error {
	var doc any
	if err := yaml.Unmarshal(file, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	// Normalize through JSON so the validator sees plain maps, slices and float64.
	var v any
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to normalize config for schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize config for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	return nil
}
