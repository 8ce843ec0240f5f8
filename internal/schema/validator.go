package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// view schemas carry ad-hoc formats that exist purely for UI hinting;
// they impose no constraint at this layer
var opaqueFormats = []string{"text", "hidden", "password"}

// Compile builds a validator for a synthesized view schema
func Compile(viewSchema map[string]interface{}) (*jsonschema.Schema, error) {
	data, err := json.Marshal(viewSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal view schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	// draft-07: view schemas use the dependencies keyword
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true
	for _, format := range opaqueFormats {
		compiler.Formats[format] = func(interface{}) bool { return true }
	}

	const url = "stencil://view/schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add view schema resource: %w", err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile view schema: %w", err)
	}
	return compiled, nil
}
