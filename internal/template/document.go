package template

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sourceplane/stencil/internal/schema"
	"gopkg.in/yaml.v3"
)

// metaSchema constrains template source: either a bare interpolation
// template (a plain string) or a structured document with a template
// string field.
const metaSchemaText = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"oneOf": [
		{"type": "string"},
		{
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"description": {"type": "string"},
				"target": {"type": "string"},
				"template": {"type": "string"},
				"definitions": {"type": "object"},
				"view": {"type": "object"}
			},
			"required": ["template"]
		}
	]
}`

var metaSchema = jsonschema.MustCompileString("stencil://template/meta.json", metaSchemaText)

// document is the parsed form of structured template source
type document struct {
	Title        string
	Description  string
	Target       string
	TemplateText string
	Definitions  *schema.Definitions
	View         map[string]interface{}
	Bare         bool // source was a bare interpolation template
}

// parseDocument validates source text against the meta-schema and
// extracts the document fields. Bare interpolation templates produce a
// document with only TemplateText set.
func parseDocument(text string) (*document, error) {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		// not YAML at all: treat the source as a bare template
		raw = text
	}
	if raw == nil {
		// empty or comment-only source is the degenerate bare template
		raw = text
	}

	if err := metaSchema.Validate(raw); err != nil {
		var ve *jsonschema.ValidationError
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			ve = verr
		}
		if ve != nil {
			return nil, &InvalidTemplateDocumentError{Issues: collectIssues(ve)}
		}
		return nil, &InvalidTemplateDocumentError{Issues: []ValidationIssue{{Location: "#", Message: err.Error()}}}
	}

	doc := &document{Definitions: schema.NewDefinitions()}

	switch value := raw.(type) {
	case string:
		// bare interpolation template: keep the source text verbatim
		doc.TemplateText = text
		doc.Bare = true
		return doc, nil
	case map[string]interface{}:
		doc.Title, _ = value["title"].(string)
		doc.Description, _ = value["description"].(string)
		doc.Target, _ = value["target"].(string)
		doc.TemplateText, _ = value["template"].(string)
		if view, ok := value["view"].(map[string]interface{}); ok {
			doc.View = view
		}
	default:
		return nil, &InvalidTemplateDocumentError{Issues: []ValidationIssue{
			{Location: "#", Message: fmt.Sprintf("unexpected document type %T", raw)},
		}}
	}

	defs, err := parseDefinitions(text)
	if err != nil {
		return nil, err
	}
	doc.Definitions = defs
	return doc, nil
}

// parseDefinitions re-walks the source as a YAML node tree so definition
// declaration order survives (a plain map unmarshal would lose it, and
// order drives deterministic property ordering in the view schema).
func parseDefinitions(text string) (*schema.Definitions, error) {
	defs := schema.NewDefinitions()

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return defs, nil
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return defs, nil
	}

	docNode := root.Content[0]
	var defsNode *yaml.Node
	for i := 0; i+1 < len(docNode.Content); i += 2 {
		if docNode.Content[i].Value == "definitions" {
			defsNode = docNode.Content[i+1]
			break
		}
	}
	if defsNode == nil || defsNode.Kind != yaml.MappingNode {
		return defs, nil
	}

	for i := 0; i+1 < len(defsNode.Content); i += 2 {
		name := defsNode.Content[i].Value
		var body map[string]interface{}
		if err := defsNode.Content[i+1].Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to parse definition %s: %w", name, err)
		}

		def := &schema.Definition{Name: name, Schema: make(map[string]interface{})}
		for k, v := range body {
			if k == "template" {
				def.Template, _ = v.(string)
				continue
			}
			def.Schema[k] = v
		}
		defs.Add(def)
	}
	return defs, nil
}

// resolveTypeSchemas lists and fetches every schema the provider knows
// about into the name-keyed schema map consumed by synthesis. A nil provider
// yields an empty map; any external reference then fails at synthesis.
func resolveTypeSchemas(provider SchemaProvider) (map[string]map[string]interface{}, error) {
	typeSchemas := make(map[string]map[string]interface{})
	if provider == nil {
		return typeSchemas, nil
	}

	names, err := provider.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list type schemas: %w", err)
	}
	for _, name := range names {
		text, err := provider.Fetch(name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch type schema %s: %w", name, err)
		}
		parsed, err := parseSchemaText(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse type schema %s: %w", name, err)
		}
		typeSchemas[name] = parsed
	}
	return typeSchemas, nil
}

// parseSchemaText parses YAML or JSON schema text into a JSON-shaped map
func parseSchemaText(text string) (map[string]interface{}, error) {
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}
	// round-trip through JSON to normalize YAML scalar types
	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
