package template

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sourceplane/stencil/internal/mustache"
	"github.com/sourceplane/stencil/internal/schema"
)

// DefaultTarget is the declarative-API format templates render for
// unless the document says otherwise. Opaque to this package.
const DefaultTarget = "as3"

// Template is the aggregate built from template source: the raw text,
// the synthesized view schema, defaults, and a compiled validator. A
// Template is immutable after load; Render and ValidateView do not
// mutate it.
type Template struct {
	Title           string
	Description     string
	Definitions     *schema.Definitions
	TypeDefinitions map[string]map[string]interface{}
	ViewSchema      map[string]interface{}
	Target          string
	TemplateText    string
	DefaultView     map[string]interface{}
	SourceType      string
	SourceText      string
	SourceHash      string

	propertyOrder []string
	skipTransform map[string]struct{}
	validator     *jsonschema.Schema
}

// LoadFromSource builds a Template from source text: a YAML/JSON
// document carrying a template field, or a bare interpolation template.
// Synthesis and validator compilation failures are fatal; no partially
// usable Template is ever returned.
func LoadFromSource(text string, provider SchemaProvider) (*Template, error) {
	doc, err := parseDocument(text)
	if err != nil {
		return nil, err
	}

	typeSchemas, err := resolveTypeSchemas(provider)
	if err != nil {
		return nil, err
	}

	tokens, err := mustache.Parse(doc.TemplateText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template text: %w", err)
	}

	frag, err := schema.Synthesize(tokens, doc.Definitions, typeSchemas)
	if err != nil {
		return nil, err
	}

	description := doc.Description
	if description == "" {
		description = frag.Description
	}
	target := doc.Target
	if target == "" {
		target = DefaultTarget
	}
	sourceType := "YAML"
	if doc.Bare {
		sourceType = "MST"
	}

	hash := sha256.Sum256([]byte(text))

	t := &Template{
		Title:           doc.Title,
		Description:     description,
		Definitions:     doc.Definitions,
		TypeDefinitions: frag.TypeDefinitions,
		ViewSchema:      frag.Schema(doc.Definitions),
		Target:          target,
		TemplateText:    doc.TemplateText,
		DefaultView:     doc.View,
		SourceType:      sourceType,
		SourceText:      text,
		SourceHash:      hex.EncodeToString(hash[:]),
		propertyOrder:   frag.PropertyOrder(doc.Definitions),
		skipTransform:   frag.SkipTransform,
	}

	validator, err := schema.Compile(t.GetViewSchema())
	if err != nil {
		return nil, err
	}
	t.validator = validator
	return t, nil
}

// GetViewSchema returns the view schema merged with the template's
// title, description, and resolved external type definitions. Pure.
func (t *Template) GetViewSchema() map[string]interface{} {
	out := make(map[string]interface{}, len(t.ViewSchema)+3)
	for k, v := range t.ViewSchema {
		out[k] = v
	}
	out["title"] = t.Title
	out["description"] = t.Description
	if len(t.TypeDefinitions) > 0 {
		definitions := make(map[string]interface{}, len(t.TypeDefinitions))
		for name, def := range t.TypeDefinitions {
			definitions[name] = def
		}
		out["definitions"] = definitions
	}
	return out
}

// PropertyOrder returns the deterministic view-schema property order
func (t *Template) PropertyOrder() []string {
	return append([]string(nil), t.propertyOrder...)
}

// GetCombinedView layers schema defaults, the template's default view,
// and the supplied view, in increasing precedence.
func (t *Template) GetCombinedView(supplied map[string]interface{}) map[string]interface{} {
	combined := make(map[string]interface{})
	if properties, ok := t.ViewSchema["properties"].(map[string]interface{}); ok {
		for name, raw := range properties {
			prop, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if value, ok := prop["default"]; ok {
				combined[name] = value
			}
		}
	}
	for k, v := range t.DefaultView {
		combined[k] = v
	}
	for k, v := range supplied {
		combined[k] = v
	}
	return combined
}

// ValidateView checks the combined view against the compiled view
// schema, surfacing failures as a structured issue list.
func (t *Template) ValidateView(supplied map[string]interface{}) error {
	combined := t.GetCombinedView(supplied)

	var instance interface{} = combined
	if t.standalone() {
		// degenerate single-value template: validate the implicit value
		if value, ok := combined["."]; ok {
			instance = value
		} else {
			instance = ""
		}
	}

	if err := t.validator.Validate(instance); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return &ViewValidationError{Issues: collectIssues(ve)}
		}
		return &ViewValidationError{Issues: []ValidationIssue{{Location: "#", Message: err.Error()}}}
	}
	return nil
}

// Render validates the supplied view, applies per-property value
// transforms, and interpolates the cleaned template text.
func (t *Template) Render(supplied map[string]interface{}) (string, error) {
	if err := t.ValidateView(supplied); err != nil {
		return "", err
	}

	view := t.transformView(t.GetCombinedView(supplied))
	if t.standalone() {
		// the degenerate schema has no properties to default from
		if _, ok := view["."]; !ok {
			view["."] = ""
		}
	}

	partials := make(map[string]string)
	for name, body := range t.Definitions.Partials() {
		partials[name] = stripTypeSuffixes(body)
	}

	return mustache.Render(stripTypeSuffixes(t.TemplateText), view, partials)
}

// transformView applies type-aware value transforms: ordinary non-empty
// array properties and truthy text-format properties are replaced by
// their JSON-encoded string form. Iteration-section arrays and unknown
// keys pass through unchanged.
func (t *Template) transformView(combined map[string]interface{}) map[string]interface{} {
	properties, _ := t.ViewSchema["properties"].(map[string]interface{})
	out := make(map[string]interface{}, len(combined))

	for name, value := range combined {
		prop, _ := properties[name].(map[string]interface{})
		if prop == nil {
			out[name] = value
			continue
		}
		propType, _ := prop["type"].(string)
		format, _ := prop["format"].(string)

		switch {
		case propType == "array":
			if _, skip := t.skipTransform[name]; skip {
				break
			}
			if sliceLen(value) > 0 {
				if encoded, err := json.Marshal(value); err == nil {
					value = string(encoded)
				}
			}
		case format == "text":
			if s, ok := value.(string); ok && s != "" {
				if encoded, err := json.Marshal(s); err == nil {
					value = string(encoded)
				}
			}
		}
		out[name] = value
	}
	return out
}

// standalone reports whether the view schema collapsed to the degenerate
// single-value form.
func (t *Template) standalone() bool {
	schemaType, _ := t.ViewSchema["type"].(string)
	return schemaType == "string"
}

func sliceLen(value interface{}) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return 0
	}
	return rv.Len()
}

// typeSuffixPattern matches a variable tag carrying name:schema:type
// suffix syntax. The interpolation renderer only ever sees plain names.
var typeSuffixPattern = regexp.MustCompile(`\{\{([^:{}\s]+):[^}]*\}\}`)

func stripTypeSuffixes(text string) string {
	return typeSuffixPattern.ReplaceAllString(text, "{{$1}}")
}
