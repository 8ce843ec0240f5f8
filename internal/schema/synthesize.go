package schema

import (
	"fmt"
	"strings"

	"github.com/sourceplane/stencil/internal/mustache"
)

// Synthesize walks a template token tree and produces the schema fragment
// describing the inputs the template binds. Nested sections and partials
// are synthesized recursively; the caller of each recursive pass performs
// the merge, so no state is shared across passes.
//
// Any failure is fatal to the whole template: a partial fragment is never
// usable.
func Synthesize(tokens []mustache.Token, defs *Definitions, typeSchemas map[string]map[string]interface{}) (*Fragment, error) {
	s := &synthesizer{defs: defs, typeSchemas: typeSchemas}
	return s.synthesize(tokens, true)
}

type synthesizer struct {
	defs        *Definitions
	typeSchemas map[string]map[string]interface{}
}

func (s *synthesizer) synthesize(tokens []mustache.Token, topLevel bool) (*Fragment, error) {
	frag := NewFragment()

	for _, tok := range tokens {
		switch tok.Kind {
		case mustache.Text:
			// no schema contribution
		case mustache.Comment:
			if topLevel && frag.Description == "" {
				frag.Description = tok.Text
			}
		case mustache.Variable:
			if err := s.variable(frag, tok.Name); err != nil {
				return nil, err
			}
		case mustache.Partial:
			if err := s.partial(frag, tok.Name); err != nil {
				return nil, err
			}
		case mustache.Section:
			if err := s.section(frag, tok); err != nil {
				return nil, err
			}
		case mustache.Inverted:
			if err := s.inverted(frag, tok); err != nil {
				return nil, err
			}
		}
	}

	return frag, nil
}

// variable synthesizes a property for a name[:schemaName][:type] reference
func (s *synthesizer) variable(frag *Fragment, raw string) error {
	name, schemaName, typeName := splitReference(raw)
	if frag.has(name) {
		return nil
	}

	var prop map[string]interface{}
	if schemaName != "" {
		resolved, err := s.resolveExternal(name, schemaName, typeName)
		if err != nil {
			return err
		}
		frag.TypeDefinitions[typeName] = copyObject(resolved)
		prop = resolved
	} else {
		primitive, err := primitiveProperty(name, typeName)
		if err != nil {
			return err
		}
		prop = primitive
	}

	// an out-of-band definitions entry overrides the synthesized fragment
	if def := s.defs.Get(name); def != nil {
		for k, v := range def.Schema {
			prop[k] = v
		}
	}

	frag.setProperty(name, prop)
	if format, _ := prop["format"].(string); format != "hidden" {
		frag.Required[name] = struct{}{}
	}
	return nil
}

// partial tokenizes and synthesizes the named sub-template, then folds
// the result into the current fragment. Dependency entries are copied
// verbatim (last writer wins per key).
func (s *synthesizer) partial(frag *Fragment, name string) error {
	def := s.defs.Get(name)
	if def == nil || def.Template == "" {
		return fmt.Errorf("undefined partial %q", name)
	}

	tokens, err := mustache.Parse(def.Template)
	if err != nil {
		return fmt.Errorf("partial %q: %w", name, err)
	}
	sub, err := s.synthesize(tokens, false)
	if err != nil {
		return err
	}
	frag.merge(sub, false)
	return nil
}

// section synthesizes a {{#name}} block. The section's value type comes
// from its definitions entry and defaults to array (iteration).
func (s *synthesizer) section(frag *Fragment, tok mustache.Token) error {
	sub, err := s.synthesize(tok.Children, false)
	if err != nil {
		return err
	}

	def := s.defs.Get(tok.Name)
	sectionType := def.Type()
	if sectionType == "" {
		sectionType = "array"
	}

	switch sectionType {
	case "array":
		items := sub.Schema(s.defs)
		delete(items, "default")
		prop := map[string]interface{}{
			"type":    "array",
			"items":   items,
			"default": []interface{}{},
		}
		applyOverride(prop, def)
		frag.setProperty(tok.Name, prop)
		frag.Required[tok.Name] = struct{}{}
		// iteration arrays keep their raw value at render time
		frag.SkipTransform[tok.Name] = struct{}{}
	case "object":
		var prop map[string]interface{}
		if sub.degenerate() {
			prop = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		} else {
			prop = sub.Schema(s.defs)
		}
		prop["default"] = map[string]interface{}{}
		applyOverride(prop, def)
		frag.setProperty(tok.Name, prop)
		frag.Required[tok.Name] = struct{}{}
	case "boolean", "string":
		prop := map[string]interface{}{"type": sectionType}
		if sectionType == "boolean" {
			prop["default"] = false
		} else {
			prop["default"] = ""
		}
		applyOverride(prop, def)
		frag.setProperty(tok.Name, prop)
		frag.Required[tok.Name] = struct{}{}
		// conditional block: inner properties belong to the enclosing
		// scope, gated on this section's variable
		frag.hoist(sub, tok.Name, false)
	default:
		return &UnsupportedSectionTypeError{Section: tok.Name, Type: sectionType}
	}

	for typeName, resolved := range sub.TypeDefinitions {
		frag.TypeDefinitions[typeName] = resolved
	}
	return nil
}

// inverted synthesizes a {{^name}} block. The section variable defaults
// to a boolean and is never required; inner properties hoist with an
// inverted dependency on it.
func (s *synthesizer) inverted(frag *Fragment, tok mustache.Token) error {
	sub, err := s.synthesize(tok.Children, false)
	if err != nil {
		return err
	}

	if !frag.has(tok.Name) {
		prop := map[string]interface{}{"type": "boolean", "default": false}
		applyOverride(prop, s.defs.Get(tok.Name))
		frag.setProperty(tok.Name, prop)
	}
	frag.hoist(sub, tok.Name, true)
	delete(frag.Required, tok.Name)
	return nil
}

// resolveExternal copies a type's schema fragment out of a registered
// external schema.
func (s *synthesizer) resolveExternal(property, schemaName, typeName string) (map[string]interface{}, error) {
	external, ok := s.typeSchemas[schemaName]
	if !ok {
		return nil, &UnknownSchemaReferenceError{Property: property, Schema: schemaName, Type: typeName}
	}
	definitions, _ := external["definitions"].(map[string]interface{})
	resolved, ok := definitions[typeName].(map[string]interface{})
	if !ok {
		return nil, &UnknownSchemaReferenceError{Property: property, Schema: schemaName, Type: typeName}
	}
	return copyObject(resolved), nil
}

// primitiveProperty builds the schema fragment for a built-in type,
// including its zero-value default.
func primitiveProperty(property, typeName string) (map[string]interface{}, error) {
	switch typeName {
	case "", "string":
		return map[string]interface{}{"type": "string", "default": ""}, nil
	case "text":
		return map[string]interface{}{"type": "string", "format": "text", "default": ""}, nil
	case "boolean":
		return map[string]interface{}{"type": "boolean", "default": false}, nil
	case "number":
		return map[string]interface{}{"type": "number", "default": 0}, nil
	case "integer":
		return map[string]interface{}{"type": "integer", "default": 0}, nil
	case "object":
		return map[string]interface{}{"type": "object", "default": map[string]interface{}{}}, nil
	case "array":
		return map[string]interface{}{
			"type":    "array",
			"items":   map[string]interface{}{"type": "string"},
			"default": []interface{}{},
		}, nil
	case "hidden":
		return map[string]interface{}{"type": "string", "format": "hidden", "default": ""}, nil
	default:
		return nil, &UnknownPrimitiveTypeError{Property: property, Type: typeName}
	}
}

// splitReference splits a name[:schemaName][:type] variable reference.
// An empty middle part ({{name::integer}}) selects a primitive type.
func splitReference(raw string) (name, schemaName, typeName string) {
	parts := strings.SplitN(raw, ":", 3)
	name = parts[0]
	if len(parts) > 1 {
		schemaName = parts[1]
	}
	if len(parts) > 2 {
		typeName = parts[2]
	}
	return name, schemaName, typeName
}

func applyOverride(prop map[string]interface{}, def *Definition) {
	if def == nil {
		return
	}
	for k, v := range def.Schema {
		prop[k] = v
	}
}

// copyObject deep-copies a JSON-shaped map
func copyObject(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return copyObject(value)
	case []interface{}:
		list := make([]interface{}, len(value))
		for i, item := range value {
			list[i] = copyValue(item)
		}
		return list
	default:
		return v
	}
}
