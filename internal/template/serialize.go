package template

import (
	"encoding/json"
	"fmt"

	"github.com/sourceplane/stencil/internal/schema"
)

// templateJSON is the wire form of a serialized Template. Definition
// order and transform flags travel explicitly since maps lose both.
type templateJSON struct {
	Title           string                            `json:"title"`
	Description     string                            `json:"description"`
	Definitions     map[string]definitionJSON         `json:"definitions,omitempty"`
	DefinitionOrder []string                          `json:"definitionOrder,omitempty"`
	TypeDefinitions map[string]map[string]interface{} `json:"typeDefinitions,omitempty"`
	ViewSchema      map[string]interface{}            `json:"viewSchema"`
	Target          string                            `json:"target"`
	TemplateText    string                            `json:"templateText"`
	DefaultView     map[string]interface{}            `json:"defaultView,omitempty"`
	SourceType      string                            `json:"sourceType"`
	SourceText      string                            `json:"sourceText"`
	SourceHash      string                            `json:"sourceHash"`
	PropertyOrder   []string                          `json:"propertyOrder,omitempty"`
	SkipTransform   []string                          `json:"skipTransform,omitempty"`
}

type definitionJSON struct {
	Template string                 `json:"template,omitempty"`
	Schema   map[string]interface{} `json:"schema,omitempty"`
}

// MarshalJSON serializes the Template for storage
func (t *Template) MarshalJSON() ([]byte, error) {
	out := templateJSON{
		Title:           t.Title,
		Description:     t.Description,
		TypeDefinitions: t.TypeDefinitions,
		ViewSchema:      t.ViewSchema,
		Target:          t.Target,
		TemplateText:    t.TemplateText,
		DefaultView:     t.DefaultView,
		SourceType:      t.SourceType,
		SourceText:      t.SourceText,
		SourceHash:      t.SourceHash,
		PropertyOrder:   t.propertyOrder,
	}

	if entries := t.Definitions.Entries(); len(entries) > 0 {
		out.Definitions = make(map[string]definitionJSON, len(entries))
		for _, def := range entries {
			out.Definitions[def.Name] = definitionJSON{Template: def.Template, Schema: def.Schema}
			out.DefinitionOrder = append(out.DefinitionOrder, def.Name)
		}
	}
	for name := range t.skipTransform {
		out.SkipTransform = append(out.SkipTransform, name)
	}
	return json.Marshal(out)
}

// LoadFromJSON rehydrates a previously serialized Template without
// re-running synthesis. The view validator is recompiled from the stored
// schema; compilation failure is fatal, matching LoadFromSource.
func LoadFromJSON(data []byte) (*Template, error) {
	var stored templateJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse stored template: %w", err)
	}
	if stored.ViewSchema == nil {
		return nil, fmt.Errorf("stored template has no view schema")
	}

	defs := schema.NewDefinitions()
	for _, name := range stored.DefinitionOrder {
		def, ok := stored.Definitions[name]
		if !ok {
			continue
		}
		defs.Add(&schema.Definition{Name: name, Template: def.Template, Schema: def.Schema})
	}

	t := &Template{
		Title:           stored.Title,
		Description:     stored.Description,
		Definitions:     defs,
		TypeDefinitions: stored.TypeDefinitions,
		ViewSchema:      stored.ViewSchema,
		Target:          stored.Target,
		TemplateText:    stored.TemplateText,
		DefaultView:     stored.DefaultView,
		SourceType:      stored.SourceType,
		SourceText:      stored.SourceText,
		SourceHash:      stored.SourceHash,
		propertyOrder:   stored.PropertyOrder,
		skipTransform:   make(map[string]struct{}, len(stored.SkipTransform)),
	}
	if t.Target == "" {
		t.Target = DefaultTarget
	}
	for _, name := range stored.SkipTransform {
		t.skipTransform[name] = struct{}{}
	}

	validator, err := schema.Compile(t.GetViewSchema())
	if err != nil {
		return nil, err
	}
	t.validator = validator
	return t, nil
}
