package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromSource_BareTemplate(t *testing.T) {
	tmpl, err := LoadFromSource("{{foo::string}}", nil)
	require.NoError(t, err)

	assert.Equal(t, "MST", tmpl.SourceType)
	assert.Equal(t, DefaultTarget, tmpl.Target)
	assert.Len(t, tmpl.SourceHash, 64, "source hash is a SHA-256 hex digest")

	properties := tmpl.ViewSchema["properties"].(map[string]interface{})
	prop := properties["foo"].(map[string]interface{})
	assert.Equal(t, "string", prop["type"])
	assert.Equal(t, "", prop["default"])
	assert.Equal(t, []string{"foo"}, tmpl.ViewSchema["required"])

	out, err := tmpl.Render(map[string]interface{}{"foo": "bar"})
	require.NoError(t, err)
	assert.Equal(t, "bar", out)
}

func TestLoadFromSource_StructuredDocument(t *testing.T) {
	src := `
title: Basic Service
description: Deploys one virtual service
definitions:
  appPort:
    type: integer
    default: 443
template: |
  {"name": "{{appName}}", "port": {{appPort}}}
view:
  appName: demo
`
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	assert.Equal(t, "Basic Service", tmpl.Title)
	assert.Equal(t, "Deploys one virtual service", tmpl.Description)
	assert.Equal(t, "YAML", tmpl.SourceType)

	out, err := tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\": \"demo\", \"port\": 443}\n", out,
		"defaults flow from the document view and the definition default")
}

func TestLoadFromSource_DescriptionFromComment(t *testing.T) {
	tmpl, err := LoadFromSource("{{! Sets up a redirect }}{{host}}", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sets up a redirect", tmpl.Description)
}

func TestLoadFromSource_InvalidDocument(t *testing.T) {
	_, err := LoadFromSource("title: no template field here", nil)
	var invalid *InvalidTemplateDocumentError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, invalid.Issues)
}

func TestLoadFromSource_SynthesisFailureIsFatal(t *testing.T) {
	tmpl, err := LoadFromSource("{{ok}} {{bad::widget}}", nil)
	assert.Error(t, err)
	assert.Nil(t, tmpl, "no partially usable template is ever returned")
}

type mapSchemaProvider struct {
	schemas map[string]string
}

func (p *mapSchemaProvider) List() ([]string, error) {
	names := make([]string, 0, len(p.schemas))
	for name := range p.schemas {
		names = append(names, name)
	}
	return names, nil
}

func (p *mapSchemaProvider) Fetch(name string) (string, error) {
	return p.schemas[name], nil
}

func TestLoadFromSource_ExternalTypeSchemas(t *testing.T) {
	provider := &mapSchemaProvider{schemas: map[string]string{
		"f5": `{"definitions": {"port": {"type": "integer", "minimum": 0, "maximum": 65535}}}`,
	}}

	tmpl, err := LoadFromSource("{{vipPort:f5:port}}", provider)
	require.NoError(t, err)

	viewSchema := tmpl.GetViewSchema()
	definitions := viewSchema["definitions"].(map[string]interface{})
	assert.Contains(t, definitions, "port")

	// out-of-range values fail the copied constraint
	err = tmpl.ValidateView(map[string]interface{}{"vipPort": float64(70000)})
	var ve *ViewValidationError
	require.ErrorAs(t, err, &ve)

	out, err := tmpl.Render(map[string]interface{}{"vipPort": float64(8443)})
	require.NoError(t, err)
	assert.Equal(t, "8443", out)
}

func TestGetViewSchema_MergesMetadata(t *testing.T) {
	src := "title: T\ndescription: D\ntemplate: \"{{x}}\"\n"
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	viewSchema := tmpl.GetViewSchema()
	assert.Equal(t, "T", viewSchema["title"])
	assert.Equal(t, "D", viewSchema["description"])
	assert.Equal(t, "object", viewSchema["type"])
}

func TestGetCombinedView_Precedence(t *testing.T) {
	src := `
definitions:
  color:
    type: string
    default: blue
template: "{{color}} {{size}}"
view:
  size: large
`
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	combined := tmpl.GetCombinedView(nil)
	assert.Equal(t, "blue", combined["color"], "schema default")
	assert.Equal(t, "large", combined["size"], "document view overrides the schema default")

	combined = tmpl.GetCombinedView(map[string]interface{}{"color": "red", "size": "small"})
	assert.Equal(t, "red", combined["color"], "supplied view wins")
	assert.Equal(t, "small", combined["size"])
}

func TestValidateView_StructuredIssues(t *testing.T) {
	tmpl, err := LoadFromSource("{{count::integer}}", nil)
	require.NoError(t, err)

	err = tmpl.ValidateView(map[string]interface{}{"count": "three"})
	var ve *ViewValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Issues)
	assert.NotEmpty(t, ve.Issues[0].Message)
}

func TestRender_InvertedSectionExample(t *testing.T) {
	tmpl, err := LoadFromSource("{{^skip}}kept{{/skip}}", nil)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]interface{}{"skip": true})
	require.NoError(t, err)
	assert.Equal(t, "", out)

	// skip defaults to false, so the block fires
	out, err = tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "kept", out)
}

func TestRender_ArrayTransform(t *testing.T) {
	tmpl, err := LoadFromSource("{{list::array}}", nil)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]interface{}{"list": []interface{}{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, out, "ordinary array values render as their JSON encoding")

	out, err = tmpl.Render(map[string]interface{}{"list": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, "[]", out, "empty arrays skip the transform and render raw")
}

func TestRender_IterationSectionSkipsTransform(t *testing.T) {
	tmpl, err := LoadFromSource("{{#servers}}{{addr}};{{/servers}}", nil)
	require.NoError(t, err)

	view := map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{"addr": "10.0.0.1"},
			map[string]interface{}{"addr": "10.0.0.2"},
		},
	}
	out, err := tmpl.Render(view)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1;10.0.0.2;", out,
		"iteration arrays keep their raw value instead of a JSON string")
}

func TestRender_TextFormatTransform(t *testing.T) {
	tmpl, err := LoadFromSource("{{body::text}}", nil)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]interface{}{"body": "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, `"line1\nline2"`, out, "text values render JSON-encoded")
}

func TestRender_PartialTypedDefaultsFlow(t *testing.T) {
	src := `
definitions:
  backend:
    template: "{{backendPort::integer}}"
template: "port={{>backend}}"
`
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	// the partial's typed variable gets its schema default when omitted
	out, err := tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "port=0", out)

	out, err = tmpl.Render(map[string]interface{}{"backendPort": float64(8080)})
	require.NoError(t, err)
	assert.Equal(t, "port=8080", out)
}

func TestRender_StandaloneValue(t *testing.T) {
	tmpl, err := LoadFromSource("{{.}}", nil)
	require.NoError(t, err)
	assert.Equal(t, "string", tmpl.ViewSchema["type"], "a lone implicit variable collapses the schema")

	out, err := tmpl.Render(map[string]interface{}{".": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	// the implicit value defaults to the schema's empty string
	out, err = tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRender_EmptyTemplate(t *testing.T) {
	tmpl, err := LoadFromSource("", nil)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]interface{}{"anything": "x"})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRender_Idempotent(t *testing.T) {
	src := `
definitions:
  name:
    type: string
    default: app1
template: "{{name}}-{{count::integer}}"
`
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	first, err := tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	second, err := tmpl.Render(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "app1-0", first)
}

func TestSerialization_RoundTrip(t *testing.T) {
	src := `
title: RT
definitions:
  svcPort:
    type: integer
    default: 80
template: "{{svcName}}:{{svcPort}}"
`
	tmpl, err := LoadFromSource(src, nil)
	require.NoError(t, err)

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)

	restored, err := LoadFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Title, restored.Title)
	assert.Equal(t, tmpl.SourceHash, restored.SourceHash)
	assert.Equal(t, tmpl.PropertyOrder(), restored.PropertyOrder())

	out, err := restored.Render(map[string]interface{}{"svcName": "web"})
	require.NoError(t, err)
	assert.Equal(t, "web:80", out)
}
