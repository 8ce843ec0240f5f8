package mustache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Render interpolates template source against a view. Substituted values
// are never HTML-escaped: the output is a data document, not markup.
// Partials are resolved by name from the partials map; unknown variables
// render as empty strings.
func Render(src string, view map[string]interface{}, partials map[string]string) (string, error) {
	tokens, err := Parse(src)
	if err != nil {
		return "", err
	}

	r := &renderer{partials: partials}
	var sb strings.Builder
	if err := r.renderTokens(&sb, tokens, []interface{}{view}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type renderer struct {
	partials map[string]string
}

func (r *renderer) renderTokens(sb *strings.Builder, tokens []Token, stack []interface{}) error {
	for _, tok := range tokens {
		switch tok.Kind {
		case Text:
			sb.WriteString(tok.Text)
		case Variable:
			sb.WriteString(stringify(lookup(stack, tok.Name)))
		case Section:
			if err := r.renderSection(sb, tok, stack); err != nil {
				return err
			}
		case Inverted:
			if !truthy(lookup(stack, tok.Name)) {
				if err := r.renderTokens(sb, tok.Children, stack); err != nil {
					return err
				}
			}
		case Partial:
			src, ok := r.partials[tok.Name]
			if !ok {
				return fmt.Errorf("undefined partial %q", tok.Name)
			}
			sub, err := Parse(src)
			if err != nil {
				return fmt.Errorf("partial %q: %w", tok.Name, err)
			}
			if err := r.renderTokens(sb, sub, stack); err != nil {
				return err
			}
		case Comment:
			// dropped from output
		}
	}
	return nil
}

func (r *renderer) renderSection(sb *strings.Builder, tok Token, stack []interface{}) error {
	value := lookup(stack, tok.Name)

	if items, ok := asSlice(value); ok {
		for _, item := range items {
			if err := r.renderTokens(sb, tok.Children, append(stack, item)); err != nil {
				return err
			}
		}
		return nil
	}

	if !truthy(value) {
		return nil
	}
	if m, ok := value.(map[string]interface{}); ok {
		return r.renderTokens(sb, tok.Children, append(stack, m))
	}
	return r.renderTokens(sb, tok.Children, stack)
}

// lookup resolves a name against the context stack, innermost first.
// "." resolves to the current context; dotted names descend into maps.
func lookup(stack []interface{}, name string) interface{} {
	if name == "." {
		if len(stack) == 0 {
			return nil
		}
		top := stack[len(stack)-1]
		// a top-level view carries its standalone value under the "." key
		if m, ok := top.(map[string]interface{}); ok {
			if value, found := m["."]; found {
				return value
			}
		}
		return top
	}

	parts := strings.Split(name, ".")
	for i := len(stack) - 1; i >= 0; i-- {
		m, ok := stack[i].(map[string]interface{})
		if !ok {
			continue
		}
		if value, found := m[parts[0]]; found {
			for _, part := range parts[1:] {
				sub, ok := value.(map[string]interface{})
				if !ok {
					return nil
				}
				value = sub[part]
			}
			return value
		}
	}
	return nil
}

func asSlice(value interface{}) ([]interface{}, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len() > 0
	}
	return true
}

// stringify renders a view value as document text. Strings pass through
// unquoted; everything else uses its JSON encoding.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
