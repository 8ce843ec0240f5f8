package schema

import "sort"

// Fragment is the value produced by one synthesis pass: an accumulating
// JSON-schema object plus bookkeeping the caller needs to merge fragments
// across scopes. Each recursive call owns its fragment; the caller merges.
type Fragment struct {
	Properties   map[string]map[string]interface{}
	Required     map[string]struct{}
	Dependencies map[string][]string

	// SkipTransform flags array properties that back iteration sections;
	// the renderer must not JSON-stringify their values.
	SkipTransform map[string]struct{}

	// TypeDefinitions records each resolved external type fragment by
	// type name, surfaced later as the view schema's definitions table.
	TypeDefinitions map[string]map[string]interface{}

	// Description is the first top-level comment, if any
	Description string

	order []string // property encounter order
}

// NewFragment creates an empty schema fragment
func NewFragment() *Fragment {
	return &Fragment{
		Properties:      make(map[string]map[string]interface{}),
		Required:        make(map[string]struct{}),
		Dependencies:    make(map[string][]string),
		SkipTransform:   make(map[string]struct{}),
		TypeDefinitions: make(map[string]map[string]interface{}),
	}
}

// setProperty adds or replaces a property, subject to the merge guard:
// an incoming boolean property never overwrites an existing array or
// string property of the same name (first strong type wins). This
// asymmetry is load-bearing for templates that reuse a name as both a
// typed field and a conditional section; keep it bit-for-bit.
func (f *Fragment) setProperty(name string, prop map[string]interface{}) {
	if existing, ok := f.Properties[name]; ok {
		existingType, _ := existing["type"].(string)
		incomingType, _ := prop["type"].(string)
		if (existingType == "array" || existingType == "string") && incomingType == "boolean" {
			return
		}
	} else {
		f.order = append(f.order, name)
	}
	f.Properties[name] = prop
}

// has reports whether a property of this name was already synthesized
func (f *Fragment) has(name string) bool {
	_, ok := f.Properties[name]
	return ok
}

// merge folds src into f. Properties go through the setProperty guard;
// required names are unioned. Dependency handling depends on the merge
// site: hoisting concatenates per-key lists, partial expansion copies
// them verbatim (last writer wins), selected by concatDeps.
func (f *Fragment) merge(src *Fragment, concatDeps bool) {
	for _, name := range src.order {
		f.setProperty(name, src.Properties[name])
	}
	for name := range src.Required {
		f.Required[name] = struct{}{}
	}
	for name, deps := range src.Dependencies {
		if concatDeps {
			f.Dependencies[name] = append(f.Dependencies[name], deps...)
		} else {
			f.Dependencies[name] = deps
		}
	}
	for name := range src.SkipTransform {
		f.SkipTransform[name] = struct{}{}
	}
	for name, def := range src.TypeDefinitions {
		f.TypeDefinitions[name] = def
	}
}

// hoist lifts every property of src into f, recording a dependency on
// owner for each. Inverted sections additionally tag the hoisted
// properties so consumers render the dependency logic inverted.
func (f *Fragment) hoist(src *Fragment, owner string, inverted bool) {
	for _, name := range src.order {
		prop := src.Properties[name]
		if inverted {
			prop["invertDependency"] = true
		}
		f.setProperty(name, prop)
		f.Dependencies[name] = append(f.Dependencies[name], owner)
	}
	for name := range src.Required {
		f.Required[name] = struct{}{}
	}
	for name, deps := range src.Dependencies {
		f.Dependencies[name] = append(f.Dependencies[name], deps...)
	}
	for name := range src.SkipTransform {
		f.SkipTransform[name] = struct{}{}
	}
	for name, def := range src.TypeDefinitions {
		f.TypeDefinitions[name] = def
	}
}

// degenerate reports whether the fragment collapses to a bare string
// schema: no bindable properties, or only the synthetic "." standalone
// value.
func (f *Fragment) degenerate() bool {
	if len(f.Properties) == 0 {
		return true
	}
	_, dot := f.Properties["."]
	return dot && len(f.Properties) == 1
}

// PropertyOrder returns the finalized deterministic property order:
// names backed by an explicit definitions entry first, in definition
// order, then everything else in encounter order.
func (f *Fragment) PropertyOrder(defs *Definitions) []string {
	const undefinedOrder = 1 << 20

	ordered := append([]string(nil), f.order...)
	index := func(name string) int {
		if i := defs.Index(name); i >= 0 {
			return i
		}
		return undefinedOrder
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return index(ordered[a]) < index(ordered[b])
	})
	return ordered
}

// Schema emits the finalized JSON-schema object. Required is the
// accumulated set minus every name that appears in dependencies (a
// conditionally needed property is never unconditionally required);
// dependencies are attached only when non-empty.
func (f *Fragment) Schema(defs *Definitions) map[string]interface{} {
	if f.degenerate() {
		return map[string]interface{}{"type": "string", "default": ""}
	}

	ordered := f.PropertyOrder(defs)
	properties := make(map[string]interface{}, len(ordered))
	for _, name := range ordered {
		properties[name] = f.Properties[name]
	}

	required := make([]string, 0, len(f.Required))
	for _, name := range ordered {
		if _, ok := f.Required[name]; !ok {
			continue
		}
		if _, dep := f.Dependencies[name]; dep {
			continue
		}
		required = append(required, name)
	}

	out := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if len(f.Dependencies) > 0 {
		deps := make(map[string]interface{}, len(f.Dependencies))
		for name, owners := range f.Dependencies {
			list := make([]interface{}, len(owners))
			for i, owner := range owners {
				list[i] = owner
			}
			deps[name] = list
		}
		out["dependencies"] = deps
	}
	return out
}
