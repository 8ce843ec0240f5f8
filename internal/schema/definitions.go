package schema

// Definition is one named entry from a template document's definitions
// table: an optional partial body plus schema override fields that are
// merged onto the synthesized property of the same name.
type Definition struct {
	Name     string
	Template string
	Schema   map[string]interface{}
}

// Type returns the definition's declared schema type, or "" if none
func (d *Definition) Type() string {
	if d == nil || d.Schema == nil {
		return ""
	}
	t, _ := d.Schema["type"].(string)
	return t
}

// Definitions holds a template's definition entries in declaration order.
// Declaration order drives the deterministic ordering of synthesized
// properties, so it is preserved from the source document.
type Definitions struct {
	entries map[string]*Definition
	order   []string
}

// NewDefinitions creates an empty definitions table
func NewDefinitions() *Definitions {
	return &Definitions{entries: make(map[string]*Definition)}
}

// Add registers a definition, keeping first-seen order for repeated names
func (d *Definitions) Add(def *Definition) {
	if _, exists := d.entries[def.Name]; !exists {
		d.order = append(d.order, def.Name)
	}
	d.entries[def.Name] = def
}

// Get returns the definition for name, or nil
func (d *Definitions) Get(name string) *Definition {
	if d == nil {
		return nil
	}
	return d.entries[name]
}

// Index returns the declaration position of name, or -1 if undeclared
func (d *Definitions) Index(name string) int {
	if d == nil {
		return -1
	}
	for i, n := range d.order {
		if n == name {
			return i
		}
	}
	return -1
}

// Names returns definition names in declaration order
func (d *Definitions) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.order...)
}

// Entries returns all definitions in declaration order
func (d *Definitions) Entries() []*Definition {
	if d == nil {
		return nil
	}
	entries := make([]*Definition, 0, len(d.order))
	for _, name := range d.order {
		entries = append(entries, d.entries[name])
	}
	return entries
}

// Partials returns the subset of definitions that carry a template body,
// keyed by name.
func (d *Definitions) Partials() map[string]string {
	partials := make(map[string]string)
	if d == nil {
		return partials
	}
	for name, def := range d.entries {
		if def.Template != "" {
			partials[name] = def.Template
		}
	}
	return partials
}
