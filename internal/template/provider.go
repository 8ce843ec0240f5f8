package template

// SchemaProvider supplies externally referenced type schemas to the
// synthesizer. Implementations typically back onto a config directory or
// an object store; the core only consumes this interface.
type SchemaProvider interface {
	// List returns the names of every available schema
	List() ([]string, error)
	// Fetch returns the raw YAML or JSON text of a named schema
	Fetch(name string) (string, error)
}

// Provider supplies stored templates. Storage is a collaborator concern;
// the core does not implement it.
type Provider interface {
	Fetch(id string) (*Template, error)
	List() ([]string, error)
}
