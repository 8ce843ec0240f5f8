package schema

import "fmt"

// UnknownSchemaReferenceError reports a variable suffix naming an external
// schema or type that is not registered with any schema provider.
type UnknownSchemaReferenceError struct {
	Property string
	Schema   string
	Type     string
}

func (e *UnknownSchemaReferenceError) Error() string {
	return fmt.Sprintf("property %s references unknown schema %s#%s", e.Property, e.Schema, e.Type)
}

// UnknownPrimitiveTypeError reports a variable suffix naming a type outside
// the supported primitive set.
type UnknownPrimitiveTypeError struct {
	Property string
	Type     string
}

func (e *UnknownPrimitiveTypeError) Error() string {
	return fmt.Sprintf("property %s has unknown primitive type %q", e.Property, e.Type)
}

// UnsupportedSectionTypeError reports a section whose declared value type
// cannot drive a truthy block.
type UnsupportedSectionTypeError struct {
	Section string
	Type    string
}

func (e *UnsupportedSectionTypeError) Error() string {
	return fmt.Sprintf("section %s has unsupported type %q (want array, object, boolean, or string)", e.Section, e.Type)
}
