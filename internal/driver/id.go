package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// Declaration identifiers are the only channel correlating a task-status
// poll back to the operation that produced it: the remote task API does
// not carry caller metadata, so the operation, tenant, and application
// ride inside the declaration's id field.
const (
	idNamespace     = "stencil"
	idDelimiter     = "%"
	legacyDelimiter = "-"
)

// DeclarationID is the parsed form of a composite declaration identifier.
// Raw identifiers are parsed immediately after any read; the string form
// exists only at the write boundary.
type DeclarationID struct {
	Namespace   string
	Operation   Operation
	Tenant      string
	Application string
	Sequence    int
}

// String serializes to the modern wire form:
// namespace%operation%tenant%application%sequence
func (id DeclarationID) String() string {
	return strings.Join([]string{
		id.Namespace,
		string(id.Operation),
		id.Tenant,
		id.Application,
		strconv.Itoa(id.Sequence),
	}, idDelimiter)
}

// legacyPartThreshold separates the legacy short form from a full
// dash-delimited identifier. The threshold is arbitrary but wire-fixed;
// preserve it as-is rather than inferring a smarter discriminator.
const legacyPartThreshold = 9

// ParseDeclarationID reads either identifier form. Identifiers without
// % fall back to the legacy - delimiter, and a short legacy identifier
// carries no operation or sequence slot: tenant and application shift
// down to positions 1 and 2.
func ParseDeclarationID(raw string) DeclarationID {
	delimiter := idDelimiter
	if !strings.Contains(raw, idDelimiter) {
		delimiter = legacyDelimiter
	}
	parts := strings.Split(raw, delimiter)

	id := DeclarationID{Operation: OpUnknown}

	if delimiter == legacyDelimiter && len(parts) < legacyPartThreshold {
		if len(parts) < 3 {
			return id
		}
		id.Namespace = parts[0]
		id.Tenant = parts[1]
		id.Application = parts[2]
		return id
	}

	if len(parts) < 4 {
		return id
	}
	id.Namespace = parts[0]
	id.Operation = Operation(parts[1])
	id.Tenant = parts[2]
	id.Application = parts[3]
	if len(parts) > 4 {
		id.Sequence, _ = strconv.Atoi(parts[4])
	}
	return id
}

func newDeclarationID(op Operation, tenant, application string, seq int) DeclarationID {
	return DeclarationID{
		Namespace:   idNamespace,
		Operation:   op,
		Tenant:      tenant,
		Application: application,
		Sequence:    seq,
	}
}

func (id DeclarationID) describe() string {
	return fmt.Sprintf("%s %s/%s", id.Operation, id.Tenant, id.Application)
}
