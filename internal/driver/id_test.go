package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclarationID_RoundTrip(t *testing.T) {
	id := newDeclarationID(OpCreate, "tenant1", "app1", 7)
	assert.Equal(t, "stencil%create%tenant1%app1%7", id.String())

	parsed := ParseDeclarationID(id.String())
	assert.Equal(t, id, parsed)
}

func TestParseDeclarationID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want DeclarationID
	}{
		{
			name: "modern form",
			raw:  "stencil%delete%t1%a1%12",
			want: DeclarationID{Namespace: "stencil", Operation: OpDelete, Tenant: "t1", Application: "a1", Sequence: 12},
		},
		{
			name: "modern form with wrong field count",
			raw:  "stencil%create%t1",
			want: DeclarationID{Operation: OpUnknown},
		},
		{
			// the short form has no operation slot; tenant and
			// application shift down one position
			name: "legacy short form",
			raw:  "stencil-t1-a1",
			want: DeclarationID{Namespace: "stencil", Operation: OpUnknown, Tenant: "t1", Application: "a1"},
		},
		{
			name: "legacy short form with trailing fields",
			raw:  "stencil-t1-a1-4f2a-91cc",
			want: DeclarationID{Namespace: "stencil", Operation: OpUnknown, Tenant: "t1", Application: "a1"},
		},
		{
			name: "legacy long form at the part threshold",
			raw:  "stencil-update-t1-a1-12-aa-bb-cc-dd",
			want: DeclarationID{Namespace: "stencil", Operation: OpUpdate, Tenant: "t1", Application: "a1", Sequence: 12},
		},
		{
			name: "legacy form too short",
			raw:  "stencil-t1",
			want: DeclarationID{Operation: OpUnknown},
		},
		{
			name: "foreign identifier",
			raw:  "urn:uuid:0af2f0d2",
			want: DeclarationID{Operation: OpUnknown},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDeclarationID(tc.raw))
		})
	}
}
