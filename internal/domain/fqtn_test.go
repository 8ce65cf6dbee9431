package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFQTN(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FQTN
		wantErr bool
	}{
		{name: "three_part", input: "main.sales.orders", want: FQTN{Catalog: "main", Schema: "sales", Table: "orders"}},
		{name: "two_part", input: "sales.orders", want: FQTN{Schema: "sales", Table: "orders"}},
		{name: "one_part", input: "orders", wantErr: true},
		{name: "four_part", input: "a.b.c.d", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "empty_middle", input: "a..c", wantErr: true},
		{name: "trailing_dot", input: "a.b.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFQTN(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFQTN_RoundTrip(t *testing.T) {
	for _, in := range []string{
		"a.b",
		"a.b.c",
		"Main.Sales.Orders",
		"cat_1.schema-2.table$3",
		"`q`.b.c",
	} {
		t.Run(in, func(t *testing.T) {
			n, err := ParseFQTN(in)
			require.NoError(t, err)
			assert.Equal(t, in, n.String())
			assert.Len(t, n.Parts(), len(splitDots(in)))
		})
	}
}

func splitDots(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func TestFQTN_CatalogPart(t *testing.T) {
	c, ok := MustParseFQTN("a.b.c").CatalogPart()
	assert.True(t, ok)
	assert.Equal(t, "a", c)

	c, ok = MustParseFQTN("b.c").CatalogPart()
	assert.False(t, ok)
	assert.Empty(t, c)
}

func TestFQTN_WithPartsUnchanged(t *testing.T) {
	n := MustParseFQTN("a.b.c")
	same := n.WithParts("a", "b", "c")
	assert.Equal(t, n, same)
	assert.Equal(t, n, n.WithCatalog("a").WithSchema("b").WithTable("c"))

	changed := n.WithSchema("x")
	assert.Equal(t, "a.x.c", changed.String())
	assert.Equal(t, "a.b.c", n.String(), "receiver must not be modified")
}

func TestFQTN_EqualFold(t *testing.T) {
	assert.True(t, MustParseFQTN("A.b.C").EqualFold(MustParseFQTN("a.B.c")))
	assert.False(t, MustParseFQTN("a.b.c").EqualFold(MustParseFQTN("b.c")))
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		input   string
		depth   int
		wantErr bool
	}{
		{input: "main", depth: 1},
		{input: "main.sales", depth: 2},
		{input: "main.sales.orders", depth: 3},
		{input: "", wantErr: true},
		{input: "a.b.c.d", wantErr: true},
		{input: "a..c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseScope(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.depth, s.Depth())
			assert.Equal(t, tt.input, s.String())
			_, isTable := s.FQTN()
			assert.Equal(t, tt.depth == 3, isTable)
		})
	}
}
