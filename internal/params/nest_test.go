package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestFlatten(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"Health": cty.NumberIntVal(100),
		"Move": cty.ObjectVal(map[string]cty.Value{
			"Speed": cty.NumberFloatVal(2.5),
		}),
		"Route": cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
		"Empty": cty.EmptyObjectVal,
	})

	bag := FlatBag{}
	Flatten(v, "", bag)

	require.Len(t, bag, 3)
	assert.True(t, bag["Health"].RawEquals(cty.NumberIntVal(100)))
	assert.True(t, bag["Move:Speed"].RawEquals(cty.NumberFloatVal(2.5)))
	// Scalar lists are leaves, not recursion points.
	assert.True(t, bag["Route"].Type().IsTupleType())
	assert.NotContains(t, bag, "Empty")
}

func TestFlatten_ObjectArray(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"Routes": cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{"Speed": cty.NumberFloatVal(7)}),
			cty.ObjectVal(map[string]cty.Value{"Speed": cty.NumberFloatVal(9)}),
		}),
	})

	bag := FlatBag{}
	Flatten(v, "", bag)

	require.Len(t, bag, 2)
	assert.True(t, bag["Routes0:Speed"].RawEquals(cty.NumberFloatVal(7)))
	assert.True(t, bag["Routes1:Speed"].RawEquals(cty.NumberFloatVal(9)))
}

func TestNest(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		bag := FlatBag{
			"Health":     cty.NumberIntVal(100),
			"Move:Speed": cty.NumberFloatVal(2.5),
		}
		nested := Nest(bag)

		again := FlatBag{}
		Flatten(nested, "", again)
		assert.Equal(t, bag, again)
	})

	t.Run("indexed segment becomes array slot", func(t *testing.T) {
		bag := FlatBag{
			"foo3:bar": cty.StringVal("x"),
		}
		nested := Nest(bag)

		foo := nested.GetAttr("foo")
		require.True(t, foo.Type().IsTupleType())
		require.Equal(t, 4, foo.LengthInt())

		// Slots 0..2 are padding.
		assert.True(t, foo.Index(cty.NumberIntVal(0)).RawEquals(cty.EmptyObjectVal))
		assert.Equal(t, "x", foo.Index(cty.NumberIntVal(3)).GetAttr("bar").AsString())
	})

	t.Run("empty bag", func(t *testing.T) {
		assert.True(t, Nest(FlatBag{}).RawEquals(cty.EmptyObjectVal))
	})
}
