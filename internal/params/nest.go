package params

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// FlatBag holds parameter values keyed by their colon-joined path, the form
// both the resolver and the HSON round-trip operate on.
type FlatBag map[string]cty.Value

// arrayKey matches a path segment carrying a trailing array index, e.g.
// "routes3". The letters become the field name and the digits the index.
var arrayKey = regexp.MustCompile(`^([a-zA-Z_]+)([0-9]+)$`)

// Flatten walks a cty value and writes every leaf into bag under its
// colon-joined path. Objects and maps are descended in sorted attribute
// order. Tuples of objects expand into indexed "<name><i>" keys, the inverse
// of what Nest assembles; tuples of scalars stay whole, they are leaf values
// here. Empty objects contribute nothing.
func Flatten(v cty.Value, prefix string, bag FlatBag) {
	if v.IsNull() {
		bag[prefix] = v
		return
	}
	ty := v.Type()
	if (ty.IsTupleType() || ty.IsListType()) && v.LengthInt() > 0 && allObjects(v) {
		for i, elem := range v.AsValueSlice() {
			Flatten(elem, prefix+strconv.Itoa(i), bag)
		}
		return
	}
	if ty.IsObjectType() || ty.IsMapType() {
		attrs := v.AsValueMap()
		if len(attrs) == 0 {
			return
		}
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			key := name
			if prefix != "" {
				key = prefix + ":" + name
			}
			Flatten(attrs[name], key, bag)
		}
		return
	}
	bag[prefix] = v
}

// Nest reassembles a FlatBag into a single nested cty object. Path segments
// are split on ':', segments with a trailing index become array slots, and
// gaps left by sparse indices are padded with empty objects.
func Nest(bag FlatBag) cty.Value {
	root := map[string]any{}
	keys := make([]string, 0, len(bag))
	for key := range bag {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		insert(root, strings.Split(key, ":"), bag[key])
	}
	return toCty(root)
}

func insert(node map[string]any, segs []string, v cty.Value) {
	head, rest := segs[0], segs[1:]

	if m := arrayKey.FindStringSubmatch(head); m != nil {
		name := m[1]
		idx, _ := strconv.Atoi(m[2])
		slice, _ := node[name].([]any)
		for len(slice) <= idx {
			slice = append(slice, map[string]any{})
		}
		node[name] = slice
		elem, _ := slice[idx].(map[string]any)
		if len(rest) == 0 {
			slice[idx] = v
			return
		}
		if elem == nil {
			elem = map[string]any{}
			slice[idx] = elem
		}
		insert(elem, rest, v)
		return
	}

	if len(rest) == 0 {
		node[head] = v
		return
	}
	child, _ := node[head].(map[string]any)
	if child == nil {
		child = map[string]any{}
		node[head] = child
	}
	insert(child, rest, v)
}

func toCty(v any) cty.Value {
	switch node := v.(type) {
	case map[string]any:
		if len(node) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(node))
		for name, child := range node {
			attrs[name] = toCty(child)
		}
		return cty.ObjectVal(attrs)
	case []any:
		if len(node) == 0 {
			return cty.EmptyTupleVal
		}
		elems := make([]cty.Value, len(node))
		for i, child := range node {
			elems[i] = toCty(child)
		}
		return cty.TupleVal(elems)
	case cty.Value:
		return node
	default:
		return cty.NilVal
	}
}
