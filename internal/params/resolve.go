package params

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/template"
)

// primitiveSubtypes are the field types resolved directly to a value; every
// other type names a struct or an enum.
var primitiveSubtypes = map[string]bool{
	"uint8":            true,
	"uint16":           true,
	"uint32":           true,
	"uint64":           true,
	"int":              true,
	"float":            true,
	"bool":             true,
	"string":           true,
	"vector":           true,
	"vector3":          true,
	"object_reference": true,
}

// Synthetic range fields injected ahead of every object's declared fields.
// The engine reads them from object tags rather than the parameter struct,
// so no template declares them.
const (
	rangeInKey      = "tags:RangeSpawning:rangeIn"
	rangeOutKey     = "tags:RangeSpawning:rangeOut"
	rangeInDefault  = 500.0
	rangeOutDefault = 20.0
)

// Resolve materializes the full parameter set for an object of the given
// type: every field the template declares gets a value, imported values are
// coerced onto the declared types, and enums are registered with their
// selectable options.
func Resolve(ctx context.Context, objectType string, tpl *template.Template, imported FlatBag) (*ResolvedSet, error) {
	logger := ctxlog.FromContext(ctx)

	obj, ok := tpl.ObjectFor(objectType)
	if !ok {
		return nil, fmt.Errorf("no template entry for object type %q", objectType)
	}
	if obj.Struct == "" {
		return nil, fmt.Errorf("object type %q has no struct defined", objectType)
	}
	if _, ok := tpl.Structs[obj.Struct]; !ok {
		return nil, fmt.Errorf("struct %q not found for object type %q", obj.Struct, objectType)
	}

	r := &resolver{
		tpl:      tpl,
		imported: overlayDefaults(obj.Defaults, imported),
		values:   map[string]cty.Value{},
		types:    map[string]string{},
	}

	r.put(rangeInKey, r.importedOr(rangeInKey, cty.NumberFloatVal(rangeInDefault)), "float")
	r.put(rangeOutKey, r.importedOr(rangeOutKey, cty.NumberFloatVal(rangeOutDefault)), "float")

	for _, field := range tpl.ResolveFields(obj.Struct) {
		switch {
		case field.Type == "array" && field.Subtype != "":
			r.arrayField(field)
		case primitiveSubtypes[field.Type] || strings.Contains(field.Type, "::"):
			r.scalarField(field.Name, field.Type)
		default:
			r.structField(field)
		}
	}

	set := newResolvedSet()
	for _, key := range r.keys {
		emit(set, key, r.values[key], r.types[key])
	}
	RegisterEnums(ctx, set, tpl)

	logger.Debug("Parameters resolved", "object_type", objectType, "struct", obj.Struct, "params", len(set.Params), "warnings", len(set.Warnings))
	return set, nil
}

// overlayDefaults flattens the per-object literal defaults underneath the
// imported values; an imported value always wins over a template default.
func overlayDefaults(defaults map[string]cty.Value, imported FlatBag) FlatBag {
	merged := make(FlatBag, len(imported)+len(defaults))
	for key, v := range defaults {
		Flatten(v, key, merged)
	}
	for key, v := range imported {
		merged[key] = v
	}
	return merged
}

// resolver accumulates key/value/type triples in first-insertion order. A
// key written twice keeps its position and takes the newer value.
type resolver struct {
	tpl      *template.Template
	imported FlatBag
	keys     []string
	values   map[string]cty.Value
	types    map[string]string
}

func (r *resolver) put(key string, v cty.Value, typ string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	r.types[key] = typ
}

func (r *resolver) importedOr(key string, fallback cty.Value) cty.Value {
	if v, ok := r.imported[key]; ok && v != cty.NilVal && !v.IsNull() {
		return v
	}
	return fallback
}

func (r *resolver) scalarField(key, typ string) {
	switch {
	case strings.Contains(typ, "::"):
		r.put(key, cty.StringVal(r.resolveEnumKey(typ, r.imported[key])), typ)
	case typ == "object_reference":
		r.put(key, cty.StringVal(ValueString(r.imported[key])), "string")
	default:
		r.put(key, r.importedOr(key, zeroPrimitive(typ)), typ)
	}
}

// structField expands an inline substruct into "<field>:<sub>" keys. Field
// types that name neither a primitive, an enum, nor a known struct are
// skipped; templates carry declarations this tool has no schema for.
func (r *resolver) structField(field *template.Field) {
	if _, ok := r.tpl.Structs[field.Type]; !ok {
		return
	}
	for _, sub := range r.tpl.FieldsWithParents(field.Type) {
		r.subField(field.Name+":"+sub.Name, sub, cty.NilVal)
	}
}

// arrayField handles both flavors of array: arrays of primitives stay a
// single list value padded to the declared size, arrays of structs expand
// into indexed "<field><i>:<sub>" keys.
func (r *resolver) arrayField(field *template.Field) {
	if primitiveSubtypes[field.Subtype] {
		r.put(field.Name, r.primitiveArray(field), field.Subtype)
		return
	}
	if _, ok := r.tpl.Structs[field.Subtype]; !ok {
		return
	}
	// A whole imported array at the field's own key still feeds the
	// per-index subfields; indexed keys win over it.
	arr := r.imported[field.Name]
	for i := 0; i < field.Size(); i++ {
		prefix := field.Name + strconv.Itoa(i) + ":"
		elem := tupleElemObject(arr, i)
		for _, sub := range r.tpl.FieldsWithParents(field.Subtype) {
			fallback := cty.NilVal
			if elem != cty.NilVal && elem.Type().HasAttribute(sub.Name) {
				fallback = elem.GetAttr(sub.Name)
			}
			r.subField(prefix+sub.Name, sub, fallback)
		}
	}
}

// tupleElemObject returns element i of a tuple/list value when it is an
// object, cty.NilVal otherwise.
func tupleElemObject(arr cty.Value, i int) cty.Value {
	if arr == cty.NilVal || arr.IsNull() {
		return cty.NilVal
	}
	ty := arr.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return cty.NilVal
	}
	if i >= arr.LengthInt() {
		return cty.NilVal
	}
	elem := arr.Index(cty.NumberIntVal(int64(i)))
	if elem.IsNull() || !elem.Type().IsObjectType() {
		return cty.NilVal
	}
	return elem
}

// primitiveArray keeps the imported elements and pads the tail with the
// subtype's zero value up to the declared size. An import longer than the
// declared size passes through unchanged.
func (r *resolver) primitiveArray(field *template.Field) cty.Value {
	size := field.Size()
	var elems []cty.Value
	if v, ok := r.imported[field.Name]; ok && v != cty.NilVal && !v.IsNull() {
		ty := v.Type()
		if ty.IsTupleType() || ty.IsListType() {
			if v.LengthInt() >= size {
				return v
			}
			elems = v.AsValueSlice()
		}
	}
	for len(elems) < size {
		elems = append(elems, zeroPrimitive(field.Subtype))
	}
	return cty.TupleVal(elems)
}

// subField resolves one field of a substruct at its already-prefixed key,
// preferring the imported value at that key, then the fallback element
// value. Enum-typed subfields keep whatever string was stored; key
// resolution against the enum happens only for top-level fields.
func (r *resolver) subField(key string, sub *template.Field, fallback cty.Value) {
	v := fallback
	if imp, ok := r.imported[key]; ok && imp != cty.NilVal && !imp.IsNull() {
		v = imp
	}
	switch {
	case strings.Contains(sub.Type, "::"):
		r.put(key, cty.StringVal(ValueString(v)), sub.Type)
	case sub.Type == "object_reference":
		r.put(key, cty.StringVal(ValueString(v)), "string")
	case primitiveSubtypes[sub.Type]:
		if v == cty.NilVal || v.IsNull() {
			v = zeroPrimitive(sub.Type)
		}
		r.put(key, v, sub.Type)
	}
}

// resolveEnumKey maps an imported value onto a declared enum key: a value
// that already is a key stays, a value matching a declared raw value maps to
// that key, anything else falls back to the first declared key.
func (r *resolver) resolveEnumKey(enumName string, stored cty.Value) string {
	enum, ok := r.tpl.Enums[enumName]
	if !ok || len(enum.Values) == 0 {
		return ValueString(stored)
	}
	s := ValueString(stored)
	if _, ok := enum.Value(s); ok {
		return s
	}
	for _, ev := range enum.Values {
		if ev.Raw == s {
			return ev.Key
		}
	}
	return enum.Values[0].Key
}

func zeroPrimitive(typ string) cty.Value {
	switch {
	case typ == "float":
		return cty.NumberFloatVal(0)
	case typ == "bool":
		return cty.False
	case typ == "vector3":
		return cty.TupleVal([]cty.Value{cty.Zero, cty.Zero, cty.Zero})
	case typ == "string" || typ == "object_reference":
		return cty.StringVal("")
	case strings.Contains(typ, "int"):
		return cty.NumberIntVal(0)
	case strings.Contains(typ, "float"):
		return cty.NumberFloatVal(0)
	case strings.Contains(typ, "bool"):
		return cty.False
	default:
		return cty.StringVal("")
	}
}

// emit turns a resolved key/value into parameter records. Object values
// expand one key per attribute, tuples whose elements are all objects expand
// one indexed key per element; everything else is a leaf parameter.
func emit(set *ResolvedSet, key string, v cty.Value, typ string) {
	if v != cty.NilVal && !v.IsNull() {
		ty := v.Type()
		if ty.IsObjectType() || ty.IsMapType() {
			attrs := v.AsValueMap()
			names := make([]string, 0, len(attrs))
			for name := range attrs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				emit(set, key+":"+name, attrs[name], typ)
			}
			return
		}
		if ty.IsTupleType() && v.LengthInt() > 0 && allObjects(v) {
			for i, elem := range v.AsValueSlice() {
				emit(set, key+strconv.Itoa(i), elem, typ)
			}
			return
		}
	}
	set.add(createParam(set, key, typ, v))
	set.Types[key] = typ
}

func allObjects(v cty.Value) bool {
	for _, elem := range v.AsValueSlice() {
		if elem.IsNull() || !elem.Type().IsObjectType() {
			return false
		}
	}
	return true
}

// createParam classifies a leaf value into its edit kind and coerces the
// value onto it.
func createParam(set *ResolvedSet, path, typ string, v cty.Value) *Param {
	p := &Param{Path: path, Type: typ}

	switch {
	case strings.Contains(typ, "::"):
		p.Kind = KindEnum
	case isNumberTuple(v, 3):
		p.Kind = KindVector
	case v != cty.NilVal && !v.IsNull() && (v.Type().IsTupleType() || v.Type().IsListType()):
		p.Kind = KindList
	case strings.Contains(typ, "int"):
		p.Kind = KindInt
	case strings.Contains(typ, "float"):
		p.Kind = KindFloat
	case strings.Contains(typ, "bool"):
		p.Kind = KindBool
	case typ == "string":
		p.Kind = KindList
	case typ == "vector3":
		p.Kind = KindVector
	default:
		p.Kind = KindList
	}

	switch p.Kind {
	case KindEnum:
		s := ValueString(v)
		if s == "" {
			s = "0"
		}
		p.Value = cty.StringVal(s)
	case KindVector:
		p.Value = normalizeVector(v)
	case KindList:
		p.Value = normalizeList(v)
	case KindFloat, KindInt:
		if v == cty.NilVal {
			v = cty.NullVal(cty.Number)
		}
		n, err := convert.Convert(v, cty.Number)
		if err != nil || n.IsNull() {
			if err != nil {
				set.warnf("parameter %q: value %s is not numeric, using 0", path, ValueString(v))
			}
			n = cty.Zero
		}
		p.Value = n
	case KindBool:
		if v == cty.NilVal {
			v = cty.NullVal(cty.Bool)
		}
		b, err := convert.Convert(v, cty.Bool)
		if err != nil || b.IsNull() {
			if err != nil {
				set.warnf("parameter %q: value %s is not boolean, using false", path, ValueString(v))
			}
			b = cty.False
		}
		p.Value = b
	}
	return p
}

func isNumberTuple(v cty.Value, n int) bool {
	if v == cty.NilVal || v.IsNull() {
		return false
	}
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return false
	}
	if v.LengthInt() != n {
		return false
	}
	for _, elem := range v.AsValueSlice() {
		if elem.IsNull() || elem.Type() != cty.Number {
			return false
		}
	}
	return true
}

func normalizeVector(v cty.Value) cty.Value {
	if isNumberTuple(v, 3) {
		return cty.TupleVal(v.AsValueSlice())
	}
	return cty.TupleVal([]cty.Value{cty.Zero, cty.Zero, cty.Zero})
}

// normalizeList renders every element to its string form; an absent or
// scalar value becomes a single-element list.
func normalizeList(v cty.Value) cty.Value {
	if v == cty.NilVal || v.IsNull() {
		return cty.TupleVal([]cty.Value{cty.StringVal("")})
	}
	ty := v.Type()
	if ty.IsTupleType() || ty.IsListType() {
		if v.LengthInt() == 0 {
			return cty.TupleVal([]cty.Value{cty.StringVal("")})
		}
		elems := make([]cty.Value, 0, v.LengthInt())
		for _, elem := range v.AsValueSlice() {
			elems = append(elems, cty.StringVal(ValueString(elem)))
		}
		return cty.TupleVal(elems)
	}
	return cty.TupleVal([]cty.Value{cty.StringVal(ValueString(v))})
}

// ValueString renders a cty value the way it is shown and compared
// throughout resolution: minimal number formatting, "true"/"false" booleans,
// "" for null, JSON for anything structured.
func ValueString(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return ""
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	}
	if b, err := ctyjson.Marshal(v, v.Type()); err == nil {
		return string(b)
	}
	return v.GoString()
}
