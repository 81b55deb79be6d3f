package template

import (
	"regexp"
	"sort"
)

var namePrefix = regexp.MustCompile(`^[0-9A-Z]+_(.*)$`)

// StripPrefix removes the category prefix from an object-type name:
// "0010_EnemyBeeeton" becomes "EnemyBeeeton". Names without a prefix are
// returned unchanged.
func StripPrefix(name string) string {
	if m := namePrefix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// ObjectFor finds the template entry for an object type. Exact name match
// wins; otherwise the prefixed entries are scanned in sorted-key order so
// that "EnemyBeeeton" still finds "0010_EnemyBeeeton".
func (t *Template) ObjectFor(typeName string) (*Object, bool) {
	if obj, ok := t.Objects[typeName]; ok {
		return obj, true
	}
	keys := make([]string, 0, len(t.Objects))
	for k := range t.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if StripPrefix(k) == typeName {
			return t.Objects[k], true
		}
	}
	return nil, false
}

// ResolveFields returns the full field list of a struct with inherited
// fields first, walking the parent chain recursively. Unknown struct names
// and inheritance cycles resolve to what has been collected so far.
func (t *Template) ResolveFields(name string) []*Field {
	return t.resolveFields(name, map[string]bool{})
}

func (t *Template) resolveFields(name string, visited map[string]bool) []*Field {
	if visited[name] {
		return nil
	}
	visited[name] = true
	st, ok := t.Structs[name]
	if !ok || st == nil {
		return nil
	}
	var fields []*Field
	if st.Parent != "" {
		fields = append(fields, t.resolveFields(st.Parent, visited)...)
	}
	return append(fields, st.Fields...)
}

// FieldsWithParents returns the struct's own fields followed by its
// ancestors' declared fields, one level of declaration per struct with no
// recursion into grandparent substructures beyond the chain itself. This is
// the lookup used when resolving fields of an inline or array substruct; the
// order differs from ResolveFields on purpose.
func (t *Template) FieldsWithParents(name string) []*Field {
	seen := map[string]bool{}
	var fields []*Field
	for name != "" && !seen[name] {
		seen[name] = true
		st, ok := t.Structs[name]
		if !ok || st == nil {
			break
		}
		fields = append(fields, st.Fields...)
		name = st.Parent
	}
	return fields
}
