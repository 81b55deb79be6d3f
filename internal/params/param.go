// Package params resolves an object's imported parameter values against its
// template schema into a typed, ordered parameter set.
package params

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Kind classifies how a resolved parameter is edited and serialized.
type Kind string

const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindEnum   Kind = "enum"
	KindVector Kind = "vector"
	KindList   Kind = "list"
)

// EnumOption is one selectable choice of an enum-kinded parameter.
type EnumOption struct {
	Key         string
	Label       string
	Description string
	Value       string
	Selected    bool
}

// Param is a single resolved parameter.
type Param struct {
	Path    string
	Type    string
	Kind    Kind
	Value   cty.Value
	Options []EnumOption
}

// Name returns the parameter's display name, the path with its kind tag.
func (p *Param) Name() string {
	return p.Path + ":" + string(p.Kind)
}

// SelectOption marks option i selected and deselects the rest, updating the
// stored value to the option's raw value.
func (p *Param) SelectOption(i int) {
	if i < 0 || i >= len(p.Options) {
		return
	}
	for j := range p.Options {
		p.Options[j].Selected = j == i
	}
	p.Value = cty.StringVal(p.Options[i].Value)
}

// SelectedOption returns the currently selected enum option, if any.
func (p *Param) SelectedOption() (*EnumOption, bool) {
	for i := range p.Options {
		if p.Options[i].Selected {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// ResolvedSet is the ordered outcome of resolving one object's parameters.
type ResolvedSet struct {
	Params   []*Param
	Types    map[string]string
	Warnings []string

	byPath map[string]*Param
}

func newResolvedSet() *ResolvedSet {
	return &ResolvedSet{
		Types:  map[string]string{},
		byPath: map[string]*Param{},
	}
}

func (s *ResolvedSet) add(p *Param) {
	s.Params = append(s.Params, p)
	s.byPath[p.Path] = p
}

// Lookup returns the parameter at the given flat path.
func (s *ResolvedSet) Lookup(path string) (*Param, bool) {
	p, ok := s.byPath[path]
	return p, ok
}

func (s *ResolvedSet) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// FlatBag renders the set back into path-keyed values, ready for Nest.
func (s *ResolvedSet) FlatBag() FlatBag {
	bag := make(FlatBag, len(s.Params))
	for _, p := range s.Params {
		bag[p.Path] = p.Value
	}
	return bag
}
