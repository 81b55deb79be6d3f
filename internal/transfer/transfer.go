package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/params"
	"github.com/he2tools/he2kit/internal/segment"
)

// Result reports, per source parameter path, whether its value reached the
// target set. A source whose only matches were excluded appears in neither
// set.
type Result struct {
	Transferred    map[string]struct{}
	NotTransferred map[string]struct{}
}

// Transfer copies values from src onto dst in place. For every source
// parameter the target set is searched for paths containing the source's
// base path as a contiguous run; failing that, the configured aliases are
// tried in order and the first alias with at least one match wins. Every
// matching target receives the value.
func Transfer(ctx context.Context, src, dst *params.ResolvedSet, cfg *Config) *Result {
	logger := ctxlog.FromContext(ctx)
	if cfg == nil {
		cfg = &Config{}
	}
	res := &Result{
		Transferred:    map[string]struct{}{},
		NotTransferred: map[string]struct{}{},
	}

	for _, s := range src.Params {
		base := segment.StripTypeSuffix(s.Name())

		targets := findTargets(dst, base)
		if len(targets) == 0 {
			for _, cand := range cfg.Aliases[base] {
				if targets = findAliasTargets(dst, cand); len(targets) > 0 {
					logger.Debug("Matched through alias", "path", s.Path, "alias", cand)
					break
				}
			}
		}

		excludedAny := false
		kept := targets[:0:0]
		for _, d := range targets {
			if _, skip := cfg.Excluded[slashPath(d)]; skip {
				logger.Debug("Target excluded from transfer", "source", s.Path, "target", d.Path)
				excludedAny = true
				continue
			}
			kept = append(kept, d)
		}

		if len(kept) == 0 {
			if !excludedAny {
				res.NotTransferred[s.Path] = struct{}{}
			}
			continue
		}

		copied := false
		for _, d := range kept {
			if err := copyValue(s, d, inferType(d)); err != nil {
				logger.Warn("Failed to copy parameter value", "source", s.Path, "target", d.Path, "error", err)
				continue
			}
			copied = true
		}
		if copied {
			res.Transferred[s.Path] = struct{}{}
		} else {
			res.NotTransferred[s.Path] = struct{}{}
		}
	}

	logger.Debug("Transfer finished", "transferred", len(res.Transferred), "not_transferred", len(res.NotTransferred))
	return res
}

// findTargets returns every target parameter whose segments contain the
// base path as a contiguous run.
func findTargets(dst *params.ResolvedSet, base string) []*params.Param {
	var out []*params.Param
	for _, d := range dst.Params {
		if segment.MatchSegment(base, targetSegments(d)) {
			out = append(out, d)
		}
	}
	return out
}

// findAliasTargets returns every target parameter matching the alias
// candidate.
func findAliasTargets(dst *params.ResolvedSet, cand string) []*params.Param {
	candSegs := segment.ExtractJSONSegments(cand)
	if len(candSegs) == 0 {
		return nil
	}
	var out []*params.Param
	for _, d := range dst.Params {
		if matchAliasCandidate(targetSegments(d), candSegs) {
			out = append(out, d)
		}
	}
	return out
}

// typedLeafTags are the leaf tags a single-segment alias may pair with.
// "list" is deliberately absent: list-valued leaves never rename this way.
var typedLeafTags = map[string]bool{
	"float":  true,
	"int":    true,
	"bool":   true,
	"string": true,
}

// matchAliasCandidate implements the two alias conventions: a one-segment
// candidate matches a target shaped exactly [base, <typed leaf>], and any
// candidate matches a target whose segment set contains every candidate
// segment, order-independent.
func matchAliasCandidate(dstSegs, candSegs []string) bool {
	if len(candSegs) == 1 && len(dstSegs) == 2 &&
		segment.NormalizeSegment(dstSegs[0]) == segment.NormalizeSegment(candSegs[0]) &&
		typedLeafTags[dstSegs[1]] {
		return true
	}
	present := make(map[string]bool, len(dstSegs))
	for _, seg := range dstSegs {
		present[segment.NormalizeSegment(seg)] = true
	}
	for _, seg := range candSegs {
		if !present[segment.NormalizeSegment(seg)] {
			return false
		}
	}
	return true
}

// targetSegments renders a target parameter into comparable segments, the
// trailing kind tag included: the typed-leaf alias convention pins the
// expected type as the last segment.
func targetSegments(p *params.Param) []string {
	return strings.Split(strings.ToLower(p.Name()), ":")
}

func slashPath(p *params.Param) string {
	return strings.ReplaceAll(segment.StripTypeSuffix(p.Name()), ":", "/")
}

func inferType(p *params.Param) string {
	if len(p.Options) > 0 {
		return "enum"
	}
	return string(p.Kind)
}

// copyValue coerces the source value onto the target's type. A value that
// cannot be represented leaves the target untouched.
func copyValue(src, dst *params.Param, dataType string) error {
	switch dataType {
	case "float", "int":
		n, err := convert.Convert(src.Value, cty.Number)
		if err != nil || n.IsNull() {
			return fmt.Errorf("value %s is not numeric", params.ValueString(src.Value))
		}
		dst.Value = n
	case "bool":
		b, err := convert.Convert(src.Value, cty.Bool)
		if err != nil || b.IsNull() {
			return fmt.Errorf("value %s is not boolean", params.ValueString(src.Value))
		}
		dst.Value = b
	case "string":
		dst.Value = cty.StringVal(firstString(src.Value))
	case "list":
		dst.Value = asStringList(src.Value)
	case "enum":
		copyEnumSelection(src, dst)
	default:
		return fmt.Errorf("unknown data type %q", dataType)
	}
	return nil
}

func firstString(v cty.Value) string {
	if v != cty.NilVal && !v.IsNull() && v.Type().IsTupleType() {
		if v.LengthInt() == 0 {
			return ""
		}
		return params.ValueString(v.Index(cty.NumberIntVal(0)))
	}
	return params.ValueString(v)
}

func asStringList(v cty.Value) cty.Value {
	if v != cty.NilVal && !v.IsNull() && (v.Type().IsTupleType() || v.Type().IsListType()) {
		if v.LengthInt() == 0 {
			return cty.TupleVal([]cty.Value{cty.StringVal("")})
		}
		elems := make([]cty.Value, 0, v.LengthInt())
		for _, elem := range v.AsValueSlice() {
			elems = append(elems, cty.StringVal(params.ValueString(elem)))
		}
		return cty.TupleVal(elems)
	}
	return cty.TupleVal([]cty.Value{cty.StringVal(params.ValueString(v))})
}

// copyEnumSelection carries selection state across by option position. The
// two enums may disagree on length; positions beyond the shorter list keep
// whatever the target already had. Positional pairing mirrors how paired
// templates declare their enums; reordered declarations will mis-pair.
func copyEnumSelection(src, dst *params.Param) {
	n := len(src.Options)
	if len(dst.Options) < n {
		n = len(dst.Options)
	}
	for i := 0; i < n; i++ {
		dst.Options[i].Selected = src.Options[i].Selected
	}
	if sel, ok := dst.SelectedOption(); ok {
		dst.Value = cty.StringVal(sel.Value)
	}
}
