// Package segment tokenizes raw parameter key strings into comparable path
// segments.
//
// Why does this need its own package?
//
// The two parameter conventions this tool reconciles were authored
// independently: HSON-shaped keys are colon-delimited with a trailing type
// tag ("Speed:float"), while engine-JSON-shaped keys are slash paths that
// sometimes arrive pretty-printed as a list display ("['velocity', 'value']").
// Every comparison between the two sides goes through the normalizers in this
// package, so the matching rules live here, in one place, and nowhere else.
package segment

import (
	"regexp"
	"strings"
)

var (
	edgeBrackets = regexp.MustCompile(`^[\[\]{}()<>]+|[\[\]{}()<>]+$`)
	nonPathChars = regexp.MustCompile(`[^0-9a-z_/]`)
	nonAlnum     = regexp.MustCompile(`[^0-9a-z]`)
)

// typeTags is the set of recognized trailing type tags on HSON parameter names.
var typeTags = map[string]bool{
	"float":  true,
	"int":    true,
	"string": true,
	"bool":   true,
	"list":   true,
}

// IsTypeTag reports whether s is one of the recognized parameter type tags.
func IsTypeTag(s string) bool {
	return typeTags[s]
}

// Normalize splits a raw path string into lowercase segments. Surrounding
// bracket characters and quotes are stripped, anything outside [0-9a-z_/] is
// removed, and the remainder is split on '/'.
func Normalize(raw string) []string {
	s := strings.TrimSpace(raw)
	s = edgeBrackets.ReplaceAllString(s, "")
	s = strings.Trim(s, `'"`)
	s = strings.ToLower(s)
	s = nonPathChars.ReplaceAllString(s, "")

	var segs []string
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// ExtractJSONSegments is Normalize plus recognition of the literal list
// display form "[a, b, c]": each comma-separated quoted token becomes a
// segment verbatim (lowercased), bypassing the character-stripping path.
func ExtractJSONSegments(raw string) []string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && strings.Contains(s, ",") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		var segs []string
		for _, part := range strings.Split(inner, ",") {
			p := strings.Trim(strings.TrimSpace(part), `'"`)
			if p != "" {
				segs = append(segs, strings.ToLower(p))
			}
		}
		return segs
	}
	return Normalize(s)
}

// NormalizeSegment collapses a single segment to lowercase alphanumerics.
// Deliberately coarser than Normalize (underscores go too) so that matching
// tolerates delimiter-style differences between the two authoring conventions.
func NormalizeSegment(seg string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(seg), "")
}

// MatchSegment reports whether the colon-delimited base path appears as a
// contiguous, order-preserving run anywhere in segs. Both sides are compared
// through NormalizeSegment.
func MatchSegment(base string, segs []string) bool {
	parts := strings.Split(base, ":")
	baseNorm := make([]string, len(parts))
	for i, p := range parts {
		baseNorm[i] = NormalizeSegment(p)
	}
	segsNorm := make([]string, len(segs))
	for i, s := range segs {
		segsNorm[i] = NormalizeSegment(s)
	}

	for i := 0; i+len(baseNorm) <= len(segsNorm); i++ {
		match := true
		for j := range baseNorm {
			if segsNorm[i+j] != baseNorm[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// StripTypeSuffix removes a trailing ":float|:int|:string|:bool|:list" tag
// from a raw parameter name and returns the lowercased base path. Names
// without a recognized tag are lowercased unchanged.
func StripTypeSuffix(raw string) string {
	parts := strings.Split(raw, ":")
	if len(parts) > 1 && typeTags[strings.ToLower(parts[len(parts)-1])] {
		raw = strings.Join(parts[:len(parts)-1], ":")
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
