// Package hson reads and writes HSON scene documents: the JSON object
// container the stage editor exchanges with this tool.
package hson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/he2tools/he2kit/internal/params"
)

// Document is one HSON scene file.
type Document struct {
	Objects []*Object `json:"objects"`
}

// Object is a placed scene object. Parameters and tags stay raw until a
// caller asks for the flattened view; most objects pass through untouched.
type Object struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Type       string          `json:"type,omitempty"`
	ParentID   string          `json:"parentId,omitempty"`
	Position   []float64       `json:"position,omitempty"`
	Rotation   []float64       `json:"rotation,omitempty"`
	Scale      []float64       `json:"scale,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Tags       json.RawMessage `json:"tags,omitempty"`
}

// Decode parses an HSON document. Comments and trailing commas are
// tolerated; hand-patched scene files are a fact of life.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse hson document: %w", err)
	}
	return &doc, nil
}

// Encode renders the document with the editor's four-space indentation.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode hson document: %w", err)
	}
	return append(data, '\n'), nil
}

// EnsureID assigns a fresh brace-wrapped uppercase UUID when the object has
// none, and returns the id in force.
func (o *Object) EnsureID() string {
	if o.ID == "" {
		o.ID = "{" + strings.ToUpper(uuid.NewString()) + "}"
	}
	return o.ID
}

// BareID returns the id without its surrounding braces.
func (o *Object) BareID() string {
	return strings.Trim(o.ID, "{}")
}

// TypeName returns the object type with any variant suffix after the first
// '.' removed.
func (o *Object) TypeName() string {
	if i := strings.Index(o.Type, "."); i >= 0 {
		return o.Type[:i]
	}
	return o.Type
}

// FlatParams flattens the object's parameters and tags into one path-keyed
// bag; tag values land under the "tags" prefix alongside the parameters.
func (o *Object) FlatParams() (params.FlatBag, error) {
	bag := params.FlatBag{}
	if err := flattenRaw(o.Parameters, "", bag); err != nil {
		return nil, fmt.Errorf("object %s parameters: %w", o.ID, err)
	}
	if err := flattenRaw(o.Tags, "tags", bag); err != nil {
		return nil, fmt.Errorf("object %s tags: %w", o.ID, err)
	}
	return bag, nil
}

func flattenRaw(raw json.RawMessage, prefix string, bag params.FlatBag) error {
	if len(raw) == 0 {
		return nil
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return err
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return err
	}
	params.Flatten(v, prefix, bag)
	return nil
}

// SetFlatParams is the inverse of FlatParams: keys under "tags" are nested
// back into the tags block, everything else into parameters.
func (o *Object) SetFlatParams(bag params.FlatBag) error {
	paramBag := params.FlatBag{}
	tagBag := params.FlatBag{}
	for key, v := range bag {
		if key == "tags" || strings.HasPrefix(key, "tags:") {
			tagBag[strings.TrimPrefix(strings.TrimPrefix(key, "tags"), ":")] = v
			continue
		}
		paramBag[key] = v
	}

	if len(paramBag) > 0 {
		raw, err := marshalNested(paramBag)
		if err != nil {
			return fmt.Errorf("object %s parameters: %w", o.ID, err)
		}
		o.Parameters = raw
	}
	if len(tagBag) > 0 {
		raw, err := marshalNested(tagBag)
		if err != nil {
			return fmt.Errorf("object %s tags: %w", o.ID, err)
		}
		o.Tags = raw
	}
	return nil
}

func marshalNested(bag params.FlatBag) (json.RawMessage, error) {
	v := params.Nest(bag)
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
