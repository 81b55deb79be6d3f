// Package template models the JSON "template" schema that drives parameter
// resolution: object types, their struct layout, and enums.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Template is a fully parsed template file. It is immutable after Parse and
// safe to share by reference.
type Template struct {
	Format  string             `json:"format"`
	Objects map[string]*Object `json:"objects"`
	Structs map[string]*Struct `json:"structs"`
	Enums   map[string]*Enum   `json:"enums"`
}

// Object maps an object-type name to its struct plus optional literal
// default field values.
type Object struct {
	Struct   string
	Defaults map[string]cty.Value
}

// UnmarshalJSON splits the "struct" key from the remaining keys, which are
// literal per-object field defaults of arbitrary JSON shape.
func (o *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Defaults = make(map[string]cty.Value)
	for key, msg := range raw {
		if key == "struct" {
			if err := json.Unmarshal(msg, &o.Struct); err != nil {
				return fmt.Errorf("object struct name: %w", err)
			}
			continue
		}
		ty, err := ctyjson.ImpliedType(msg)
		if err != nil {
			return fmt.Errorf("object default %q: %w", key, err)
		}
		val, err := ctyjson.Unmarshal(msg, ty)
		if err != nil {
			return fmt.Errorf("object default %q: %w", key, err)
		}
		o.Defaults[key] = val
	}
	return nil
}

// Struct is a named, optionally-inherited collection of field declarations.
type Struct struct {
	Parent string   `json:"parent"`
	Fields []*Field `json:"fields"`
}

// Field is a single typed field declaration within a struct.
type Field struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	ArraySize int    `json:"array_size,omitempty"`
}

// Size returns the declared array size, defaulting to 1 when absent.
func (f *Field) Size() int {
	if f.ArraySize > 0 {
		return f.ArraySize
	}
	return 1
}

// Enum is a named set of selectable values. Declaration order is preserved:
// "first declared key" is the fallback of last resort throughout resolution.
type Enum struct {
	DefaultKey string
	Values     []*EnumValue
}

// EnumValue is one selectable entry of an enum.
type EnumValue struct {
	Key         string
	Name        string
	Description string
	Raw         string
}

// UnmarshalJSON decodes an enum via the token stream so that the declaration
// order of the "values" object survives; encoding/json maps would lose it.
func (e *Enum) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		switch key {
		case "default_key":
			if err := dec.Decode(&e.DefaultKey); err != nil {
				return fmt.Errorf("enum default_key: %w", err)
			}
		case "values":
			if err := e.decodeValues(dec); err != nil {
				return err
			}
		default:
			var skip any
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	_, err := dec.Token() // closing '}'
	return err
}

func (e *Enum) decodeValues(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		var info struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Value       any    `json:"value"`
		}
		if err := dec.Decode(&info); err != nil {
			return fmt.Errorf("enum value %q: %w", key, err)
		}
		e.Values = append(e.Values, &EnumValue{
			Key:         key,
			Name:        info.Name,
			Description: info.Description,
			Raw:         rawString(info.Value),
		})
	}
	_, err := dec.Token() // closing '}'
	return err
}

// rawString renders an enum entry's raw value the way it was declared:
// json.Number keeps "3" and "3.0" distinct, which matters for raw-value
// matching against imported data.
func rawString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}

// Value returns the enum entry for key, if declared.
func (e *Enum) Value(key string) (*EnumValue, bool) {
	for _, ev := range e.Values {
		if ev.Key == key {
			return ev, true
		}
	}
	return nil, false
}

// FallbackKey returns the declared default key when it is valid, otherwise
// the first declared key, otherwise "".
func (e *Enum) FallbackKey() string {
	if e.DefaultKey != "" {
		if _, ok := e.Value(e.DefaultKey); ok {
			return e.DefaultKey
		}
	}
	if len(e.Values) > 0 {
		return e.Values[0].Key
	}
	return ""
}

func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || rune(d) != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}

// Parse decodes a template file. Comments and trailing commas are tolerated;
// templates are hand-edited and routinely annotated.
func Parse(data []byte) (*Template, error) {
	var tpl Template
	if err := json.Unmarshal(jsonc.ToJSON(data), &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &tpl, nil
}
