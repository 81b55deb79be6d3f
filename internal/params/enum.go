package params

import (
	"context"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/template"
)

// RegisterEnums attaches selectable options to every enum-kinded parameter
// in the set and reconciles the stored value against the declared keys. A
// stored value that matches no key and no raw value is reset to the enum's
// fallback key with a warning.
func RegisterEnums(ctx context.Context, set *ResolvedSet, tpl *template.Template) {
	logger := ctxlog.FromContext(ctx)

	for _, p := range set.Params {
		if p.Kind != KindEnum {
			continue
		}
		enum := lookupEnum(tpl, p.Type)
		if enum == nil || len(enum.Values) == 0 {
			logger.Debug("No enum declaration found", "path", p.Path, "type", p.Type)
			continue
		}

		p.Options = make([]EnumOption, len(enum.Values))
		for i, ev := range enum.Values {
			p.Options[i] = EnumOption{
				Key:         ev.Key,
				Label:       ev.Name,
				Description: ev.Description,
				Value:       ev.Raw,
			}
		}

		stored := strings.TrimSpace(ValueString(p.Value))
		if _, ok := enum.Value(stored); !ok && !matchesRaw(enum, stored) {
			fallback := enum.FallbackKey()
			set.warnf("enum %q had invalid stored value %q, resetting to %q", p.Path, stored, fallback)
			p.Value = cty.StringVal(fallback)
			stored = fallback
		}
		selectStored(p, stored)
	}
}

// lookupEnum resolves an enum by its full name, then by the short name after
// the "::" separator; templates are inconsistent about which form a field
// declaration uses.
func lookupEnum(tpl *template.Template, name string) *template.Enum {
	if enum, ok := tpl.Enums[name]; ok {
		return enum
	}
	if i := strings.Index(name, "::"); i >= 0 {
		short := name[i+2:]
		if enum, ok := tpl.Enums[short]; ok {
			return enum
		}
		for full, enum := range tpl.Enums {
			if strings.HasSuffix(full, "::"+short) {
				return enum
			}
		}
	}
	return nil
}

func matchesRaw(enum *template.Enum, stored string) bool {
	for _, ev := range enum.Values {
		if ev.Raw == stored {
			return true
		}
	}
	return false
}

// selectStored marks the option matching the stored value, comparing
// case-insensitively against both key and raw value; with no match the first
// option is selected.
func selectStored(p *Param, stored string) {
	needle := strings.ToLower(strings.TrimSpace(stored))
	for i := range p.Options {
		if strings.ToLower(p.Options[i].Key) == needle || strings.ToLower(p.Options[i].Value) == needle {
			p.SelectOption(i)
			return
		}
	}
	p.SelectOption(0)
}
