// Package svcol reads and writes sector visibility collision JSON: box
// volumes that toggle stage sectors on and off as the player moves through.
package svcol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/geom"
)

const (
	// Magic identifies a sector visibility collision file.
	Magic   = 1398162255
	Version = 1
)

// Shape is one visibility volume in editor space, Z up.
type Shape struct {
	Name     string
	Position geom.Vec3
	Rotation geom.Quat

	Width, Height, Depth float64

	Priority    int
	SkySectorID int

	EnabledSectors  []int
	DisabledSectors []int

	// Extra carries scalar keys this tool does not model, preserved across
	// a decode/encode cycle.
	Extra map[string]any
}

type n10 float64

func (n n10) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, geom.Round(float64(n), 10), 'f', -1, 64), nil
}

type vec3JSON struct {
	X n10 `json:"x"`
	Y n10 `json:"y"`
	Z n10 `json:"z"`
}

type quatJSON struct {
	X n10 `json:"x"`
	Y n10 `json:"y"`
	Z n10 `json:"z"`
	W n10 `json:"w"`
}

type sectorFilterJSON struct {
	SectorID int  `json:"sectorId"`
	Enabled  bool `json:"enabled"`
}

type shapeJSON struct {
	Name                    string             `json:"name"`
	Priority                int                `json:"priority"`
	Type                    string             `json:"type"`
	Width                   n10                `json:"width"`
	Height                  n10                `json:"height"`
	Depth                   n10                `json:"depth"`
	Position                vec3JSON           `json:"position"`
	Rotation                quatJSON           `json:"rotation"`
	AABBMin                 vec3JSON           `json:"aabbMin"`
	AABBMax                 vec3JSON           `json:"aabbMax"`
	SkySectorID             int                `json:"skySectorId"`
	GroundSectorFilterCount int                `json:"groundSectorFilterCount"`
	GroundSectorFilters     []sectorFilterJSON `json:"groundSectorFilters"`
}

type fileJSON struct {
	Magic      uint32            `json:"magic"`
	Version    int               `json:"version"`
	ShapeCount int               `json:"shapeCount"`
	Shapes     []json.RawMessage `json:"shapes"`
}

// Encode renders the shapes into the engine layout. Positions, rotations and
// bounds come out in engine space; anything in a shape's Extra map is
// appended to its JSON object untouched.
func Encode(ctx context.Context, shapes []*Shape) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	file := fileJSON{Magic: Magic, Version: Version, Shapes: []json.RawMessage{}}
	for _, s := range shapes {
		x, y, z := geom.ToSourcePosition(s.Position)
		q := s.Rotation.Mul(geom.RotY(90))

		half := geom.Vec3{X: s.Width / 2, Y: s.Height / 2, Z: s.Depth / 2}
		entry := shapeJSON{
			Name:        strings.SplitN(s.Name, ".", 2)[0],
			Priority:    s.Priority,
			Type:        "OBB",
			Width:       n10(s.Width),
			Height:      n10(s.Height),
			Depth:       n10(s.Depth),
			Position:    vec3JSON{X: n10(x), Y: n10(y), Z: n10(z)},
			Rotation:    quatJSON{X: n10(q.X), Y: n10(q.Y), Z: n10(q.Z), W: n10(q.W)},
			AABBMin:     vec3JSON{X: n10(x - half.X), Y: n10(y - half.Y), Z: n10(z - half.Z)},
			AABBMax:     vec3JSON{X: n10(x + half.X), Y: n10(y + half.Y), Z: n10(z + half.Z)},
			SkySectorID: s.SkySectorID,
		}
		for _, sector := range s.EnabledSectors {
			entry.GroundSectorFilters = append(entry.GroundSectorFilters, sectorFilterJSON{SectorID: sector, Enabled: true})
		}
		for _, sector := range s.DisabledSectors {
			entry.GroundSectorFilters = append(entry.GroundSectorFilters, sectorFilterJSON{SectorID: sector, Enabled: false})
		}
		entry.GroundSectorFilterCount = len(entry.GroundSectorFilters)
		if entry.GroundSectorFilters == nil {
			entry.GroundSectorFilters = []sectorFilterJSON{}
		}

		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s.Name, err)
		}
		raw, err = appendExtra(raw, s.Extra)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s.Name, err)
		}
		file.Shapes = append(file.Shapes, raw)
	}
	file.ShapeCount = len(file.Shapes)

	logger.Debug("svcol encoded", "shapes", len(file.Shapes))
	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode svcol: %w", err)
	}
	return append(data, '\n'), nil
}

// appendExtra splices extra keys into an already-marshalled JSON object,
// just before its closing brace, in sorted key order.
func appendExtra(obj []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(bytes.TrimRight(bytes.TrimSpace(obj), "}"))
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(extra[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// standardShapeKeys are the keys the decoder models; everything else lands
// in Extra when it is a scalar.
var standardShapeKeys = map[string]bool{
	"name":                    true,
	"priority":                true,
	"type":                    true,
	"width":                   true,
	"height":                  true,
	"depth":                   true,
	"position":                true,
	"rotation":                true,
	"aabbMin":                 true,
	"aabbMax":                 true,
	"skySectorId":             true,
	"groundSectorFilterCount": true,
	"groundSectorFilters":     true,
}

// Decode parses a sector visibility collision file back into editor-space
// shapes. Bounds are derived data and are dropped.
func Decode(ctx context.Context, data []byte) ([]*Shape, error) {
	logger := ctxlog.FromContext(ctx)

	var file struct {
		Magic  uint32            `json:"magic"`
		Shapes []json.RawMessage `json:"shapes"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse svcol: %w", err)
	}
	if file.Magic != Magic {
		return nil, fmt.Errorf("not a svcol file: magic %d", file.Magic)
	}

	shapes := make([]*Shape, 0, len(file.Shapes))
	for i, raw := range file.Shapes {
		var entry struct {
			Name                string                       `json:"name"`
			Priority            int                          `json:"priority"`
			Width               float64                      `json:"width"`
			Height              float64                      `json:"height"`
			Depth               float64                      `json:"depth"`
			Position            struct{ X, Y, Z float64 }    `json:"position"`
			Rotation            struct{ X, Y, Z, W float64 } `json:"rotation"`
			SkySectorID         int                          `json:"skySectorId"`
			GroundSectorFilters []sectorFilterJSON           `json:"groundSectorFilters"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}

		q := geom.Quat{X: entry.Rotation.X, Y: entry.Rotation.Y, Z: entry.Rotation.Z, W: entry.Rotation.W}
		s := &Shape{
			Name:        entry.Name,
			Priority:    entry.Priority,
			SkySectorID: entry.SkySectorID,
			Position:    geom.FromSourcePosition(entry.Position.X, entry.Position.Y, entry.Position.Z),
			Rotation:    q.Mul(geom.RotY(-90)),
			Width:       entry.Width,
			Height:      entry.Height,
			Depth:       entry.Depth,
		}
		for _, f := range entry.GroundSectorFilters {
			if f.Enabled {
				s.EnabledSectors = append(s.EnabledSectors, f.SectorID)
			} else {
				s.DisabledSectors = append(s.DisabledSectors, f.SectorID)
			}
		}

		var all map[string]json.RawMessage
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
		for key, msg := range all {
			if standardShapeKeys[key] {
				continue
			}
			var v any
			if err := json.Unmarshal(msg, &v); err != nil {
				continue
			}
			switch v.(type) {
			case string, float64, bool:
				if s.Extra == nil {
					s.Extra = map[string]any{}
				}
				s.Extra[key] = v
			}
		}
		shapes = append(shapes, s)
	}

	logger.Debug("svcol decoded", "shapes", len(shapes))
	return shapes, nil
}
