// Package fxcol reads and writes FX collision JSON files: the volume set
// the engine uses to scope screen effects.
package fxcol

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/geom"
)

const (
	// Magic identifies an fxcol file; four ASCII bytes read as a little
	// endian uint32.
	Magic   = 1180189519
	Version = 1
)

// ShapeKind is the geometric primitive of a shape. Isotropic boxes carry one
// shared border thickness, anisotropic ones a thickness per direction.
type ShapeKind string

const (
	KindCylinder       ShapeKind = "CYLINDER"
	KindIsotropicOBB   ShapeKind = "ISOTROPIC_OBB"
	KindAnisotropicOBB ShapeKind = "ANISOTROPIC_OBB"
)

// ParamKind selects which parameter payload a shape drives.
type ParamKind string

const (
	ParamScene ParamKind = "SCENE_PARAMETER_INDEX"
	ParamLight ParamKind = "LIGHT_PARAMETER_INDEX"
)

// Shape is one collision volume in editor space, Z up.
type Shape struct {
	Name     string
	Kind     ShapeKind
	Param    ParamKind
	Priority int

	Position geom.Vec3
	Rotation geom.Quat

	// OBB extents.
	Width, Height, Depth float64

	// Cylinder extents.
	Radius, HalfHeight float64

	BorderThickness float64

	// Anisotropic border thicknesses.
	WidthHeightBorder   float64
	PositiveDepthBorder float64
	NegativeDepthBorder float64

	// Parameter payload, by Param.
	SceneParameterIndex int
	InterpolationTime   float64
	LightParameterIndex int
}

// Dimensions returns the axis-aligned bounding extents of the shape in
// editor space, before rotation.
func (s *Shape) Dimensions() geom.Vec3 {
	if s.Kind == KindCylinder {
		return geom.Vec3{X: 2 * s.Radius, Y: 2 * s.Radius, Z: 2 * s.HalfHeight}
	}
	return geom.Vec3{X: s.Width, Y: s.Depth, Z: s.Height}
}

// n3 and n6 round on the way out; positions and extents carry three
// decimals, rotations six.
type n3 float64

func (n n3) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, geom.Round(float64(n), 3), 'f', -1, 64), nil
}

type n6 float64

func (n n6) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, geom.Round(float64(n), 6), 'f', -1, 64), nil
}

type vec3JSON struct {
	X n3 `json:"x"`
	Y n3 `json:"y"`
	Z n3 `json:"z"`
}

type quatJSON struct {
	X n6 `json:"x"`
	Y n6 `json:"y"`
	Z n6 `json:"z"`
	W n6 `json:"w"`
}

type shapeJSON struct {
	Name       string          `json:"name"`
	Shape      ShapeKind       `json:"shape"`
	Type       ParamKind       `json:"type"`
	Unk1       int             `json:"unk1"`
	Priority   int             `json:"priority"`
	Extents    json.RawMessage `json:"extents"`
	Parameters json.RawMessage `json:"parameters"`
	Unk2       string          `json:"unk2"`
	Position   vec3JSON        `json:"position"`
	Rotation   quatJSON        `json:"rotation"`
}

type fileJSON struct {
	Magic           uint32       `json:"magic"`
	Version         int          `json:"version"`
	ShapeCount      int          `json:"shapeCount"`
	Shapes          []shapeJSON  `json:"shapes"`
	KDTreeLeafCount int          `json:"kdTreeLeafCount"`
	KDTreeLeaves    []kdLeafJSON `json:"kdTreeLeaves"`
	KDTreeNodeCount int          `json:"kdTreeNodeCount"`
	KDTreeNodes     []kdNodeJSON `json:"kdTreeNodes"`
}

type kdLeafJSON struct {
	ShapeCount  int      `json:"shapeCount"`
	ShapeOffset int      `json:"shapeOffset"`
	AABBMin     vec3JSON `json:"aabbMin"`
	AABBMax     vec3JSON `json:"aabbMax"`
}

// kdNodeJSON is a placeholder entry; the engine rebuilds the real tree at
// load time and only checks the table sizes.
type kdNodeJSON struct {
	DeadZoneStartCoordOrLeafIndexAndNodeType int `json:"deadZoneStartCoordOrLeafIndexAndNodeType"`
	DeadZoneEndCoord                         n3  `json:"deadZoneEndCoord"`
}

type obbExtentsJSON struct {
	Depth           n3 `json:"depth"`
	Width           n3 `json:"width"`
	Height          n3 `json:"height"`
	BorderThickness n3 `json:"borderThickness"`
}

type obbAnisoExtentsJSON struct {
	Depth               n3 `json:"depth"`
	Width               n3 `json:"width"`
	Height              n3 `json:"height"`
	WidthHeightBorder   n3 `json:"maybeWidthAndHeightBorderThickness"`
	PositiveDepthBorder n3 `json:"positiveDepthBorderThickness"`
	NegativeDepthBorder n3 `json:"negativeDepthBorderThickness"`
}

type cylinderExtentsJSON struct {
	Radius          n3 `json:"radius"`
	HalfHeight      n3 `json:"halfHeight"`
	BorderThickness n3 `json:"borderThickness"`
}

type sceneParamsJSON struct {
	SceneParameterIndex int `json:"sceneParameterIndex"`
	InterpolationTime   n3  `json:"interpolationTime"`
}

type lightParamsJSON struct {
	LightParameterIndex int `json:"lightParameterIndex"`
}

// Encode renders the shapes into the engine's fxcol JSON layout. Shape
// positions and rotations come out in engine space; the JSON "depth" and
// "height" extents are swapped relative to the editor axes on purpose, the
// format predates the axis convention change.
func Encode(ctx context.Context, shapes []*Shape) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	file := fileJSON{
		Magic:   Magic,
		Version: Version,
		Shapes:  make([]shapeJSON, 0, len(shapes)),
	}

	type group struct {
		count    int
		first    int
		min, max geom.Vec3
	}
	var groupOrder []string
	groups := map[string]*group{}

	for i, s := range shapes {
		extents, err := encodeExtents(s)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s.Name, err)
		}
		x, y, z := geom.ToSourcePosition(s.Position)
		q := geom.RotX(-90).Mul(s.Rotation)
		file.Shapes = append(file.Shapes, shapeJSON{
			Name:       s.Name,
			Shape:      s.Kind,
			Type:       s.Param,
			Priority:   s.Priority,
			Extents:    extents,
			Parameters: encodeParams(s),
			Unk2:       "none",
			Position:   vec3JSON{X: n3(x), Y: n3(y), Z: n3(z)},
			Rotation:   quatJSON{X: n6(q.X), Y: n6(q.Y), Z: n6(q.Z), W: n6(q.W)},
		})

		dims := s.Dimensions()
		key := dimsKey(dims)
		min := geom.Vec3{X: s.Position.X - dims.X/2, Y: s.Position.Y - dims.Y/2, Z: s.Position.Z - dims.Z/2}
		max := geom.Vec3{X: s.Position.X + dims.X/2, Y: s.Position.Y + dims.Y/2, Z: s.Position.Z + dims.Z/2}
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{count: 1, first: i, min: min, max: max}
			groupOrder = append(groupOrder, key)
			continue
		}
		g.count++
		g.min = vecMin(g.min, min)
		g.max = vecMax(g.max, max)
	}

	for _, key := range groupOrder {
		g := groups[key]
		file.KDTreeLeaves = append(file.KDTreeLeaves, kdLeafJSON{
			ShapeCount:  g.count,
			ShapeOffset: g.first,
			AABBMin:     vec3JSON{X: n3(g.min.X), Y: n3(g.min.Y), Z: n3(g.min.Z)},
			AABBMax:     vec3JSON{X: n3(g.max.X), Y: n3(g.max.Y), Z: n3(g.max.Z)},
		})
	}
	file.KDTreeNodes = make([]kdNodeJSON, len(shapes))
	for i := range file.KDTreeNodes {
		file.KDTreeNodes[i] = kdNodeJSON{DeadZoneStartCoordOrLeafIndexAndNodeType: -1}
	}
	if file.KDTreeLeaves == nil {
		file.KDTreeLeaves = []kdLeafJSON{}
	}
	file.ShapeCount = len(file.Shapes)
	file.KDTreeLeafCount = len(file.KDTreeLeaves)
	file.KDTreeNodeCount = len(file.KDTreeNodes)

	logger.Debug("fxcol encoded", "shapes", len(shapes), "leaves", len(file.KDTreeLeaves))
	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode fxcol: %w", err)
	}
	return append(data, '\n'), nil
}

func encodeExtents(s *Shape) (json.RawMessage, error) {
	switch s.Kind {
	case KindCylinder:
		return json.Marshal(cylinderExtentsJSON{
			Radius:          n3(s.Radius),
			HalfHeight:      n3(s.HalfHeight),
			BorderThickness: n3(s.BorderThickness),
		})
	case KindIsotropicOBB:
		return json.Marshal(obbExtentsJSON{
			Depth:           n3(s.Height),
			Width:           n3(s.Width),
			Height:          n3(s.Depth),
			BorderThickness: n3(s.BorderThickness),
		})
	case KindAnisotropicOBB:
		return json.Marshal(obbAnisoExtentsJSON{
			Depth:               n3(s.Height),
			Width:               n3(s.Width),
			Height:              n3(s.Depth),
			WidthHeightBorder:   n3(s.WidthHeightBorder),
			PositiveDepthBorder: n3(s.PositiveDepthBorder),
			NegativeDepthBorder: n3(s.NegativeDepthBorder),
		})
	default:
		return nil, fmt.Errorf("unknown shape kind %q", s.Kind)
	}
}

// encodeParams builds the payload object for the shape's parameter type; an
// unrecognized type gets an empty object.
func encodeParams(s *Shape) json.RawMessage {
	switch s.Param {
	case ParamScene:
		raw, _ := json.Marshal(sceneParamsJSON{
			SceneParameterIndex: s.SceneParameterIndex,
			InterpolationTime:   n3(s.InterpolationTime),
		})
		return raw
	case ParamLight:
		raw, _ := json.Marshal(lightParamsJSON{LightParameterIndex: s.LightParameterIndex})
		return raw
	default:
		return json.RawMessage("{}")
	}
}

func dimsKey(d geom.Vec3) string {
	return strconv.FormatFloat(geom.Round(d.X, 3), 'f', -1, 64) + "/" +
		strconv.FormatFloat(geom.Round(d.Y, 3), 'f', -1, 64) + "/" +
		strconv.FormatFloat(geom.Round(d.Z, 3), 'f', -1, 64)
}

func vecMin(a, b geom.Vec3) geom.Vec3 {
	if b.X < a.X {
		a.X = b.X
	}
	if b.Y < a.Y {
		a.Y = b.Y
	}
	if b.Z < a.Z {
		a.Z = b.Z
	}
	return a
}

func vecMax(a, b geom.Vec3) geom.Vec3 {
	if b.X > a.X {
		a.X = b.X
	}
	if b.Y > a.Y {
		a.Y = b.Y
	}
	if b.Z > a.Z {
		a.Z = b.Z
	}
	return a
}

type decodeShape struct {
	Name       string                       `json:"name"`
	Shape      string                       `json:"shape"`
	Type       string                       `json:"type"`
	Priority   int                          `json:"priority"`
	Extents    map[string]float64           `json:"extents"`
	Parameters map[string]float64           `json:"parameters"`
	Position   struct{ X, Y, Z float64 }    `json:"position"`
	Rotation   struct{ X, Y, Z, W float64 } `json:"rotation"`
}

type decodeFile struct {
	Magic   uint32        `json:"magic"`
	Version int           `json:"version"`
	Shapes  []decodeShape `json:"shapes"`
}

// Decode parses an fxcol file back into editor-space shapes. The kd-tree
// tables are ignored; they are derived data. Entries with an unrecognized
// geometric shape are skipped with a warning.
func Decode(ctx context.Context, data []byte) ([]*Shape, error) {
	logger := ctxlog.FromContext(ctx)

	var file decodeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fxcol: %w", err)
	}
	if file.Magic != Magic {
		return nil, fmt.Errorf("not an fxcol file: magic %d", file.Magic)
	}

	shapes := make([]*Shape, 0, len(file.Shapes))
	for _, raw := range file.Shapes {
		ext := func(name string, def float64) float64 {
			if v, ok := raw.Extents[name]; ok {
				return v
			}
			return def
		}
		s := &Shape{
			Name:     raw.Name,
			Kind:     ShapeKind(raw.Shape),
			Param:    ParamKind(raw.Type),
			Priority: raw.Priority,
			Position: geom.FromSourcePosition(raw.Position.X, raw.Position.Y, raw.Position.Z),
			Rotation: geom.RotX(90).Mul(geom.Quat{
				X: raw.Rotation.X, Y: raw.Rotation.Y, Z: raw.Rotation.Z, W: raw.Rotation.W,
			}),
		}
		switch s.Kind {
		case KindCylinder:
			s.Radius = ext("radius", 1)
			s.HalfHeight = ext("halfHeight", 1)
			s.BorderThickness = ext("borderThickness", 0)
		case KindIsotropicOBB:
			s.Width = ext("width", 1)
			s.Height = ext("depth", 1)
			s.Depth = ext("height", 1)
			s.BorderThickness = ext("borderThickness", 0)
		case KindAnisotropicOBB:
			s.Width = ext("width", 1)
			s.Height = ext("depth", 1)
			s.Depth = ext("height", 1)
			s.BorderThickness = ext("borderThickness", 0)
			s.WidthHeightBorder = ext("maybeWidthAndHeightBorderThickness", 0)
			s.PositiveDepthBorder = ext("positiveDepthBorderThickness", 0)
			s.NegativeDepthBorder = ext("negativeDepthBorderThickness", 0)
		default:
			logger.Warn("Unknown shape kind, skipping", "name", raw.Name, "shape", raw.Shape)
			continue
		}
		switch s.Param {
		case ParamScene:
			s.SceneParameterIndex = int(raw.Parameters["sceneParameterIndex"])
			s.InterpolationTime = raw.Parameters["interpolationTime"]
		case ParamLight:
			s.LightParameterIndex = int(raw.Parameters["lightParameterIndex"])
		}
		shapes = append(shapes, s)
	}

	logger.Debug("fxcol decoded", "shapes", len(shapes))
	return shapes, nil
}
