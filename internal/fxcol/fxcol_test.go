package fxcol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/he2tools/he2kit/internal/geom"
)

func TestEncode(t *testing.T) {
	ctx := context.Background()
	shapes := []*Shape{
		{
			Name:  "vol_a",
			Kind:  KindIsotropicOBB,
			Param: ParamScene,
			Width: 2, Height: 2, Depth: 2,
			SceneParameterIndex: 4,
			InterpolationTime:   0.25,
			Position:            geom.Vec3{X: 1, Y: 2, Z: 3},
			Rotation:            geom.Quat{W: 1},
		},
		{
			Name:  "vol_b",
			Kind:  KindIsotropicOBB,
			Param: ParamLight,
			Width: 2, Height: 2, Depth: 2,
			LightParameterIndex: 7,
			Position:            geom.Vec3{X: 5, Y: 2, Z: 3},
			Rotation:            geom.Quat{W: 1},
		},
		{
			Name:       "cyl_a",
			Kind:       KindCylinder,
			Param:      ParamScene,
			Radius:     1.5,
			HalfHeight: 2,
			Rotation:   geom.Quat{W: 1},
		},
	}

	data, err := Encode(ctx, shapes)
	require.NoError(t, err)

	var file map[string]any
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, float64(Magic), file["magic"])
	assert.Equal(t, float64(1), file["version"])

	out := file["shapes"].([]any)
	require.Len(t, out, 3)

	first := out[0].(map[string]any)
	assert.Equal(t, "ISOTROPIC_OBB", first["shape"])
	assert.Equal(t, "SCENE_PARAMETER_INDEX", first["type"])
	assert.Equal(t, "none", first["unk2"])
	assert.Equal(t, float64(0), first["unk1"])

	par := first["parameters"].(map[string]any)
	assert.Equal(t, float64(4), par["sceneParameterIndex"])
	assert.Equal(t, 0.25, par["interpolationTime"])

	second := out[1].(map[string]any)
	assert.Equal(t, "LIGHT_PARAMETER_INDEX", second["type"])
	assert.Equal(t, map[string]any{"lightParameterIndex": float64(7)}, second["parameters"])

	// Editor (1, 2, 3) comes out as engine (1, 3, -2).
	pos := first["position"].(map[string]any)
	assert.Equal(t, float64(1), pos["x"])
	assert.Equal(t, float64(3), pos["y"])
	assert.Equal(t, float64(-2), pos["z"])

	// Identity in editor space is a -90 degree X rotation in engine space.
	rot := first["rotation"].(map[string]any)
	assert.InDelta(t, -0.707107, rot["x"].(float64), 1e-6)
	assert.InDelta(t, 0.707107, rot["w"].(float64), 1e-6)

	assert.Equal(t, float64(3), file["shapeCount"])

	// Two identical-dims boxes share a leaf; the cylinder gets its own.
	assert.Equal(t, float64(2), file["kdTreeLeafCount"])
	leaves := file["kdTreeLeaves"].([]any)
	require.Len(t, leaves, 2)
	boxLeaf := leaves[0].(map[string]any)
	assert.Equal(t, float64(2), boxLeaf["shapeCount"])
	assert.Equal(t, float64(0), boxLeaf["shapeOffset"])
	cylLeaf := leaves[1].(map[string]any)
	assert.Equal(t, float64(1), cylLeaf["shapeCount"])
	assert.Equal(t, float64(2), cylLeaf["shapeOffset"])

	assert.Equal(t, float64(3), file["kdTreeNodeCount"])
	assert.Len(t, file["kdTreeNodes"].([]any), 3)
	node := file["kdTreeNodes"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(-1), node["deadZoneStartCoordOrLeafIndexAndNodeType"])
}

func TestEncode_MergedLeafBounds(t *testing.T) {
	shapes := []*Shape{
		{Name: "a", Kind: KindIsotropicOBB, Width: 2, Height: 2, Depth: 2, Position: geom.Vec3{X: 0}, Rotation: geom.Quat{W: 1}},
		{Name: "b", Kind: KindIsotropicOBB, Width: 2, Height: 2, Depth: 2, Position: geom.Vec3{X: 10}, Rotation: geom.Quat{W: 1}},
	}
	data, err := Encode(context.Background(), shapes)
	require.NoError(t, err)

	var file struct {
		Leaves []struct {
			AABBMin map[string]float64 `json:"aabbMin"`
			AABBMax map[string]float64 `json:"aabbMax"`
		} `json:"kdTreeLeaves"`
	}
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Leaves, 1)
	assert.Equal(t, float64(-1), file.Leaves[0].AABBMin["x"])
	assert.Equal(t, float64(11), file.Leaves[0].AABBMax["x"])
}

func TestEncode_ExtentsSwap(t *testing.T) {
	shapes := []*Shape{{
		Name: "a", Kind: KindIsotropicOBB,
		Width: 1, Height: 2, Depth: 3,
		Rotation: geom.Quat{W: 1},
	}}
	data, err := Encode(context.Background(), shapes)
	require.NoError(t, err)

	var file struct {
		Shapes []struct {
			Extents map[string]float64 `json:"extents"`
		} `json:"shapes"`
	}
	require.NoError(t, json.Unmarshal(data, &file))
	ext := file.Shapes[0].Extents

	// Editor height is serialized as "depth" and vice versa.
	assert.Equal(t, float64(2), ext["depth"])
	assert.Equal(t, float64(3), ext["height"])
	assert.Equal(t, float64(1), ext["width"])
}

func TestEncode_UnknownKind(t *testing.T) {
	_, err := Encode(context.Background(), []*Shape{{Name: "x", Kind: "WEDGE"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown shape kind")
}

func TestDecode_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := []*Shape{{
		Name:  "vol_a",
		Kind:  KindAnisotropicOBB,
		Param: ParamScene,
		Width: 1, Height: 2, Depth: 3,
		WidthHeightBorder: 0.5, PositiveDepthBorder: 0.25, NegativeDepthBorder: 0.125,
		SceneParameterIndex: 3,
		InterpolationTime:   1.5,
		Position:            geom.Vec3{X: 1, Y: 2, Z: 3},
		Rotation:            geom.Quat{W: 1},
	}}

	data, err := Encode(ctx, src)
	require.NoError(t, err)
	back, err := Decode(ctx, data)
	require.NoError(t, err)
	require.Len(t, back, 1)

	got := back[0]
	assert.Equal(t, KindAnisotropicOBB, got.Kind)
	assert.Equal(t, ParamScene, got.Param)
	assert.Equal(t, 1.0, got.Width)
	assert.Equal(t, 2.0, got.Height)
	assert.Equal(t, 3.0, got.Depth)
	assert.Equal(t, 0.5, got.WidthHeightBorder)
	assert.Equal(t, 3, got.SceneParameterIndex)
	assert.Equal(t, 1.5, got.InterpolationTime)
	assert.InDelta(t, 1, got.Position.X, 1e-9)
	assert.InDelta(t, 2, got.Position.Y, 1e-9)
	assert.InDelta(t, 3, got.Position.Z, 1e-9)
	assert.InDelta(t, 0, got.Rotation.X, 1e-5)
	assert.InDelta(t, 1, got.Rotation.W, 1e-5)
}

func TestDecode_EngineFile(t *testing.T) {
	// A hand-written file in the engine's own key layout survives a decode
	// and re-encode: the parameter enum lives under "type", the geometric
	// primitive under "shape".
	data := `{"magic": 1180189519, "version": 1, "shapes": [
		{"name": "fxShapeCube", "shape": "ISOTROPIC_OBB", "type": "SCENE_PARAMETER_INDEX",
		 "unk1": 0, "priority": 2,
		 "extents": {"depth": 4.0, "width": 6.0, "height": 8.0, "borderThickness": 0.5},
		 "parameters": {"sceneParameterIndex": 9, "interpolationTime": 0.75},
		 "unk2": "none",
		 "position": {"x":0,"y":0,"z":0}, "rotation": {"x":0,"y":0,"z":0,"w":1}}
	]}`

	shapes, err := Decode(context.Background(), []byte(data))
	require.NoError(t, err)
	require.Len(t, shapes, 1)

	got := shapes[0]
	assert.Equal(t, KindIsotropicOBB, got.Kind)
	assert.Equal(t, ParamScene, got.Param)
	assert.Equal(t, 2, got.Priority)
	assert.Equal(t, 6.0, got.Width)
	assert.Equal(t, 4.0, got.Height)
	assert.Equal(t, 8.0, got.Depth)
	assert.Equal(t, 9, got.SceneParameterIndex)
	assert.Equal(t, 0.75, got.InterpolationTime)

	out, err := Encode(context.Background(), shapes)
	require.NoError(t, err)
	var file struct {
		Shapes []map[string]any `json:"shapes"`
	}
	require.NoError(t, json.Unmarshal(out, &file))
	require.Len(t, file.Shapes, 1)
	assert.Equal(t, "ISOTROPIC_OBB", file.Shapes[0]["shape"])
	assert.Equal(t, "SCENE_PARAMETER_INDEX", file.Shapes[0]["type"])
	assert.Equal(t, map[string]any{"sceneParameterIndex": float64(9), "interpolationTime": 0.75}, file.Shapes[0]["parameters"])
}

func TestDecode_BadMagic(t *testing.T) {
	_, err := Decode(context.Background(), []byte(`{"magic": 1, "shapes": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestDecode_ExtentDefaults(t *testing.T) {
	data := `{"magic": 1180189519, "version": 1, "shapes": [
		{"name": "a", "shape": "ISOTROPIC_OBB", "type": "SCENE_PARAMETER_INDEX", "extents": {},
		 "position": {"x":0,"y":0,"z":0}, "rotation": {"x":0,"y":0,"z":0,"w":1}},
		{"name": "weird", "shape": "TETRAHEDRON", "extents": {},
		 "position": {"x":0,"y":0,"z":0}, "rotation": {"x":0,"y":0,"z":0,"w":1}}
	]}`
	shapes, err := Decode(context.Background(), []byte(data))
	require.NoError(t, err)
	// The unrecognized primitive is dropped.
	require.Len(t, shapes, 1)
	assert.Equal(t, 1.0, shapes[0].Width)
	assert.Equal(t, 1.0, shapes[0].Height)
	assert.Equal(t, 1.0, shapes[0].Depth)
}

func TestDimensions(t *testing.T) {
	cyl := &Shape{Kind: KindCylinder, Radius: 1.5, HalfHeight: 2}
	assert.Equal(t, geom.Vec3{X: 3, Y: 3, Z: 4}, cyl.Dimensions())

	obb := &Shape{Kind: KindIsotropicOBB, Width: 1, Height: 2, Depth: 3}
	assert.Equal(t, geom.Vec3{X: 1, Y: 3, Z: 2}, obb.Dimensions())
}
