package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/he2tools/he2kit/internal/hson"
)

const testTemplate = `{
	"format": "gedit_v3",
	"objects": {
		"Spring": {"struct": "Spring"}
	},
	"structs": {
		"Spring": {
			"fields": [
				{"name": "Power", "type": "float"},
				{"name": "OnStage", "type": "bool"}
			]
		}
	},
	"enums": {}
}`

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestApp(t *testing.T, pipelinePath string) (*App, *Config) {
	t.Helper()
	cfg, err := NewConfig(Config{PipelinePath: pipelinePath, LogFormat: "text", LogLevel: "error"})
	require.NoError(t, err)
	return NewApp(&bytes.Buffer{}, cfg), cfg
}

func TestRun_HSONJob(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tpl.json"), testTemplate)
	write(t, filepath.Join(dir, "scene.hson"), `{
		"objects": [
			{"name": "Spring.001", "type": "Spring", "parameters": {"Power": 9.5}}
		]
	}`)
	write(t, filepath.Join(dir, "pipeline.hcl"), `
convert "hson" "refresh" {
  inputs     = ["`+filepath.Join(dir, "scene.hson")+`"]
  template   = "`+filepath.Join(dir, "tpl.json")+`"
  output_dir = "`+filepath.Join(dir, "out")+`"
}
`)

	a, cfg := newTestApp(t, filepath.Join(dir, "pipeline.hcl"))
	require.NoError(t, a.Run(context.Background(), cfg))

	data, err := os.ReadFile(filepath.Join(dir, "out", "scene.hson"))
	require.NoError(t, err)
	doc, err := hson.Decode(data)
	require.NoError(t, err)
	require.Len(t, doc.Objects, 1)

	obj := doc.Objects[0]
	assert.NotEmpty(t, obj.ID)

	var par map[string]any
	require.NoError(t, json.Unmarshal(obj.Parameters, &par))
	assert.Equal(t, 9.5, par["Power"])
	// The undeclared bool field is filled in from the schema.
	assert.Equal(t, false, par["OnStage"])

	var tags map[string]any
	require.NoError(t, json.Unmarshal(obj.Tags, &tags))
	rs := tags["RangeSpawning"].(map[string]any)
	assert.Equal(t, float64(500), rs["rangeIn"])
}

func TestRun_SetXMLJob(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tpl.json"), testTemplate)
	write(t, filepath.Join(dir, "stage.set.xml"), `<SetObject>
		<Spring>
			<SetObjectID>3</SetObjectID>
			<Position><x>1</x><y>2</y><z>3</z></Position>
			<Power>4</Power>
		</Spring>
	</SetObject>`)
	write(t, filepath.Join(dir, "pipeline.hcl"), `
convert "setxml" "import" {
  inputs     = ["`+filepath.Join(dir, "stage.set.xml")+`"]
  template   = "`+filepath.Join(dir, "tpl.json")+`"
  output_dir = "`+filepath.Join(dir, "out")+`"
}
`)

	a, cfg := newTestApp(t, filepath.Join(dir, "pipeline.hcl"))
	require.NoError(t, a.Run(context.Background(), cfg))

	data, err := os.ReadFile(filepath.Join(dir, "out", "stage.hson"))
	require.NoError(t, err)
	doc, err := hson.Decode(data)
	require.NoError(t, err)
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, "{3}", doc.Objects[0].ID)
	assert.Equal(t, []float64{1, -3, 2}, doc.Objects[0].Position)
}

func TestRun_FXColJob(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "vol.fxcol.json"), `{
		"magic": 1180189519, "version": 1,
		"shapes": [
			{"name": "a", "shape": "ISOTROPIC_OBB", "type": "SCENE_PARAMETER_INDEX",
			 "extents": {}, "parameters": {},
			 "position": {"x":0,"y":0,"z":0},
			 "rotation": {"x":0,"y":0,"z":0,"w":1}}
		]
	}`)
	write(t, filepath.Join(dir, "pipeline.hcl"), `
convert "fxcol" "normalize" {
  inputs     = ["`+filepath.Join(dir, "vol.fxcol.json")+`"]
  output_dir = "`+filepath.Join(dir, "out")+`"
}
`)

	a, cfg := newTestApp(t, filepath.Join(dir, "pipeline.hcl"))
	require.NoError(t, a.Run(context.Background(), cfg))

	data, err := os.ReadFile(filepath.Join(dir, "out", "vol.fxcol.json"))
	require.NoError(t, err)
	var file map[string]any
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, float64(1180189519), file["magic"])
	assert.Equal(t, float64(1), file["kdTreeLeafCount"])
}

func TestRun_TransferJob(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tpl.json"), testTemplate)
	write(t, filepath.Join(dir, "src.hson"), `{
		"objects": [
			{"id": "{AAA}", "type": "Spring", "parameters": {"Power": 7.25}}
		]
	}`)
	write(t, filepath.Join(dir, "dst.hson"), `{
		"objects": [
			{"id": "{AAA}", "type": "Spring", "parameters": {"Power": 0}}
		]
	}`)
	write(t, filepath.Join(dir, "pipeline.hcl"), `
convert "transfer" "carry" {
  inputs          = ["`+filepath.Join(dir, "src.hson")+`", "`+filepath.Join(dir, "dst.hson")+`"]
  template        = "`+filepath.Join(dir, "tpl.json")+`"
  target_template = "`+filepath.Join(dir, "tpl.json")+`"
  output          = "`+filepath.Join(dir, "merged.hson")+`"
}
`)

	a, cfg := newTestApp(t, filepath.Join(dir, "pipeline.hcl"))
	require.NoError(t, a.Run(context.Background(), cfg))

	data, err := os.ReadFile(filepath.Join(dir, "merged.hson"))
	require.NoError(t, err)
	doc, err := hson.Decode(data)
	require.NoError(t, err)

	var par map[string]any
	require.NoError(t, json.Unmarshal(doc.Objects[0].Parameters, &par))
	assert.Equal(t, 7.25, par["Power"])
}

func TestRun_FailingJobIsCounted(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "pipeline.hcl"), `
convert "fxcol" "missing" {
  inputs = ["`+filepath.Join(dir, "nope.fxcol.json")+`"]
}
`)

	a, cfg := newTestApp(t, filepath.Join(dir, "pipeline.hcl"))
	err := a.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 jobs failed")
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	cfg, err := NewConfig(Config{PipelinePath: "p.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "p.hcl", cfg.PipelinePath)
}
