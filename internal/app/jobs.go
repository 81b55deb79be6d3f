package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/he2tools/he2kit/internal/batch"
	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/fsutil"
	"github.com/he2tools/he2kit/internal/fxcol"
	"github.com/he2tools/he2kit/internal/hson"
	"github.com/he2tools/he2kit/internal/params"
	"github.com/he2tools/he2kit/internal/project"
	"github.com/he2tools/he2kit/internal/setxml"
	"github.com/he2tools/he2kit/internal/svcol"
	"github.com/he2tools/he2kit/internal/template"
	"github.com/he2tools/he2kit/internal/transfer"
)

// expandInputs resolves a job's inputs into concrete files; directory
// entries are searched for the given extension.
func expandInputs(job *project.Job, extension string) ([]string, error) {
	var files []string
	for _, input := range job.Inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", input, err)
		}
		if !info.IsDir() {
			files = append(files, input)
			continue
		}
		found, err := fsutil.FindByExtension(extension, input)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", input, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in inputs", extension)
	}
	return files, nil
}

// outputPath decides where a converted file goes: the explicit output, the
// output directory, or in place. newExt, when set, replaces oldExt in the
// file name.
func outputPath(job *project.Job, inPath, oldExt, newExt string) string {
	name := filepath.Base(inPath)
	if newExt != "" && strings.HasSuffix(strings.ToLower(name), oldExt) {
		name = name[:len(name)-len(oldExt)] + newExt
	}
	switch {
	case job.Output != "":
		return job.Output
	case job.OutputDir != "":
		return filepath.Join(job.OutputDir, name)
	default:
		return filepath.Join(filepath.Dir(inPath), name)
	}
}

// refreshObject runs the template resolution cycle over one object: flatten
// what is stored, resolve it against the schema, write the full set back.
func refreshObject(ctx context.Context, tpl *template.Template, obj *hson.Object) error {
	obj.EnsureID()
	bag, err := obj.FlatParams()
	if err != nil {
		return err
	}
	set, err := params.Resolve(ctx, obj.TypeName(), tpl, bag)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	for _, w := range set.Warnings {
		logger.Warn("Parameter warning", "id", obj.ID, "warning", w)
	}
	return obj.SetFlatParams(set.FlatBag())
}

func (a *App) runHSON(ctx context.Context, job *project.Job) error {
	files, err := expandInputs(job, ".hson")
	if err != nil {
		return err
	}
	loader := template.NewLoader(job.Template)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		doc, err := hson.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		report, err := batch.Process(ctx, doc.Objects, loader, refreshObject)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.logger.Info("Scene refreshed", "path", path, "objects", report.Processed, "warnings", len(report.Warnings))

		out, err := hson.Encode(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := writeFile(outputPath(job, path, "", ""), out); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runSetXML(ctx context.Context, job *project.Job) error {
	files, err := expandInputs(job, ".set.xml")
	if err != nil {
		return err
	}
	loader := template.NewLoader(job.Template)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		objects, err := setxml.Decode(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		doc := &hson.Document{Objects: objects}

		report, err := batch.Process(ctx, doc.Objects, loader, refreshObject)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.logger.Info("Layout imported", "path", path, "objects", report.Processed, "warnings", len(report.Warnings))

		out, err := hson.Encode(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := writeFile(outputPath(job, path, ".set.xml", ".hson"), out); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runFXCol(ctx context.Context, job *project.Job) error {
	files, err := expandInputs(job, ".fxcol.json")
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		shapes, err := fxcol.Decode(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out, err := fxcol.Encode(ctx, shapes)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.logger.Info("FX collision normalized", "path", path, "shapes", len(shapes))
		if err := writeFile(outputPath(job, path, "", ""), out); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runSVCol(ctx context.Context, job *project.Job) error {
	files, err := expandInputs(job, ".svcol.json")
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		shapes, err := svcol.Decode(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out, err := svcol.Encode(ctx, shapes)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.logger.Info("Sector visibility collision normalized", "path", path, "shapes", len(shapes))
		if err := writeFile(outputPath(job, path, "", ""), out); err != nil {
			return err
		}
	}
	return nil
}

// runTransfer carries parameter values from a source scene onto the target
// scene, matching objects by id. The target file is rewritten.
func (a *App) runTransfer(ctx context.Context, job *project.Job) error {
	srcDoc, err := readScene(job.Inputs[0])
	if err != nil {
		return err
	}
	dstDoc, err := readScene(job.Inputs[1])
	if err != nil {
		return err
	}

	var cfg *transfer.Config
	if job.Aliases != "" {
		cfg, err = transfer.LoadConfig(ctx, job.Aliases)
		if err != nil {
			return err
		}
	}

	srcLoader := template.NewLoader(job.Template)
	dstLoader := template.NewLoader(job.TargetTemplate)
	srcTpl, err := srcLoader.Load(ctx)
	if err != nil {
		return err
	}
	dstTpl, err := dstLoader.Load(ctx)
	if err != nil {
		return err
	}

	srcByID := make(map[string]*hson.Object, len(srcDoc.Objects))
	for _, obj := range srcDoc.Objects {
		srcByID[obj.BareID()] = obj
	}

	matched, transferred := 0, 0
	for _, dstObj := range dstDoc.Objects {
		srcObj, ok := srcByID[dstObj.BareID()]
		if !ok {
			continue
		}
		matched++

		srcSet, err := resolveFor(ctx, srcTpl, srcObj)
		if err != nil {
			a.logger.Warn("Source object not resolvable, skipping", "id", srcObj.ID, "error", err)
			continue
		}
		dstSet, err := resolveFor(ctx, dstTpl, dstObj)
		if err != nil {
			a.logger.Warn("Target object not resolvable, skipping", "id", dstObj.ID, "error", err)
			continue
		}

		res := transfer.Transfer(ctx, srcSet, dstSet, cfg)
		transferred += len(res.Transferred)
		for path := range res.NotTransferred {
			a.logger.Debug("Parameter not transferred", "id", dstObj.ID, "path", path)
		}

		if err := dstObj.SetFlatParams(dstSet.FlatBag()); err != nil {
			return fmt.Errorf("object %s: %w", dstObj.ID, err)
		}
	}
	a.logger.Info("Transfer finished", "matched_objects", matched, "transferred_params", transferred)

	out, err := hson.Encode(dstDoc)
	if err != nil {
		return err
	}
	return writeFile(outputPath(job, job.Inputs[1], "", ""), out)
}

func resolveFor(ctx context.Context, tpl *template.Template, obj *hson.Object) (*params.ResolvedSet, error) {
	bag, err := obj.FlatParams()
	if err != nil {
		return nil, err
	}
	return params.Resolve(ctx, obj.TypeName(), tpl, bag)
}

func readScene(path string) (*hson.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	doc, err := hson.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
