// Package batch drives per-object work over a scene in fixed-size chunks,
// re-checking the template file between chunks.
package batch

import (
	"context"
	"fmt"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/hson"
	"github.com/he2tools/he2kit/internal/template"
)

// ChunkSize is how many objects are processed between template reload
// checks. Small enough that editing a template mid-run takes effect
// quickly, large enough that the stat call does not dominate.
const ChunkSize = 25

// Report summarizes one batch run.
type Report struct {
	Processed int
	Warnings  []string
}

// Func is the per-object work callback.
type Func func(ctx context.Context, tpl *template.Template, obj *hson.Object) error

// Process runs fn over every object. The template is (re)loaded at each
// chunk boundary; a per-object failure becomes a warning and the run
// continues. Only context cancellation and template load failure abort.
func Process(ctx context.Context, objects []*hson.Object, loader *template.Loader, fn Func) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	report := &Report{}

	for start := 0; start < len(objects); start += ChunkSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tpl, err := loader.Load(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to load template: %w", err)
		}

		end := start + ChunkSize
		if end > len(objects) {
			end = len(objects)
		}
		for _, obj := range objects[start:end] {
			if err := fn(ctx, tpl, obj); err != nil {
				msg := fmt.Sprintf("object %s (%s): %v", obj.ID, obj.Type, err)
				logger.Warn("Object skipped", "id", obj.ID, "type", obj.Type, "error", err)
				report.Warnings = append(report.Warnings, msg)
				continue
			}
			report.Processed++
		}
	}

	logger.Debug("Batch finished", "processed", report.Processed, "warnings", len(report.Warnings))
	return report, nil
}
