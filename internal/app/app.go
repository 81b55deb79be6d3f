// Package app wires the pipeline loader and the per-kind converters into a
// runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/project"
)

// App owns the run of one pipeline.
type App struct {
	outW   io.Writer
	logger *slog.Logger
}

// NewApp creates an application instance with its own logger.
func NewApp(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
	}
}

// Run loads the pipeline and executes its jobs in order. A failing job is
// logged and counted; the remaining jobs still run.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Info("Starting pipeline", "path", cfg.PipelinePath)

	pipeline, err := project.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return err
	}

	failed := 0
	for _, job := range pipeline.Jobs {
		a.logger.Info("Running job", "kind", job.Kind, "name", job.Name)
		if err := a.runJob(ctx, job); err != nil {
			a.logger.Error("Job failed", "kind", job.Kind, "name", job.Name, "error", err)
			failed++
			continue
		}
		a.logger.Info("Job finished", "kind", job.Kind, "name", job.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(pipeline.Jobs))
	}
	return nil
}

func (a *App) runJob(ctx context.Context, job *project.Job) error {
	switch job.Kind {
	case "hson":
		return a.runHSON(ctx, job)
	case "setxml":
		return a.runSetXML(ctx, job)
	case "fxcol":
		return a.runFXCol(ctx, job)
	case "svcol":
		return a.runSVCol(ctx, job)
	case "transfer":
		return a.runTransfer(ctx, job)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
