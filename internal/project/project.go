// Package project loads the HCL pipeline file that tells the tool what to
// convert, with which templates, and where to put the results.
package project

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/he2tools/he2kit/internal/ctxlog"
)

// Pipeline is a parsed pipeline file: an ordered list of convert jobs.
type Pipeline struct {
	Jobs []*Job `hcl:"convert,block"`
}

// Job is one convert block. Which fields are required depends on the kind.
type Job struct {
	Kind string `hcl:"kind,label"`
	Name string `hcl:"name,label"`

	// Inputs are files or directories; directories are expanded by
	// extension for the job's kind.
	Inputs []string `hcl:"inputs"`

	Template       string `hcl:"template,optional"`
	TargetTemplate string `hcl:"target_template,optional"`
	Aliases        string `hcl:"aliases,optional"`
	Output         string `hcl:"output,optional"`
	OutputDir      string `hcl:"output_dir,optional"`
}

var validKinds = map[string]bool{
	"hson":     true,
	"setxml":   true,
	"fxcol":    true,
	"svcol":    true,
	"transfer": true,
}

// Load parses and validates a pipeline file.
func Load(ctx context.Context, path string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline %q: %w", path, diags)
	}

	var pipeline Pipeline
	if diags := gohcl.DecodeBody(file.Body, nil, &pipeline); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline %q: %w", path, diags)
	}

	for _, job := range pipeline.Jobs {
		if err := job.validate(); err != nil {
			return nil, fmt.Errorf("pipeline %q: job %q: %w", path, job.Name, err)
		}
	}

	logger.Debug("Pipeline loaded", "path", path, "jobs", len(pipeline.Jobs))
	return &pipeline, nil
}

func (j *Job) validate() error {
	if !validKinds[j.Kind] {
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if len(j.Inputs) == 0 {
		return fmt.Errorf("at least one input is required")
	}
	switch j.Kind {
	case "hson", "setxml":
		if j.Template == "" {
			return fmt.Errorf("%s jobs require a template", j.Kind)
		}
	case "transfer":
		if len(j.Inputs) != 2 {
			return fmt.Errorf("transfer jobs take exactly two inputs, the source and the target scene")
		}
		if j.Template == "" || j.TargetTemplate == "" {
			return fmt.Errorf("transfer jobs require both template and target_template")
		}
	}
	return nil
}
