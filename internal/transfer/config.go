// Package transfer copies parameter values between two resolved parameter
// sets whose objects were authored against different templates.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/he2tools/he2kit/internal/ctxlog"
)

// Config steers matching: alias groups give renamed parameters a second
// chance, exclusions remove parameters from the transfer entirely.
type Config struct {
	// Aliases maps a lowercased parameter base path to the alternative
	// paths to try, in order, when the base finds no direct match.
	Aliases map[string][]string

	// Excluded holds slash-joined parameter paths that are skipped without
	// being reported either way.
	Excluded map[string]struct{}
}

type configFile struct {
	SpecialAliases     [][]string `json:"special_aliases"`
	ExcludedParameters []string   `json:"excluded_parameters"`
}

// LoadConfig reads an alias/exclusion file. Comments are tolerated. Alias
// rows need at least a base and one alternative; shorter rows are dropped
// with a warning.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer config %q: %w", path, err)
	}
	var file configFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("failed to parse transfer config %q: %w", path, err)
	}

	cfg := &Config{
		Aliases:  map[string][]string{},
		Excluded: map[string]struct{}{},
	}
	for i, row := range file.SpecialAliases {
		if len(row) < 2 {
			logger.Warn("Alias row needs a base and at least one alternative, skipping", "path", path, "row", i)
			continue
		}
		base := strings.ToLower(strings.TrimSpace(row[0]))
		cfg.Aliases[base] = append(cfg.Aliases[base], row[1:]...)
	}
	for _, raw := range file.ExcludedParameters {
		if p := strings.TrimSpace(raw); p != "" {
			cfg.Excluded[p] = struct{}{}
		}
	}

	logger.Debug("Transfer config loaded", "path", path, "aliases", len(cfg.Aliases), "excluded", len(cfg.Excluded))
	return cfg, nil
}
