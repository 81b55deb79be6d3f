package template

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/fsutil"
)

// Loader reads a template file and caches the parsed result keyed on the
// file's modification time. Long batch runs call Load at chunk boundaries so
// a template edited mid-run takes effect without restarting the tool.
type Loader struct {
	path    string
	modTime time.Time
	tpl     *Template
}

// NewLoader creates a Loader for the template at path. Nothing is read until
// the first Load call.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the template file path this loader watches.
func (l *Loader) Path() string {
	return l.path
}

// Load returns the parsed template, re-reading the file when its mtime has
// changed since the last successful parse. A read or parse failure after a
// successful load logs a warning and keeps serving the last good template;
// it is an error only when no template was ever loaded.
func (l *Loader) Load(ctx context.Context) (*Template, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(l.path)
	if err != nil {
		if l.tpl != nil {
			logger.Warn("Template file unavailable, keeping cached copy", "path", l.path, "error", err)
			return l.tpl, nil
		}
		return nil, fmt.Errorf("failed to stat template %q: %w", l.path, err)
	}
	if l.tpl != nil && info.ModTime().Equal(l.modTime) {
		return l.tpl, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if l.tpl != nil {
			logger.Warn("Template file unreadable, keeping cached copy", "path", l.path, "error", err)
			return l.tpl, nil
		}
		return nil, fmt.Errorf("failed to read template %q: %w", l.path, err)
	}
	tpl, err := Parse(data)
	if err != nil {
		if l.tpl != nil {
			logger.Warn("Template file no longer parses, keeping cached copy", "path", l.path, "error", err)
			return l.tpl, nil
		}
		return nil, fmt.Errorf("template %q: %w", l.path, err)
	}

	logger.Debug("Template loaded", "path", l.path, "objects", len(tpl.Objects), "structs", len(tpl.Structs), "enums", len(tpl.Enums))
	l.tpl = tpl
	l.modTime = info.ModTime()
	return tpl, nil
}

// ListTemplates returns all .json template files found under the given
// directories. Earlier directories shadow later ones by file name.
func ListTemplates(dirs ...string) ([]string, error) {
	return fsutil.FindByExtension(".json", dirs...)
}
