// Package draft replays a YAML draft file into the profile form. Every
// value that differs from the form is applied as an operator edit, so the
// usual autosave follows.
package draft

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/your-org/bot-dashboard/internal/profile"
)

// Editor is the part of profile.Form the watcher needs.
type Editor interface {
	Value(name string) (string, bool)
	Edit(name, value string) error
}

var _ Editor = (*profile.Form)(nil)

// Watcher applies the draft file whenever it is written.
type Watcher struct {
	path   string
	form   Editor
	logger *zap.Logger
}

// NewWatcher creates a watcher for the draft at path.
func NewWatcher(path string, form Editor, logger *zap.Logger) *Watcher {
	return &Watcher{path: path, form: form, logger: logger.With(zap.String("draft", path))}
}

// Apply reads the draft once and returns the names of the fields it changed.
// A missing draft changes nothing.
func (w *Watcher) Apply() ([]string, error) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}

	fields := flatten(doc)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var changed []string
	for _, name := range names {
		value := fields[name]
		current, ok := w.form.Value(name)
		if !ok {
			w.logger.Warn("Ignoring unknown draft field", zap.String("field", name))
			continue
		}
		if current == value {
			continue
		}
		if err := w.form.Edit(name, value); err != nil {
			w.logger.Warn("Failed to apply draft field", zap.String("field", name), zap.Error(err))
			continue
		}
		changed = append(changed, name)
	}
	return changed, nil
}

// Run applies the draft, then re-applies it on every write until ctx is
// done. The parent directory is watched so editors that replace the file
// are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create draft watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create draft directory: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.applyAndLog()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.applyAndLog()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Draft watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) applyAndLog() {
	changed, err := w.Apply()
	if err != nil {
		w.logger.Warn("Draft not applied", zap.Error(err))
		return
	}
	if len(changed) > 0 {
		w.logger.Info("Draft applied", zap.Strings("fields", changed))
	}
}

// flatten turns the draft document into raw form values. Nested maps such
// as params are flattened into their keys.
func flatten(doc map[string]interface{}) map[string]string {
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range nested {
				out[nk] = scalar(nv)
			}
			continue
		}
		out[k] = scalar(v)
	}
	return out
}

func scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
