package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// DropDirWatcher picks up action items dropped as JSON files into a
// directory. Files are consumed: a successfully parsed file is removed, a
// malformed one is renamed aside so it is inspected instead of re-read
// forever.
type DropDirWatcher struct {
	dir    string
	logger *slog.Logger
}

// NewDropDirWatcher creates the directory if needed and returns the watcher.
func NewDropDirWatcher(dir string, logger *slog.Logger) (*DropDirWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create drop dir: %w", err)
	}
	return &DropDirWatcher{dir: dir, logger: logger}, nil
}

// Name returns the watcher's name.
func (w *DropDirWatcher) Name() string { return "drop-dir" }

// Poll consumes every JSON file currently in the directory.
func (w *DropDirWatcher) Poll(ctx context.Context) ([]models.ActionItem, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read drop dir: %w", err)
	}

	var items []models.ActionItem
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("unreadable drop file", "file", entry.Name(), "error", err)
			continue
		}

		var item models.ActionItem
		if err := json.Unmarshal(data, &item); err != nil {
			w.quarantine(path, entry.Name(), err)
			continue
		}
		if item.Source == "" {
			item.Source = models.ItemSourceFilesystem
		}
		if err := item.Validate(); err != nil {
			w.quarantine(path, entry.Name(), err)
			continue
		}

		if err := os.Remove(path); err != nil {
			w.logger.Warn("failed to consume drop file", "file", entry.Name(), "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (w *DropDirWatcher) quarantine(path, name string, cause error) {
	w.logger.Warn("invalid drop file set aside", "file", name, "error", cause)
	if err := os.Rename(path, path+".invalid"); err != nil {
		w.logger.Error("failed to set aside invalid drop file", "file", name, "error", err)
	}
}
