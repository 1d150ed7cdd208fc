package feed

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/signal"
)

var feedFileExtensions = map[string]bool{
	".json":   true,
	".ndjson": true,
	".jsonl":  true,
}

// FileCollector emits the events stored in one local feed file.
type FileCollector struct {
	name   string
	path   string
	logger zerolog.Logger
}

func NewFileCollector(name, path string, logger zerolog.Logger) *FileCollector {
	name = strings.TrimSpace(name)
	if name == "" {
		name = nameFromPath(path)
	}
	return &FileCollector{
		name:   name,
		path:   path,
		logger: logger.With().Str("collector", name).Logger(),
	}
}

func (c *FileCollector) Name() string { return c.name }

func (c *FileCollector) Path() string { return c.path }

func (c *FileCollector) Collect(ctx context.Context, emit func(signal.Candidate) error) error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read feed file %s: %w", c.path, err)
	}

	stats, err := Decode(ctx, raw, c.logger, emit)
	if err != nil {
		return fmt.Errorf("feed file %s: %w", c.path, err)
	}

	c.logger.Debug().
		Str("path", c.path).
		Int("events", stats.Events).
		Int("emitted", stats.Emitted).
		Int("invalid", stats.Invalid).
		Msg("feed file collected")
	return nil
}

// FromDir builds one FileCollector per feed file found under dir. Hidden
// files and directories are skipped. Collector names are the file paths
// relative to dir without their extension.
func FromDir(dir string, logger zerolog.Logger) ([]*FileCollector, error) {
	files, err := CollectFeedFiles(dir)
	if err != nil {
		return nil, err
	}

	root := filepath.Clean(strings.TrimSpace(dir))
	collectors := make([]*FileCollector, 0, len(files))
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		collectors = append(collectors, NewFileCollector(nameFromPath(rel), path, logger))
	}
	return collectors, nil
}

// CollectFeedFiles lists feed files (.json, .ndjson, .jsonl) under root in
// lexical order.
func CollectFeedFiles(root string) ([]string, error) {
	cleanRoot := strings.TrimSpace(root)
	if cleanRoot == "" {
		return nil, fmt.Errorf("directory path is empty")
	}

	info, err := os.Stat(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cleanRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cleanRoot)
	}

	var files []string
	err = filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != cleanRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if feedFileExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", cleanRoot, err)
	}

	sort.Strings(files)
	return files, nil
}

func nameFromPath(path string) string {
	clean := filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
	return strings.TrimSuffix(clean, filepath.Ext(clean))
}
