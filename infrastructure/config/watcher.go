package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Limits is the operator-tunable subset of graph limits, loaded from a YAML
// file and reloadable without restarting the process. Zero values mean
// "keep the current setting".
type Limits struct {
	MaxNodesPerSession int `yaml:"max_nodes_per_session"`
	MaxEdgesPerSession int `yaml:"max_edges_per_session"`
	DefaultPageSize    int `yaml:"default_page_size"`
	MaxPageSize        int `yaml:"max_page_size"`
}

// LimitsWatcher reloads the limits file whenever it changes on disk
type LimitsWatcher struct {
	path    string
	onApply func(Limits)
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewLimitsWatcher loads the limits file once and starts watching it.
// onApply is called with the parsed limits on every successful load.
func NewLimitsWatcher(path string, onApply func(Limits), logger *zap.Logger) (*LimitsWatcher, error) {
	w := &LimitsWatcher{path: path, onApply: onApply, logger: logger}

	if err := w.load(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode goes quiet.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w.watcher = fsw

	go w.run()

	return w, nil
}

// Close stops the watcher
func (w *LimitsWatcher) Close() error {
	return w.watcher.Close()
}

func (w *LimitsWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.load(); err != nil {
				w.logger.Warn("limits reload failed, keeping previous limits",
					zap.String("path", w.path),
					zap.Error(err),
				)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("limits watcher error", zap.Error(err))
		}
	}
}

func (w *LimitsWatcher) load() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	var limits Limits
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return err
	}

	w.onApply(limits)
	w.logger.Info("graph limits loaded",
		zap.String("path", w.path),
		zap.Int("maxNodes", limits.MaxNodesPerSession),
		zap.Int("maxEdges", limits.MaxEdgesPerSession),
	)
	return nil
}
