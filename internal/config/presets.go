package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// PresetManager watches a directory of YAML tool presets and hot-reloads
// them, so registration parameters can be tuned without touching the service
// configuration. Assembly reads the live preset through Get: graphs
// assembled after a reload pick up the new preset, running workflows keep
// the one they were compiled with.
type PresetManager struct {
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	presets map[string]*pipeline.ToolPreset
	started bool
	stopCh  chan struct{}
	mu      sync.RWMutex
}

// NewPresetManager creates a manager for the given preset directory.
func NewPresetManager(dir string, logger *zap.Logger) (*PresetManager, error) {
	if dir == "" {
		return nil, fmt.Errorf("preset directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preset directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &PresetManager{
		dir:     dir,
		logger:  logger,
		watcher: watcher,
		presets: make(map[string]*pipeline.ToolPreset),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start loads every preset in the directory and begins watching for changes.
func (pm *PresetManager) Start(ctx context.Context) error {
	pm.mu.Lock()
	if pm.started {
		pm.mu.Unlock()
		return nil
	}
	pm.started = true
	pm.mu.Unlock()

	if err := pm.watcher.Add(pm.dir); err != nil {
		return fmt.Errorf("watch preset directory: %w", err)
	}
	if err := pm.loadAll(); err != nil {
		return err
	}

	go pm.watchLoop(ctx)

	pm.mu.RLock()
	loaded := len(pm.presets)
	pm.mu.RUnlock()
	pm.logger.Info("Preset manager started",
		zap.String("dir", pm.dir),
		zap.Int("presets", loaded),
	)
	return nil
}

// Stop ends the watch loop and closes the watcher.
func (pm *PresetManager) Stop() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.started {
		return nil
	}
	pm.started = false
	close(pm.stopCh)
	return pm.watcher.Close()
}

// Get returns the preset with the given name, if loaded.
func (pm *PresetManager) Get(name string) (*pipeline.ToolPreset, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.presets[name]
	return p, ok
}

func (pm *PresetManager) loadAll() error {
	entries, err := os.ReadDir(pm.dir)
	if err != nil {
		return fmt.Errorf("read preset directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isPresetFile(entry.Name()) {
			continue
		}
		if err := pm.loadFile(filepath.Join(pm.dir, entry.Name())); err != nil {
			// One broken preset must not block the rest.
			pm.logger.Error("Failed to load preset",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (pm *PresetManager) loadFile(path string) error {
	preset, err := pipeline.LoadPresetFromFile(path)
	if err != nil {
		return err
	}
	name := preset.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	pm.mu.Lock()
	pm.presets[name] = preset
	pm.mu.Unlock()

	pm.logger.Info("Loaded tool preset",
		zap.String("name", name),
		zap.String("binary", preset.Binary),
	)
	return nil
}

func (pm *PresetManager) watchLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			pm.logger.Error("Preset watch loop panicked", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pm.stopCh:
			return
		case event, ok := <-pm.watcher.Events:
			if !ok {
				return
			}
			pm.handleEvent(event)
		case err, ok := <-pm.watcher.Errors:
			if !ok {
				return
			}
			pm.logger.Error("Preset watcher error", zap.Error(err))
		}
	}
}

func (pm *PresetManager) handleEvent(event fsnotify.Event) {
	if !isPresetFile(event.Name) {
		return
	}
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create,
		event.Op&fsnotify.Write == fsnotify.Write:
		if err := pm.loadFile(event.Name); err != nil {
			pm.logger.Error("Failed to reload preset",
				zap.String("file", event.Name),
				zap.Error(err),
			)
		}
	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		name := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))
		pm.mu.Lock()
		delete(pm.presets, name)
		pm.mu.Unlock()
		pm.logger.Info("Removed tool preset", zap.String("name", name))
	}
}

func isPresetFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
