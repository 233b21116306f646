package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration when its file changes on disk
type Watcher struct {
	watcher  *fsnotify.Watcher
	loader   *Loader
	logger   zerolog.Logger
	onChange func(*Config)
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewWatcher starts watching the loader's config file. onChange receives
// every successfully reloaded and validated config.
func NewWatcher(loader *Loader, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	configPath := loader.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors typically replace the file on save,
	// which drops a watch registered on the file itself
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		watcher:  watcher,
		loader:   loader,
		logger:   logger,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

// run processes file system events
func (w *Watcher) run() {
	configName := filepath.Base(w.loader.GetConfigPath())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configName {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("file", configName).
					Str("op", event.Op.String()).
					Msg("Config change detected")

				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload debounces the reload so editors that write in several
// bursts trigger it once
func (w *Watcher) scheduleReload() {
	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload config")
		return
	}

	if err := cfg.Validate(); err != nil {
		w.logger.Error().Err(err).Msg("Reloaded config is invalid, keeping the old one")
		return
	}

	w.logger.Info().Msg("Config reloaded")
	w.onChange(cfg)
}
