package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file when it changes on disk and hands the
// new config to onChange. Editors often replace files instead of writing
// them, so the parent directory is watched and events are filtered by name.
type Watcher struct {
	watcher  *fsnotify.Watcher
	loader   *Loader
	path     string
	logger   zerolog.Logger
	onChange func(*Config)
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	once   sync.Once
}

// NewWatcher starts watching the loader's config file
func NewWatcher(loader *Loader, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := filepath.Clean(loader.GetConfigPath())
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		loader:   loader,
		path:     path,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		onChange: onChange,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug().Str("op", event.Op.String()).Msg("Config change detected")
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

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Ignoring unreadable config change")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
