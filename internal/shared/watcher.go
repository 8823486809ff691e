package shared

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a config file when it changes on disk and hands the result to a callback.
//
// The directory is watched rather than the file so editors that replace the file on save are still seen.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	logger   *log.Logger
	debounce time.Duration

	reload chan struct{}
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewConfigWatcher creates a watcher for the config at path. Call [ConfigWatcher.Start] to begin watching.
func NewConfigWatcher(path string, onChange func(*Config), logger *log.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if logger == nil {
		logger = NewLogger(nil)
	}

	return &ConfigWatcher{
		path:     abs,
		watcher:  w,
		onChange: onChange,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		reload:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period between the last file event and the reload.
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.debounce = d
}

// Start begins watching the config directory.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	cw.logger.Info("watching config", "path", cw.path)

	cw.wg.Add(2)
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop closes the underlying watcher and waits for the loops to exit.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.once.Do(func() {
		close(cw.stop)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	defer cw.wg.Done()
	name := filepath.Base(cw.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stop:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				cw.logger.Debug("config change detected", "op", event.Op.String())
				cw.trigger()
			case event.Has(fsnotify.Remove):
				cw.logger.Warn("config file removed", "path", event.Name)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("config watcher error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) trigger() {
	select {
	case cw.reload <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	defer cw.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-cw.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-cw.reload:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(cw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			cw.apply()
		}
	}
}

func (cw *ConfigWatcher) apply() {
	config, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.Error("config reload failed", "error", err)
		return
	}
	if err := ApplyEnv(config); err != nil {
		cw.logger.Error("config reload failed", "error", err)
		return
	}
	cw.logger.Info("config reloaded", "path", cw.path)
	if cw.onChange != nil {
		cw.onChange(config)
	}
}
