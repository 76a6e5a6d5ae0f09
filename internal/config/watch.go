package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads default_ttl/default_hide from a fixed list of TOML config
// files whenever any of them changes on disk, and hands the new values to
// onChange. Editors typically replace a file (rename over it) rather than
// write in place, so the watch targets each file's containing directory and
// filters by name, the same workaround fsnotify's own docs recommend for
// following config files across saves.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   []string
	log     *slog.Logger
}

// WatchFiles starts watching paths for changes, invoking onChange with the
// freshly reloaded Config after every write/rename that settles. Reload
// errors are logged and otherwise ignored; a bad edit never crashes the
// server, it just fails to take effect until corrected. Call Close to stop.
func WatchFiles(paths []string, log *slog.Logger, onChange func(Config)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := map[string]struct{}{}
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &Watcher{watcher: fw, paths: paths, log: log}

	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if !w.matches(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := LoadFiles(paths)
				if err != nil {
					log.Warn("config reload failed", slog.String("error", err.Error()))
					continue
				}
				log.Info("config reloaded",
					slog.Int64("default_ttl", cfg.Attributes.DefaultTTL),
					slog.Int64("default_hide", cfg.Attributes.DefaultHide))
				onChange(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return w, nil
}

func (w *Watcher) matches(name string) bool {
	for _, p := range w.paths {
		if filepath.Base(p) == filepath.Base(name) {
			return true
		}
	}
	return false
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
