package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
)

// Watch rebuilds the documentation whenever a source or configuration file
// under the project root changes. Bursts of events within the debounce window
// trigger one rebuild. Watch blocks until ctx is canceled.
func (s *Server) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, s.watchRoot()); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}
	s.log.Info("watching sources", slog.String("root", s.root), slog.Duration("debounce", s.debounce))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !hidden(event.Name) {
					if err := addRecursive(watcher, event.Name); err != nil {
						s.log.Warn("watch new directory", slog.String("dir", event.Name), slog.Any("error", err))
					}
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			s.log.Debug("source changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := s.Rebuild(ctx); err != nil {
				s.log.Error("rebuild failed", slog.Any("error", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// watchRoot is the directory to watch. A single-file project watches the
// file's directory.
func (s *Server) watchRoot() string {
	if info, err := os.Stat(s.root); err == nil && !info.IsDir() {
		return filepath.Dir(s.root)
	}
	return s.root
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return config.IsSourceFile(event.Name) || config.IsConfigFile(event.Name)
}

// addRecursive watches root and every directory below it, skipping hidden
// ones such as the cache.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
