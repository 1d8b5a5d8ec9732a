package server

import (
	"context"
	"path/filepath"
	"strings"

	"metaexplorer/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// startStaticWatcher watches the static directory for edits to served assets.
func (s *Server) startStaticWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.config.Server.StaticDir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	s.logger.WithField("static_dir", s.config.Server.StaticDir).Info("Static asset watcher started")
	return nil
}

// watchStatic selects on watcher channels until ctx is done.
func (s *Server) watchStatic(ctx context.Context) {
	defer s.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleStaticEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("Static watcher error")
		}
	}
}

// handleStaticEvent reloads a served asset after it changes. Removing the
// file reverts to the embedded copy.
func (s *Server) handleStaticEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}
	if _, ok := assetTypes[name]; !ok {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	err := s.assets.reload(name)
	metrics.RecordStaticReload(name, err)
	if err != nil {
		s.logger.WithError(err).WithField("asset", name).Error("Failed to reload static asset")
		return
	}
	s.logger.WithField("asset", name).Info("Static asset reloaded")
}
