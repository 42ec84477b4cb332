package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dandye/mcp-security/pkg/log"
	"github.com/dandye/mcp-security/pkg/resource"
)

// Watch refreshes resources whenever files below [Server.Roots] change.
// It blocks until ctx is done.
func (s *Server) Watch(ctx context.Context, opts ...resource.WatcherOpt) error {
	logger := log.WithContext(ctx)

	w, err := resource.NewWatcher(func(ctx context.Context) {
		err := s.Refresh(ctx)
		if err != nil {
			logger.WarnContext(ctx, "refresh resources", slog.Any("err", err))
		}
	}, opts...)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		err := w.Close()
		if err != nil {
			logger.DebugContext(ctx, "close watcher", slog.Any("err", err))
		}
	}()

	err = w.Add(ctx, s.Roots()...)
	if err != nil {
		return fmt.Errorf("watch resource directories: %w", err)
	}

	logger.InfoContext(ctx, "watching resource directories", slog.Int("dirs", w.Dirs()))

	w.Run(ctx)

	return nil
}
