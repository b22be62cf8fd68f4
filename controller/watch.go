package controller

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/stewi1014/wasmfractal/internal/logging"
)

// Watch calls onChange with the path of any of files that is written or
// replaced, until ctx is done or onChange fails.
//
// Directories are watched rather than the files themselves so editors that
// replace a file on save are still seen.
func Watch(ctx context.Context, files []string, onChange func(path string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]string{}
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		watched[abs] = file

		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watching %s: %w", file, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			file, ok := watched[abs]
			if !ok {
				continue
			}

			logging.Logger().Debug("module changed", "file", file, "op", event.Op.String())
			if err := onChange(file); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// WatchModules resends the theme or kernel named in cfg whenever its file changes,
// then asks for a new frame.
func (c *Controller) WatchModules(ctx context.Context, cfg Config) error {
	var files []string
	if isModulePath(cfg.Theme) {
		files = append(files, cfg.Theme)
	}
	if cfg.Kernel != "" {
		files = append(files, cfg.Kernel)
	}
	if len(files) == 0 {
		return nil
	}

	return Watch(ctx, files, func(path string) error {
		var err error
		if path == cfg.Theme {
			err = c.SendTheme(ctx, path)
		} else {
			err = c.SendKernel(ctx, path)
		}
		if err != nil {
			return err
		}
		return c.Render(ctx, cfg.Request())
	})
}
