package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/k1LoW/meme"
	"github.com/k1LoW/meme/config"
	"github.com/spf13/cobra"
)

const watchDebounce = 100 * time.Millisecond

var previewPath string

var watchCmd = &cobra.Command{
	Use:   "watch [MEME_FILE]",
	Short: "watch a meme file and repaint its preview on every change",
	Long: `watch a meme file and repaint its preview on every change.

The meme file is YAML:

  image: ./cat.jpg
  top: when the build passes
  bottom: on the first try
  fontSize: 56
  color: "#ffffff"
  sticker: false

Changes to the meme file or to the image repaint the preview.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Load(profile)
		if err != nil {
			return err
		}
		if _, err := meme.ParseFile(path); err != nil {
			return err
		}
		preview := previewPath
		if preview == "" {
			preview = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
		}
		format, err := meme.ParseFormat(filepath.Ext(preview))
		if err != nil {
			return err
		}
		logger, err := newLogger(true)
		if err != nil {
			return err
		}
		c, err := newComposer(cfg, "", logger)
		if err != nil {
			return err
		}
		sink := meme.NewDirSink(filepath.Dir(preview))
		c.OnRender(func(s *meme.Surface) {
			buf := &bytes.Buffer{}
			if err := meme.Encode(buf, s, format); err != nil {
				logger.Error("failed to encode preview", slog.String("error", err.Error()))
				return
			}
			if _, err := sink.Save(ctx, filepath.Base(preview), string(format.MIMEType()), buf.Bytes()); err != nil {
				logger.Error("failed to write preview", slog.String("error", err.Error()))
			}
		})
		cmd.Printf("watching %s, preview: %s\n", path, preview)
		return watchFile(ctx, c, path, renderConfig(cfg), logger)
	},
}

// watchFile loads the meme file at path into c and reloads it whenever the file or its image changes.
// Settings the file leaves out come from base. It returns when ctx is done.
func watchFile(ctx context.Context, c *meme.Composer, path string, base meme.RenderConfig, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	watchDir := func(dir string) {
		if dirs[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			logger.Error("failed to watch directory", slog.String("dir", dir), slog.String("error", err.Error()))
			return
		}
		dirs[dir] = true
	}
	watchDir(filepath.Dir(path))

	var image string
	reload := func() {
		f, err := meme.ParseFile(path)
		if err != nil {
			logger.Error("failed to parse meme file", slog.String("error", err.Error()))
			return
		}
		image = ""
		if u := f.Image; !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") && u != "-" {
			image = filepath.Clean(u)
			watchDir(filepath.Dir(image))
		}
		// load and apply repaint once; settings missing from the file fall back to base
		if err := c.Batch(func() error {
			img, err := c.Load(ctx, f.Image).Wait(ctx)
			if err != nil {
				// already logged by the composer
				return nil
			}
			cfg, err := c.Defaults(base, img)
			if err != nil {
				logger.Warn("failed to apply defaults", slog.String("error", err.Error()))
				cfg = base
			}
			return c.Apply(f.Captions(), f.Apply(cfg))
		}); err != nil {
			logger.Error("failed to apply meme file", slog.String("error", err.Error()))
		}
	}
	reload()

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("done")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if name := filepath.Clean(ev.Name); name != path && name != image {
				continue
			}
			debounce.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("failed to watch", slog.String("error", err.Error()))
		case <-debounce.C:
			reload()
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&previewPath, "preview", "p", "", "preview image path (.png or .webp), defaults to the meme file name with .png")
}
