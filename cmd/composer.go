package cmd

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/k1LoW/meme"
	"github.com/k1LoW/meme/config"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// renderFlags are the caption and render settings given on the command line.
type renderFlags struct {
	top      string
	bottom   string
	fontSize float64
	color    string
	sticker  bool
	outDir   string
}

func addRenderFlags(cmd *cobra.Command, f *renderFlags) {
	cmd.Flags().StringVarP(&f.top, "top", "t", "", "top caption")
	cmd.Flags().StringVarP(&f.bottom, "bottom", "b", "", "bottom caption")
	cmd.Flags().Float64VarP(&f.fontSize, "font-size", "s", meme.DefaultFontSize, "caption font size in pixels")
	cmd.Flags().StringVarP(&f.color, "color", "c", meme.DefaultColor, "caption fill color")
	cmd.Flags().BoolVarP(&f.sticker, "sticker", "", false, "render on a 512x512 sticker canvas")
	cmd.Flags().StringVarP(&f.outDir, "out-dir", "o", "", "directory exported images are written to")
}

// renderConfig returns the render settings of the config file on top of the built-in defaults.
func renderConfig(cfg *config.Config) meme.RenderConfig {
	rc := meme.DefaultRenderConfig()
	if cfg.FontSize != nil {
		rc.FontSize = *cfg.FontSize
	}
	if cfg.Color != "" {
		rc.Color = cfg.Color
	}
	if cfg.Sticker != nil {
		rc.Sticker = *cfg.Sticker
	}
	return rc
}

func newComposer(cfg *config.Config, outDir string, logger *slog.Logger) (*meme.Composer, error) {
	return meme.New(
		meme.WithLogger(logger),
		meme.WithRenderConfig(renderConfig(cfg)),
		meme.WithFonts(fontSet(cfg)),
		meme.WithDefaults(cfg.Defaults),
		meme.WithSink(newSink(cfg, outDir)),
	)
}

// fontSet returns the caption fonts of cfg. $XDG_DATA_HOME/meme/fonts is searched
// after the configured directories.
func fontSet(cfg *config.Config) *meme.FontSet {
	dirs := append(append([]string{}, cfg.FontDirs...), filepath.Join(config.DataHomePath(), "fonts"))
	return meme.NewFontSet(cfg.Fonts, dirs...)
}

// newSink returns the export destination. --out-dir wins over exportCommand,
// which wins over outputDir.
func newSink(cfg *config.Config, outDir string) meme.Sink {
	if outDir != "" {
		return meme.NewDirSink(outDir)
	}
	if cfg.ExportCommand != "" {
		return meme.NewCommandSink(cfg.ExportCommand, cfg.ExportRetries)
	}
	return meme.NewDirSink(cfg.OutputDir)
}

// applyFlags applies captions and the render flags that were set explicitly.
// Explicit flags win over the config file and over defaults matched on load.
func applyFlags(cmd *cobra.Command, c *meme.Composer, f *renderFlags) error {
	snap := c.Snapshot()
	captions := snap.Captions
	rc := snap.Config
	if cmd.Flags().Changed("top") {
		captions.Top = f.top
	}
	if cmd.Flags().Changed("bottom") {
		captions.Bottom = f.bottom
	}
	if cmd.Flags().Changed("font-size") {
		rc.FontSize = f.fontSize
	}
	if cmd.Flags().Changed("color") {
		rc.Color = f.color
	}
	if cmd.Flags().Changed("sticker") {
		rc.Sticker = f.sticker
	}
	return c.Apply(captions, rc)
}

func openLocation(location string) error {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return browser.OpenURL(location)
	}
	return browser.OpenFile(location)
}
