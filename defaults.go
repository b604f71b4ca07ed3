package meme

import (
	"fmt"

	"github.com/k1LoW/meme/config"
	"github.com/k1LoW/meme/template"
)

// applyDefaults applies every default condition that matches img, in order, on top of cfg.
func applyDefaults(cfg RenderConfig, defaults []config.DefaultCondition, img *Image) (RenderConfig, error) {
	if len(defaults) == 0 || img == nil {
		return cfg, nil
	}
	store := imageStore(img)
	for _, cond := range defaults {
		if cond.If == "" {
			continue
		}
		ok, err := template.Match(cond.If, store)
		if err != nil {
			return cfg, fmt.Errorf("failed to evaluate default condition: %w", err)
		}
		if !ok {
			continue
		}
		if cond.FontSize != nil {
			cfg.FontSize = *cond.FontSize
		}
		if cond.Color != "" {
			cfg.Color = cond.Color
		}
		if cond.Sticker != nil {
			cfg.Sticker = *cond.Sticker
		}
	}
	return cfg, nil
}

func imageStore(img *Image) map[string]any {
	w, h := img.Width(), img.Height()
	aspect := 0.0
	if h > 0 {
		aspect = float64(w) / float64(h)
	}
	return map[string]any{
		"width":  w,
		"height": h,
		"aspect": aspect,
		"format": img.Format(),
	}
}
