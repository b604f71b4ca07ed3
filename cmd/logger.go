package cmd

import (
	"log/slog"
	"os"

	"github.com/k1LoW/meme/logger/dot"
	"github.com/k1LoW/tail"
	slogmulti "github.com/samber/slog-multi"
)

// tb keeps the latest JSON log lines for error.json.
var tb = tail.New(1000)

// newLogger returns a logger that records every level into tb and, when console is true,
// prints progress marks to stdout.
func newLogger(console bool) (*slog.Logger, error) {
	handlers := []slog.Handler{
		slog.NewJSONHandler(tb, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	if console {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		h, err := dot.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}), nil)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}
