// Package dot provides a slog handler that reports composer progress as a line of marks,
// with a spinner while an image is loading.
package dot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/k1LoW/errors"
	"github.com/mattn/go-colorable"
)

var (
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// marks maps log messages to the mark printed for them.
var marks = map[string]func(...any) string{
	"loaded image":          cyan,
	"image unchanged":       gray,
	"image load superseded": gray,
	"rendered":              yellow,
	"exported":              green,
}

var symbols = map[string]string{
	"loaded image":          "+",
	"image unchanged":       "=",
	"image load superseded": "-",
	"rendered":              ".",
	"exported":              "✓",
}

var _ slog.Handler = (*dotHandler)(nil)

type dotHandler struct {
	handler slog.Handler
	*state
}

// state is shared by every handler derived with WithAttrs or WithGroup.
type state struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	out     io.Writer
	prefix  []byte
}

// New returns a handler writing marks to w, or to the colorable stdout when w is nil.
// h decides which levels are enabled.
func New(h slog.Handler, w io.Writer) (_ *dotHandler, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	if err := s.Color("yellow"); err != nil {
		return nil, err
	}
	s.Start()
	s.Disable()
	return &dotHandler{
		handler: h,
		state: &state{
			spinner: s,
			out:     w,
		},
	}, nil
}

func (h *dotHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *dotHandler) Handle(ctx context.Context, r slog.Record) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.Message == "loading image" || strings.HasPrefix(r.Message, "retrying") {
		if !h.spinner.Enabled() {
			h.spinner.Enable()
		}
		return nil
	}
	if h.spinner.Enabled() {
		h.spinner.Disable()
		_, _ = h.out.Write(h.prefix)
	}
	if sprint, ok := marks[r.Message]; ok {
		return h.write([]byte(sprint(symbols[r.Message])))
	}
	if r.Level >= slog.LevelWarn || strings.Contains(r.Message, "failed to") {
		return h.write([]byte(red("!")))
	}
	if r.Message == "done" {
		_, _ = h.out.Write([]byte("\n"))
		h.prefix = nil
	}
	return nil
}

func (h *dotHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dotHandler{handler: h.handler.WithAttrs(attrs), state: h.state}
}

func (h *dotHandler) WithGroup(name string) slog.Handler {
	return &dotHandler{handler: h.handler.WithGroup(name), state: h.state}
}

func (h *dotHandler) write(s []byte) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if _, err := h.out.Write(s); err != nil {
		return err
	}
	h.prefix = append(h.prefix, s...)
	return nil
}
