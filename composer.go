package meme

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/k1LoW/errors"
	"github.com/k1LoW/meme/config"
	"golang.org/x/sync/errgroup"
)

// Composer holds one editing session: the Source Image, the captions and the render settings.
// Every change repaints the surface from a fresh Snapshot.
type Composer struct {
	mu       sync.Mutex
	state    State
	source   *Image
	captions Captions
	config   RenderConfig
	surface  *Surface
	hooks    []func(*Surface)
	held     int
	pending  *Surface

	fonts    *FontSet
	sink     Sink
	defaults []config.DefaultCondition
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	loadSeq    uint64
	cancelLoad context.CancelFunc
}

type Option func(*Composer) error

func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) error {
		c.logger = logger
		return nil
	}
}

// WithFonts sets the caption font fallback list.
func WithFonts(fonts *FontSet) Option {
	return func(c *Composer) error {
		c.fonts = fonts
		return nil
	}
}

// WithSink sets where exports are delivered. The default is the current directory.
func WithSink(sink Sink) Option {
	return func(c *Composer) error {
		if sink == nil {
			return fmt.Errorf("sink is nil")
		}
		c.sink = sink
		return nil
	}
}

// WithClock sets the clock used to name exports.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) error {
		c.now = now
		return nil
	}
}

// WithRenderConfig sets the initial render settings.
func WithRenderConfig(cfg RenderConfig) Option {
	return func(c *Composer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// WithDefaults sets conditional render settings applied when an image is loaded.
func WithDefaults(defaults []config.DefaultCondition) Option {
	return func(c *Composer) error {
		c.defaults = defaults
		return nil
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Composer) error {
		c.client = client
		return nil
	}
}

// New creates a Composer in the Empty state.
func New(opts ...Option) (_ *Composer, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	c := &Composer{
		state:  StateEmpty,
		config: DefaultRenderConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if c.fonts == nil {
		c.fonts = NewFontSet(nil)
	}
	if c.sink == nil {
		c.sink = NewDirSink(".")
	}
	if c.client == nil {
		c.client = newHTTPClient(c.logger)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// LoadTask is an image load started by Load or LoadReader.
type LoadTask struct {
	done chan struct{}
	img  *Image
	err  error
}

// Done is closed when the load has finished.
func (t *LoadTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the load finishes or ctx is done.
// A load replaced by a newer one returns ErrSuperseded.
func (t *LoadTask) Wait(ctx context.Context) (*Image, error) {
	select {
	case <-t.done:
		return t.img, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Load starts loading a path, an http(s) URL or "-" for stdin.
// Any load still in flight is cancelled.
func (c *Composer) Load(ctx context.Context, pathOrURL string) *LoadTask {
	return c.startLoad(ctx, pathOrURL, func(ctx context.Context) (*Image, error) {
		return newImage(ctx, c.client, pathOrURL)
	})
}

// LoadReader starts decoding r. Any load still in flight is cancelled.
func (c *Composer) LoadReader(ctx context.Context, r io.Reader) *LoadTask {
	return c.startLoad(ctx, "reader", func(ctx context.Context) (*Image, error) {
		return newImageFromBuffer(ctx, r)
	})
}

func (c *Composer) startLoad(ctx context.Context, source string, decode func(context.Context) (*Image, error)) *LoadTask {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.loadSeq++
	seq := c.loadSeq
	c.cancelLoad = cancel
	c.mu.Unlock()

	c.logger.Info("loading image", slog.String("source", source))
	t := &LoadTask{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		img, err := decode(ctx)
		t.img, t.err = c.finishLoad(seq, img, err)
	}()
	return t
}

func (c *Composer) finishLoad(seq uint64, img *Image, loadErr error) (_ *Image, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	c.mu.Lock()
	if seq != c.loadSeq {
		c.mu.Unlock()
		c.logger.Info("image load superseded", slog.Uint64("seq", seq))
		return nil, ErrSuperseded
	}
	c.cancelLoad = nil
	if loadErr != nil {
		c.mu.Unlock()
		c.logger.Error("failed to load image", slog.String("error", loadErr.Error()))
		return nil, loadErr
	}
	prev := c.source
	if prev.Same(img) {
		// same pixels, the surface stays valid
		c.source = img
		c.mu.Unlock()
		c.logger.Info("image unchanged", slog.String("source", img.Source()))
		return img, nil
	}
	c.source = img
	c.state = StateLoaded
	if cfg, err := applyDefaults(c.config, c.defaults, img); err != nil {
		c.logger.Warn("failed to apply defaults", slog.String("error", err.Error()))
	} else {
		c.config = cfg
	}
	s, rerr := c.renderLocked()
	hooks := c.hooksLocked(s)
	c.mu.Unlock()

	attrs := []any{
		slog.String("source", img.Source()),
		slog.String("format", img.Format()),
		slog.Int("width", img.Width()),
		slog.Int("height", img.Height()),
	}
	if prev != nil {
		if d, err := prev.Distance(img); err == nil {
			attrs = append(attrs, slog.Int("distance", d))
		}
	}
	c.logger.Info("loaded image", attrs...)
	if rerr != nil {
		return img, rerr
	}
	c.notify(hooks, s)
	return img, nil
}

func (c *Composer) SetTopText(text string) error {
	return c.update(func(cs *Captions, _ *RenderConfig) error {
		cs.Top = text
		return nil
	})
}

func (c *Composer) SetBottomText(text string) error {
	return c.update(func(cs *Captions, _ *RenderConfig) error {
		cs.Bottom = text
		return nil
	})
}

// SetFontSize sets the caption size in pixels. The size must be positive.
func (c *Composer) SetFontSize(size float64) error {
	return c.update(func(_ *Captions, cfg *RenderConfig) error {
		cfg.FontSize = size
		return cfg.Validate()
	})
}

// SetColor sets the caption fill color, a CSS hex color.
func (c *Composer) SetColor(hex string) error {
	return c.update(func(_ *Captions, cfg *RenderConfig) error {
		cfg.Color = hex
		return cfg.Validate()
	})
}

func (c *Composer) SetSticker(sticker bool) error {
	return c.update(func(_ *Captions, cfg *RenderConfig) error {
		cfg.Sticker = sticker
		return nil
	})
}

// Apply replaces the captions and the render settings at once.
func (c *Composer) Apply(captions Captions, cfg RenderConfig) error {
	return c.update(func(cs *Captions, rc *RenderConfig) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		*cs, *rc = captions, cfg
		return nil
	})
}

// update applies fn to copies of the captions and settings, commits them when fn succeeds
// and repaints if an image is loaded and something changed.
func (c *Composer) update(fn func(*Captions, *RenderConfig) error) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	c.mu.Lock()
	captions, cfg := c.captions, c.config
	if err := fn(&captions, &cfg); err != nil {
		c.mu.Unlock()
		return err
	}
	changed := captions != c.captions || cfg != c.config
	c.captions, c.config = captions, cfg
	if c.state != StateLoaded || (!changed && c.surface != nil) {
		c.mu.Unlock()
		return nil
	}
	s, err := c.renderLocked()
	hooks := c.hooksLocked(s)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(hooks, s)
	return nil
}

// Render repaints the surface from the current snapshot.
func (c *Composer) Render() (_ *Surface, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	c.mu.Lock()
	if c.state != StateLoaded {
		c.mu.Unlock()
		return nil, ErrNoImage
	}
	s, err := c.renderLocked()
	hooks := c.hooksLocked(s)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.notify(hooks, s)
	return s, nil
}

func (c *Composer) renderLocked() (*Surface, error) {
	snap := c.snapshotLocked()
	s, err := Render(snap, c.fonts)
	if err != nil {
		c.surface = nil
		c.logger.Error("failed to render", slog.String("error", err.Error()))
		return nil, err
	}
	c.surface = s
	c.logger.Info("rendered",
		slog.Int("width", s.Width()),
		slog.Int("height", s.Height()),
		slog.Bool("sticker", snap.Config.Sticker),
	)
	return s, nil
}

// hooksLocked returns the hooks to notify of s. While a Batch is running it returns nothing
// and keeps s for the end of the batch.
func (c *Composer) hooksLocked(s *Surface) []func(*Surface) {
	if s == nil {
		return nil
	}
	if c.held > 0 {
		c.pending = s
		return nil
	}
	return slices.Clone(c.hooks)
}

// Batch runs fn with render notifications held back. When fn returns, hooks are notified
// once with the last surface rendered while it ran, if any.
func (c *Composer) Batch(fn func() error) error {
	c.mu.Lock()
	c.held++
	c.mu.Unlock()

	err := fn()

	c.mu.Lock()
	c.held--
	var (
		s     *Surface
		hooks []func(*Surface)
	)
	if c.held == 0 && c.pending != nil {
		s, c.pending = c.pending, nil
		hooks = slices.Clone(c.hooks)
	}
	c.mu.Unlock()
	c.notify(hooks, s)
	return err
}

// Defaults returns base with every configured default that matches img applied.
func (c *Composer) Defaults(base RenderConfig, img *Image) (_ RenderConfig, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	return applyDefaults(base, c.defaults, img)
}

func (c *Composer) notify(hooks []func(*Surface), s *Surface) {
	for _, fn := range hooks {
		fn(s)
	}
}

// OnRender registers fn to be called with every new surface.
func (c *Composer) OnRender(fn func(*Surface)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Snapshot returns the inputs of the next render.
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Composer) snapshotLocked() Snapshot {
	return Snapshot{
		Image:    c.source,
		Captions: c.captions,
		Config:   c.config,
	}
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Surface returns the last rendered surface, or nil before the first render.
func (c *Composer) Surface() *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Export encodes the composited surface in format f and hands it to the sink.
// It returns ErrNoImage, without exporting anything, while no image is loaded.
func (c *Composer) Export(ctx context.Context, f Format) (_ *Exported, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	c.mu.Lock()
	if c.state != StateLoaded {
		c.mu.Unlock()
		c.logger.Warn(ErrNoImage.Error(), slog.String("format", string(f)))
		return nil, ErrNoImage
	}
	s := c.surface
	if s == nil {
		s, err = c.renderLocked()
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	sink := c.sink
	name := Filename(f, c.now())
	c.mu.Unlock()

	buf := &bytes.Buffer{}
	if err := Encode(buf, s, f); err != nil {
		c.logger.Error("failed to encode", slog.String("name", name), slog.String("error", err.Error()))
		return nil, err
	}
	location, err := sink.Save(ctx, name, string(f.MIMEType()), buf.Bytes())
	if err != nil {
		c.logger.Error("failed to export", slog.String("name", name), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to export %s: %w", name, err)
	}
	c.logger.Info("exported",
		slog.String("name", name),
		slog.String("location", location),
		slog.Int("size", buf.Len()),
	)
	return &Exported{
		Name:     name,
		Location: location,
		Format:   f,
		Size:     buf.Len(),
		Width:    s.Width(),
		Height:   s.Height(),
	}, nil
}

// ExportAll exports the surface in every given format concurrently.
// The results are in the order of formats.
func (c *Composer) ExportAll(ctx context.Context, formats ...Format) (_ []*Exported, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if c.State() != StateLoaded {
		c.logger.Warn(ErrNoImage.Error())
		return nil, ErrNoImage
	}
	results := make([]*Exported, len(formats))
	eg, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		eg.Go(func() error {
			e, err := c.Export(ctx, f)
			if err != nil {
				return err
			}
			results[i] = e
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
