package meme

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/k1LoW/meme/config"
)

// gatedReader blocks reads until open is closed.
type gatedReader struct {
	open chan struct{}
	r    io.Reader
}

func (g *gatedReader) Read(p []byte) (int, error) {
	<-g.open
	return g.r.Read(p)
}

func newTestComposer(t *testing.T, opts ...Option) (*Composer, *recordSink) {
	t.Helper()
	sink := &recordSink{}
	opts = append([]Option{
		WithFonts(testFonts()),
		WithSink(sink),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c, sink
}

func load(t *testing.T, c *Composer, img image.Image) *Image {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	i, err := c.LoadReader(ctx, bytes.NewReader(encodePNG(t, img))).Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return i
}

func TestComposerExportWithoutImage(t *testing.T) {
	c, sink := newTestComposer(t)
	if got := c.State(); got != StateEmpty {
		t.Fatalf("state = %s, want %s", got, StateEmpty)
	}
	for _, f := range Formats {
		if _, err := c.Export(context.Background(), f); !errors.Is(err, ErrNoImage) {
			t.Errorf("Export(%s) error = %v, want %v", f, err, ErrNoImage)
		}
	}
	if _, err := c.ExportAll(context.Background(), Formats...); !errors.Is(err, ErrNoImage) {
		t.Errorf("ExportAll error = %v, want %v", err, ErrNoImage)
	}
	if _, err := c.Render(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Render error = %v, want %v", err, ErrNoImage)
	}
	if got := len(sink.exports()); got != 0 {
		t.Errorf("sink received %d exports, want 0", got)
	}
}

func TestComposerLoadAndExport(t *testing.T) {
	c, sink := newTestComposer(t)
	if err := c.SetTopText("top"); err != nil {
		t.Fatal(err)
	}
	if c.Surface() != nil {
		t.Error("rendered before an image was loaded")
	}
	load(t, c, gradientImage(640, 480))
	if got := c.State(); got != StateLoaded {
		t.Fatalf("state = %s, want %s", got, StateLoaded)
	}
	if err := c.SetBottomText("bottom"); err != nil {
		t.Fatal(err)
	}

	e, err := c.Export(context.Background(), FormatPNG)
	if err != nil {
		t.Fatal(err)
	}
	want := &Exported{
		Name:     "meme-1700000000000.png",
		Location: "memory://meme-1700000000000.png",
		Format:   FormatPNG,
		Size:     e.Size,
		Width:    640,
		Height:   480,
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Error(diff)
	}
	saved := sink.exports()
	if len(saved) != 1 {
		t.Fatalf("sink received %d exports, want 1", len(saved))
	}
	if saved[0].mimeType != string(MIMETypeImagePNG) {
		t.Errorf("mime type = %s, want %s", saved[0].mimeType, MIMETypeImagePNG)
	}
	got, err := NewImageFromReader(context.Background(), bytes.NewReader(saved[0].data))
	if err != nil {
		t.Fatal(err)
	}
	expected, err := Render(c.Snapshot(), testFonts())
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != expected.Width() || got.Height() != expected.Height() {
		t.Errorf("exported %dx%d, want %dx%d", got.Width(), got.Height(), expected.Width(), expected.Height())
	}
	for _, p := range [][2]int{{320, 40}, {320, 450}, {10, 10}} {
		g := color.NRGBAModel.Convert(got.Image().At(p[0], p[1]))
		w := color.NRGBAModel.Convert(expected.Image().At(p[0], p[1]))
		if g != w {
			t.Errorf("exported pixel %v = %v, want %v", p, g, w)
		}
	}
}

func TestComposerExportAll(t *testing.T) {
	c, sink := newTestComposer(t)
	load(t, c, gradientImage(300, 200))
	if err := c.SetSticker(true); err != nil {
		t.Fatal(err)
	}
	got, err := c.ExportAll(context.Background(), Formats...)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, e := range got {
		names = append(names, e.Name)
		if e.Width != StickerSize || e.Height != StickerSize {
			t.Errorf("%s is %dx%d, want sticker size", e.Name, e.Width, e.Height)
		}
	}
	if diff := cmp.Diff([]string{"meme-sticker-1700000000000.webp", "meme-1700000000000.png"}, names); diff != "" {
		t.Error(diff)
	}
	if got := len(sink.exports()); got != 2 {
		t.Errorf("sink received %d exports, want 2", got)
	}
}

func TestComposerNewerLoadWins(t *testing.T) {
	c, _ := newTestComposer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gate := make(chan struct{})
	first := c.LoadReader(ctx, &gatedReader{open: gate, r: bytes.NewReader(encodePNG(t, gradientImage(100, 100)))})
	second := c.LoadReader(ctx, bytes.NewReader(encodePNG(t, gradientImage(200, 50))))

	img, err := second.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	close(gate)
	if _, err := first.Wait(ctx); !errors.Is(err, ErrSuperseded) {
		t.Errorf("first load error = %v, want %v", err, ErrSuperseded)
	}
	if got := c.Snapshot().Image; got != img {
		t.Error("the superseded load replaced the source image")
	}
	if s := c.Surface(); s.Width() != 200 || s.Height() != 50 {
		t.Errorf("surface is %dx%d, want 200x50", s.Width(), s.Height())
	}
}

func TestComposerLoadFailure(t *testing.T) {
	c, _ := newTestComposer(t)
	ctx := context.Background()
	_, err := c.LoadReader(ctx, bytes.NewReader([]byte("not an image"))).Wait(ctx)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want %v", err, ErrDecode)
	}
	if got := c.State(); got != StateEmpty {
		t.Errorf("state = %s, want %s", got, StateEmpty)
	}

	load(t, c, gradientImage(10, 10))
	_, err = c.LoadReader(ctx, bytes.NewReader([]byte("still not an image"))).Wait(ctx)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want %v", err, ErrDecode)
	}
	if got := c.State(); got != StateLoaded {
		t.Errorf("state = %s, want %s", got, StateLoaded)
	}
}

func TestComposerSetters(t *testing.T) {
	c, _ := newTestComposer(t)
	load(t, c, gradientImage(100, 100))
	var renders atomic.Int32
	c.OnRender(func(*Surface) { renders.Add(1) })

	if err := c.SetTopText("a"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFontSize(72); err != nil {
		t.Fatal(err)
	}
	if err := c.SetColor("#00ff00"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSticker(true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFontSize(0); err == nil {
		t.Error("SetFontSize(0) want error")
	}
	if err := c.SetColor("green"); err == nil {
		t.Error(`SetColor("green") want error`)
	}

	want := Snapshot{
		Captions: Captions{Top: "a"},
		Config:   RenderConfig{FontSize: 72, Color: "#00ff00", Sticker: true},
	}
	got := c.Snapshot()
	got.Image = nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Error(diff)
	}
	if got := renders.Load(); got != 4 {
		t.Errorf("rendered %d times, want 4", got)
	}
	if s := c.Surface(); s.Width() != StickerSize {
		t.Errorf("surface width = %d, want %d", s.Width(), StickerSize)
	}
}

func TestComposerReloadSameImage(t *testing.T) {
	c, _ := newTestComposer(t)
	src := gradientImage(50, 50)
	first := load(t, c, src)
	var renders atomic.Int32
	c.OnRender(func(*Surface) { renders.Add(1) })
	surface := c.Surface()
	second := load(t, c, src)
	if !second.Same(first) {
		t.Error("reloaded image differs")
	}
	if got := renders.Load(); got != 0 {
		t.Errorf("rendered %d times, want 0", got)
	}
	if c.Surface() != surface {
		t.Error("reloading identical bytes replaced the surface")
	}
}

func TestComposerLoadSameBytesNewPath(t *testing.T) {
	c, _ := newTestComposer(t)
	dir := t.TempDir()
	src := gradientImage(50, 50)
	a := writeTestImage(t, dir, "a.png", src)
	b := writeTestImage(t, dir, "b.png", src)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.Load(ctx, a).Wait(ctx); err != nil {
		t.Fatal(err)
	}
	var renders atomic.Int32
	c.OnRender(func(*Surface) { renders.Add(1) })
	img, err := c.Load(ctx, b).Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Image; got != img || got.Source() != b {
		t.Errorf("source = %q, want %q", got.Source(), b)
	}
	if got := renders.Load(); got != 0 {
		t.Errorf("rendered %d times, want 0", got)
	}
}

func TestComposerBatch(t *testing.T) {
	c, _ := newTestComposer(t)
	var (
		renders atomic.Int32
		last    atomic.Pointer[Surface]
	)
	c.OnRender(func(s *Surface) {
		renders.Add(1)
		last.Store(s)
	})
	if err := c.Batch(func() error {
		load(t, c, gradientImage(80, 40))
		if err := c.SetTopText("top"); err != nil {
			return err
		}
		if got := renders.Load(); got != 0 {
			t.Errorf("hooks ran %d times inside the batch", got)
		}
		return c.SetSticker(true)
	}); err != nil {
		t.Fatal(err)
	}
	if got := renders.Load(); got != 1 {
		t.Errorf("rendered %d times, want 1", got)
	}
	if s := last.Load(); s == nil || s != c.Surface() || s.Width() != StickerSize {
		t.Error("hooks did not receive the last surface")
	}

	want := errors.New("boom")
	if err := c.Batch(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
	if got := renders.Load(); got != 1 {
		t.Errorf("an empty batch notified hooks, %d renders", got)
	}
}

func TestComposerDefaultsFor(t *testing.T) {
	sticker := true
	c, _ := newTestComposer(t, WithDefaults([]config.DefaultCondition{
		{If: "width > height", Sticker: &sticker},
	}))
	base := RenderConfig{FontSize: 30, Color: "#000000"}
	wide := newTestImage(t, gradientImage(80, 40))
	got, err := c.Defaults(base, wide)
	if err != nil {
		t.Fatal(err)
	}
	if want := (RenderConfig{FontSize: 30, Color: "#000000", Sticker: true}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	tall := newTestImage(t, gradientImage(40, 80))
	if got, err := c.Defaults(base, tall); err != nil || got != base {
		t.Errorf("got %+v, %v, want %+v", got, err, base)
	}
}

func TestComposerDefaults(t *testing.T) {
	sticker := true
	size := 64.0
	c, _ := newTestComposer(t, WithDefaults([]config.DefaultCondition{
		{If: "width > height", Sticker: &sticker},
		{If: "format == 'png' && width >= 800", FontSize: &size, Color: "#ffcc00"},
	}))
	load(t, c, gradientImage(400, 300))
	if got := c.Snapshot().Config; got != (RenderConfig{FontSize: DefaultFontSize, Color: DefaultColor, Sticker: true}) {
		t.Errorf("config = %+v", got)
	}
	load(t, c, gradientImage(1000, 300))
	if got := c.Snapshot().Config; got != (RenderConfig{FontSize: 64, Color: "#ffcc00", Sticker: true}) {
		t.Errorf("config = %+v", got)
	}
}

func TestNewInvalidOptions(t *testing.T) {
	if _, err := New(WithSink(nil)); err == nil {
		t.Error("WithSink(nil) want error")
	}
	if _, err := New(WithRenderConfig(RenderConfig{FontSize: 40, Color: "nope"})); err == nil {
		t.Error("invalid render config want error")
	}
}

func TestComposerApply(t *testing.T) {
	c, _ := newTestComposer(t)
	load(t, c, gradientImage(100, 100))
	var renders atomic.Int32
	c.OnRender(func(*Surface) { renders.Add(1) })

	captions := Captions{Top: "top", Bottom: "bottom"}
	cfg := RenderConfig{FontSize: 30, Color: "#ff0000", Sticker: true}
	if err := c.Apply(captions, cfg); err != nil {
		t.Fatal(err)
	}
	if err := c.Apply(captions, cfg); err != nil {
		t.Fatal(err)
	}
	if err := c.SetTopText("top"); err != nil {
		t.Fatal(err)
	}
	if got := renders.Load(); got != 1 {
		t.Errorf("rendered %d times, want 1", got)
	}
	if err := c.Apply(Captions{}, RenderConfig{FontSize: 30, Color: "red"}); err == nil {
		t.Error("want error")
	}
	got := c.Snapshot()
	if got.Captions != captions || got.Config != cfg {
		t.Errorf("invalid Apply changed the snapshot: %+v", got)
	}
}
