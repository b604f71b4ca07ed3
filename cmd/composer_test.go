package cmd

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/k1LoW/meme"
	"github.com/k1LoW/meme/config"
	"github.com/spf13/cobra"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      []string
		want    []meme.Format
		wantErr bool
	}{
		{[]string{"png"}, []meme.Format{meme.FormatPNG}, false},
		{[]string{"webp", "png", "webp"}, []meme.Format{meme.FormatWebP, meme.FormatPNG}, false},
		{[]string{"gif"}, nil, true},
		{nil, nil, true},
	}
	for _, tt := range tests {
		got, err := parseFormats(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFormats(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Error(diff)
		}
	}
}

func TestRenderConfig(t *testing.T) {
	size := 56.0
	on := true
	got := renderConfig(&config.Config{FontSize: &size, Color: "#00ff00", Sticker: &on})
	want := meme.RenderConfig{FontSize: 56, Color: "#00ff00", Sticker: true}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got := renderConfig(&config.Config{}); got != meme.DefaultRenderConfig() {
		t.Errorf("got %+v, want defaults", got)
	}
}

func TestNewSink(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.Config
		outDir string
		want   string
	}{
		{"default", &config.Config{}, "", "*meme.DirSink"},
		{"export command", &config.Config{ExportCommand: "cat > /dev/null"}, "", "*meme.CommandSink"},
		{"out-dir wins", &config.Config{ExportCommand: "cat > /dev/null"}, "out", "*meme.DirSink"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprintf("%T", newSink(tt.cfg, tt.outDir)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	size := 20.0
	cfg := &config.Config{FontSize: &size, Color: "#123456"}
	c, err := newComposer(cfg, t.TempDir(), discardLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	f := &renderFlags{}
	cmd := &cobra.Command{}
	addRenderFlags(cmd, f)
	if err := cmd.ParseFlags([]string{"--top", "hello", "--color", "#ff0000"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlags(cmd, c, f); err != nil {
		t.Fatal(err)
	}
	want := meme.Snapshot{
		Captions: meme.Captions{Top: "hello"},
		Config:   meme.RenderConfig{FontSize: 20, Color: "#ff0000"},
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Error(diff)
	}
}
