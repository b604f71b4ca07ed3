package meme

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
)

func TestFontSetResolve(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string][]byte
		families []string
		want     string
		wantErr  bool
	}{
		{
			name:     "display face first",
			files:    map[string][]byte{"Impact.ttf": gobold.TTF, "ariblk.ttf": gobold.TTF},
			families: DefaultFontFamilies,
			want:     "Impact",
		},
		{
			name:     "generic bold by file name alias",
			files:    map[string][]byte{"ariblk.ttf": gobold.TTF},
			families: []string{"Arial Black", FamilySansSerif},
			want:     "Arial Black",
		},
		{
			name:     "unparsable font falls through",
			files:    map[string][]byte{"Meme-Display.ttf": []byte("not a font")},
			families: []string{"Meme Display", FamilySansSerif},
			want:     FamilySansSerif,
		},
		{
			name:     "missing family falls back to sans-serif",
			families: []string{"No Such Meme Font", FamilySansSerif},
			want:     FamilySansSerif,
		},
		{
			name:     "nothing usable",
			families: []string{"No Such Meme Font"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, b := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), b, 0o600); err != nil {
					t.Fatal(err)
				}
			}
			fs := NewFontSet(tt.families, dir)
			got, err := fs.Resolved()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolved() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolved() = %q, want %q", got, tt.want)
			}
			if _, err := fs.Face(40); (err != nil) != tt.wantErr {
				t.Errorf("Face() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFontSetFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "caption.ttf")
	if err := os.WriteFile(p, gobold.TTF, 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFontSet([]string{p})
	got, err := fs.Resolved()
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("got %q, want %q", got, p)
	}
}

func TestFontSetFace(t *testing.T) {
	fs := testFonts()
	small, err := fs.Face(20)
	if err != nil {
		t.Fatal(err)
	}
	defer small.Close()
	large, err := fs.Face(80)
	if err != nil {
		t.Fatal(err)
	}
	defer large.Close()
	if small.Metrics().Height >= large.Metrics().Height {
		t.Errorf("20px face (%v) is not smaller than 80px face (%v)", small.Metrics().Height, large.Metrics().Height)
	}
}
