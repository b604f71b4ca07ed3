package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/fatih/color"
	"github.com/k1LoW/meme"
	"github.com/k1LoW/meme/config"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check meme environment and configuration",
	Long:  `Check meme environment and configuration to ensure everything is set up correctly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		bold := color.New(color.Bold)

		allOK := true

		// 1. Check configuration file (optional)
		cmd.Print("🔧 Checking configuration file ... ")
		cfg, err := config.Load(profile)
		if err != nil {
			red.Println("✗ CONFIG ERROR")
			cmd.Printf("   Error loading config: %v\n", err)
			cmd.Println("\nPlease fix the configuration file to use meme properly.")
			return nil
		}
		green.Println("✓ OK")
		if err := renderConfig(cfg).Validate(); err != nil {
			yellow.Println("   ⚠️ Invalid render settings:", err)
			allOK = false
		}

		// 2. Check caption font
		cmd.Print("🔤 Checking caption font ... ")
		fonts := fontSet(cfg)
		name, err := fonts.Resolved()
		switch {
		case err != nil:
			red.Println("✗ NOT FOUND")
			cmd.Printf("   %v\n", err)
			allOK = false
		case name == meme.FamilySansSerif:
			yellow.Println("⚠️ FALLBACK")
			cmd.Println("   No display font found; captions use the embedded sans-serif bold face")
		default:
			green.Println("✓ OK")
			cmd.Printf("   Using %s\n", name)
		}

		// 3. Check encoders
		cmd.Print("🖼  Checking encoders ... ")
		if err := checkEncoders(fonts); err != nil {
			red.Println("✗ FAILED")
			cmd.Printf("   %v\n", err)
			allOK = false
		} else {
			green.Println("✓ OK")
		}

		// 4. Check export destination
		if cfg.ExportCommand != "" {
			cmd.Print("📤 Checking export command ... ")
			if _, err := meme.DetectShell(); err != nil {
				red.Println("✗ NO SHELL")
				cmd.Printf("   %v\n", err)
				allOK = false
			} else {
				green.Println("✓ OK")
				cmd.Printf("   %s\n", cfg.ExportCommand)
			}
		} else {
			cmd.Print("📁 Checking output directory ... ")
			dir := cfg.OutputDir
			if dir == "" {
				dir = "."
			}
			if err := checkWritable(ctx, dir); err != nil {
				red.Println("✗ NOT WRITABLE")
				cmd.Printf("   %v\n", err)
				allOK = false
			} else {
				green.Println("✓ OK")
				cmd.Printf("   %s\n", dir)
			}
		}

		cmd.Println()
		if allOK {
			bold.Printf("🎉 ")
			green.Print("All checks passed! You are ready to use meme")
			bold.Println(".")
			cmd.Println()
			cmd.Println("Try composing a meme:")
			yellow.Println(`  meme compose cat.jpg --top "hello" --bottom "world"`)
		} else {
			red.Println("⚠️  Setup is incomplete.")
			cmd.Println("\nPlease fix the issues above to use meme properly.")
		}
		return nil
	},
}

func checkEncoders(fonts *meme.FontSet) error {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, image.NewNRGBA(image.Rect(0, 0, 64, 64))); err != nil {
		return err
	}
	img, err := meme.NewImageFromReader(context.Background(), buf)
	if err != nil {
		return err
	}
	s, err := meme.Render(meme.Snapshot{
		Image:    img,
		Captions: meme.Captions{Top: "doctor"},
		Config:   meme.RenderConfig{FontSize: meme.DefaultFontSize, Color: meme.DefaultColor, Sticker: true},
	}, fonts)
	if err != nil {
		return err
	}
	for _, f := range meme.Formats {
		if err := meme.Encode(&bytes.Buffer{}, s, f); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

func checkWritable(ctx context.Context, dir string) error {
	sink := meme.NewDirSink(dir)
	p, err := sink.Save(ctx, ".meme-doctor", "text/plain", nil)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
