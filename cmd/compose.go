/*
Copyright © 2025 Ken'ichiro Oyama <k1lowxb@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/k1LoW/meme"
	"github.com/k1LoW/meme/config"
	"github.com/spf13/cobra"
)

var (
	composeFlags renderFlags
	formats      []string
	dryRun       bool
	openExported bool
)

var composeCmd = &cobra.Command{
	Use:   "compose [IMAGE]",
	Short: "compose a meme and export it",
	Long: `compose a meme and export it.

IMAGE is a local path, an http(s) URL or - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(profile)
		if err != nil {
			return err
		}
		fs, err := parseFormats(formats)
		if err != nil {
			return err
		}
		logger, err := newLogger(!dryRun)
		if err != nil {
			return err
		}
		c, err := newComposer(cfg, composeFlags.outDir, logger)
		if err != nil {
			return err
		}
		img, err := c.Load(ctx, args[0]).Wait(ctx)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, c, &composeFlags); err != nil {
			return err
		}
		if dryRun {
			l := meme.PlanLayout(img.Width(), img.Height(), c.Snapshot().Config)
			b, err := json.MarshalIndent(l, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		exported, err := c.ExportAll(ctx, fs...)
		logger.Info("done")
		if err != nil {
			return err
		}
		for _, e := range exported {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), e.Location)
			if openExported {
				if err := openLocation(e.Location); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func parseFormats(in []string) ([]meme.Format, error) {
	var fs []meme.Format
	seen := map[meme.Format]bool{}
	for _, s := range in {
		f, err := meme.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		fs = append(fs, f)
	}
	if len(fs) == 0 {
		return nil, fmt.Errorf("no export format given")
	}
	return fs, nil
}

func init() {
	rootCmd.AddCommand(composeCmd)
	addRenderFlags(composeCmd, &composeFlags)
	composeCmd.Flags().StringSliceVarP(&formats, "format", "f", []string{string(meme.FormatPNG)}, "export formats (webp, png)")
	composeCmd.Flags().BoolVarP(&dryRun, "dry-run", "", false, "print the layout as JSON instead of exporting")
	composeCmd.Flags().BoolVarP(&openExported, "open", "", false, "open exported images")
}
