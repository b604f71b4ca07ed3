package cmd

import (
	"github.com/k1LoW/meme/config"
	"github.com/k1LoW/meme/tui"
	"github.com/spf13/cobra"
)

var editFlags renderFlags

var editCmd = &cobra.Command{
	Use:   "edit [IMAGE]",
	Short: "edit a meme in the terminal",
	Long: `edit a meme in the terminal.

Type an image path or URL and press enter to load it. Captions, font size, color and
sticker mode repaint as you type. ctrl+s exports a WebP sticker, ctrl+p exports a PNG.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(profile)
		if err != nil {
			return err
		}
		// Progress marks would corrupt the terminal UI; logs only go to error.json.
		logger, err := newLogger(false)
		if err != nil {
			return err
		}
		c, err := newComposer(cfg, editFlags.outDir, logger)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, c, &editFlags); err != nil {
			return err
		}
		var initial string
		if len(args) > 0 {
			initial = args[0]
		}
		return tui.Run(cmd.Context(), c, initial)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	addRenderFlags(editCmd, &editFlags)
}
