// Package tui is the interactive terminal editor behind `meme edit`.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/k1LoW/meme"
)

// Run starts the editor on c and blocks until the user quits.
// A non-empty initial image is loaded right away.
func Run(ctx context.Context, c *meme.Composer, initial string) error {
	p := tea.NewProgram(
		NewModel(ctx, c, initial),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
