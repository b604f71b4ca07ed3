package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/k1LoW/meme"
)

type field int

const (
	fieldImage field = iota
	fieldTop
	fieldBottom
	fieldFontSize
	fieldColor
	fieldSticker // toggle, not a text input
	fieldCount
)

var labels = [fieldCount]string{"image", "top", "bottom", "font size", "color", "sticker"}

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelWarning
	levelError
)

type loadedMsg struct {
	img *meme.Image
	err error
}

type exportedMsg struct {
	exported *meme.Exported
	err      error
}

// Model is the editor form. Every edit is applied to the Composer immediately,
// which repaints the surface.
type Model struct {
	ctx     context.Context
	c       *meme.Composer
	initial string

	inputs  [fieldSticker]textinput.Model
	sticker bool
	focus   field
	loading bool
	status  string
	level   statusLevel
	styles  styles
}

// NewModel creates the form from the composer's current captions and settings.
func NewModel(ctx context.Context, c *meme.Composer, initial string) Model {
	snap := c.Snapshot()
	m := Model{
		ctx:     ctx,
		c:       c,
		initial: initial,
		sticker: snap.Config.Sticker,
		styles:  defaultStyles(),
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 0
		ti.Width = 48
		m.inputs[i] = ti
	}
	m.inputs[fieldImage].Placeholder = "path, URL or - for stdin"
	m.inputs[fieldImage].SetValue(initial)
	m.inputs[fieldTop].Placeholder = "top text"
	m.inputs[fieldBottom].Placeholder = "bottom text"
	m.inputs[fieldTop].SetValue(snap.Captions.Top)
	m.inputs[fieldBottom].SetValue(snap.Captions.Bottom)
	m = m.syncConfig(snap.Config)
	return m.setFocus(fieldImage)
}

func (m Model) Init() tea.Cmd {
	if m.initial == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.load(m.initial))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			return m.setFocus((m.focus + 1) % fieldCount), nil
		case "shift+tab", "up":
			return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil
		case "ctrl+s":
			return m, m.export(meme.FormatWebP)
		case "ctrl+p":
			return m, m.export(meme.FormatPNG)
		case "enter":
			switch m.focus {
			case fieldImage:
				v := strings.TrimSpace(m.inputs[fieldImage].Value())
				if v == "" {
					return m.setStatus(levelWarning, "type an image path or URL first"), nil
				}
				m.loading = true
				return m.setStatus(levelInfo, "loading "+v), m.load(v)
			case fieldSticker:
				return m.toggleSticker(), nil
			}
			return m.setFocus((m.focus + 1) % fieldCount), nil
		case " ":
			if m.focus == fieldSticker {
				return m.toggleSticker(), nil
			}
		}
	case loadedMsg:
		if errors.Is(msg.err, meme.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m.setStatus(levelError, msg.err.Error()), nil
		}
		// defaults matched on load may have changed the settings
		m = m.syncConfig(m.c.Snapshot().Config)
		return m.setStatus(levelInfo, fmt.Sprintf("loaded %s (%dx%d)", msg.img.Format(), msg.img.Width(), msg.img.Height())), nil
	case exportedMsg:
		switch {
		case errors.Is(msg.err, meme.ErrNoImage):
			return m.setStatus(levelWarning, meme.ErrNoImage.Error()), nil
		case msg.err != nil:
			return m.setStatus(levelError, msg.err.Error()), nil
		}
		return m.setStatus(levelInfo, "exported "+msg.exported.Location), nil
	}

	if m.focus == fieldSticker {
		return m, nil
	}
	before := m.inputs[m.focus].Value()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if v := m.inputs[m.focus].Value(); v != before {
		m = m.apply(m.focus, v)
	}
	return m, cmd
}

func (m Model) View() string {
	b := &strings.Builder{}
	b.WriteString(m.styles.title.Render("meme"))
	b.WriteString("\n\n")
	if m.c.State() == meme.StateEmpty && !m.loading {
		b.WriteString(m.styles.prompt.Render("Type an image path or URL and press enter to start."))
		b.WriteString("\n\n")
	}
	for f := fieldImage; f < fieldCount; f++ {
		label := m.styles.label
		if f == m.focus {
			label = m.styles.focused
		}
		b.WriteString(label.Render(labels[f]))
		if f == fieldSticker {
			if m.sticker {
				b.WriteString("[x] 512x512")
			} else {
				b.WriteString("[ ] 512x512")
			}
		} else {
			b.WriteString(m.inputs[f].View())
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if s := m.c.Surface(); s != nil {
		b.WriteString(m.styles.help.Render(fmt.Sprintf("canvas %dx%d", s.Width(), s.Height())))
		b.WriteString("\n")
	}
	if m.status != "" {
		switch m.level {
		case levelWarning:
			b.WriteString(m.styles.warning.Render(m.status))
		case levelError:
			b.WriteString(m.styles.errorMsg.Render(m.status))
		default:
			b.WriteString(m.styles.info.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("tab move • enter load/toggle • ctrl+s export webp • ctrl+p export png • esc quit"))
	return b.String()
}

func (m Model) load(pathOrURL string) tea.Cmd {
	task := m.c.Load(m.ctx, pathOrURL)
	ctx := m.ctx
	return func() tea.Msg {
		img, err := task.Wait(ctx)
		return loadedMsg{img: img, err: err}
	}
}

func (m Model) export(f meme.Format) tea.Cmd {
	c, ctx := m.c, m.ctx
	return func() tea.Msg {
		e, err := c.Export(ctx, f)
		return exportedMsg{exported: e, err: err}
	}
}

// apply pushes an edited field to the composer.
func (m Model) apply(f field, v string) Model {
	var err error
	switch f {
	case fieldTop:
		err = m.c.SetTopText(v)
	case fieldBottom:
		err = m.c.SetBottomText(v)
	case fieldFontSize:
		size, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if perr != nil {
			return m.setStatus(levelError, fmt.Sprintf("invalid font size: %q", v))
		}
		err = m.c.SetFontSize(size)
	case fieldColor:
		err = m.c.SetColor(strings.TrimSpace(v))
	default:
		return m
	}
	if err != nil {
		return m.setStatus(levelError, err.Error())
	}
	if m.level == levelError {
		m = m.setStatus(levelInfo, "")
	}
	return m
}

func (m Model) toggleSticker() Model {
	m.sticker = !m.sticker
	if err := m.c.SetSticker(m.sticker); err != nil {
		return m.setStatus(levelError, err.Error())
	}
	return m
}

func (m Model) syncConfig(cfg meme.RenderConfig) Model {
	m.inputs[fieldFontSize].SetValue(strconv.FormatFloat(cfg.FontSize, 'f', -1, 64))
	m.inputs[fieldColor].SetValue(cfg.Color)
	m.sticker = cfg.Sticker
	return m
}

func (m Model) setFocus(f field) Model {
	for i := range m.inputs {
		if field(i) == f {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	m.focus = f
	return m
}

func (m Model) setStatus(level statusLevel, status string) Model {
	m.level = level
	m.status = status
	return m
}
