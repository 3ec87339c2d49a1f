package ui

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

// pickerModel lists deck files found under the working directory and lets
// the user choose one to present.
type pickerModel struct {
	common    *commonModel
	spin      spinner.Model
	cwd       string
	files     []string
	cursor    int
	searching bool
}

func newPicker(common *commonModel) pickerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return pickerModel{
		common:    common,
		spin:      sp,
		searching: true,
	}
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case foundLocalFileMsg:
		m.files = append(m.files, msg.Path)

	case localFileSearchFinished:
		m.searching = false

	case spinner.TickMsg:
		if m.searching {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.files)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.files) > 0 {
				return m, loadDeck(m.files[m.cursor])
			}
		}
	}

	return m, nil
}

func (m pickerModel) view() string {
	var out string
	out += titleBarStyle.Render("deckvoice") + "\n\n"

	if len(m.files) == 0 {
		if m.searching {
			return out + "  " + m.spin.View() + " Looking for decks…\n"
		}
		return out + "  No decks found.\n"
	}

	maxw := m.common.width - 6
	if maxw < 8 {
		maxw = 8
	}
	for i, f := range m.files {
		name := runewidth.Truncate(m.relative(f), maxw, ellipsis)
		if i == m.cursor {
			out += questionPromptStyle.Render("> "+name) + "\n"
		} else {
			out += "  " + name + "\n"
		}
	}
	if m.searching {
		out += "\n  " + m.spin.View() + " searching…\n"
	}
	out += "\n" + helpStyle.Render("↑/↓ select · enter present · q quit") + "\n"
	return out
}

func (m pickerModel) relative(path string) string {
	if m.cwd == "" {
		return path
	}
	rel, err := filepath.Rel(m.cwd, path)
	if err != nil {
		return path
	}
	return rel
}
