package ui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/editor"
)

// editScript opens the slide's resolved narration in the user's editor. The
// saved buffer becomes the slide's narration override.
func editScript(index int, text string) tea.Cmd {
	tmp, err := os.CreateTemp("", "deckvoice-slide-*.md")
	if err != nil {
		return func() tea.Msg { return editorFinishedMsg{index: index, err: err} }
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return func() tea.Msg { return editorFinishedMsg{index: index, err: err} }
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return func() tea.Msg { return editorFinishedMsg{index: index, err: err} }
	}

	c, err := editor.Cmd("deckvoice", tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return func() tea.Msg { return editorFinishedMsg{index: index, err: err} }
	}
	path := tmp.Name()
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorFinishedMsg{index: index, path: path, err: err}
	})
}
