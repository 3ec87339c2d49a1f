package ui

import (
	"github.com/muesli/gitcha"

	"github.com/presentpro/deckvoice/deck"
	"github.com/presentpro/deckvoice/engine"
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// DeckReloadedMsg carries a freshly reloaded deck (or the reload error) from
// the file watcher into the program via Program.Send.
type DeckReloadedMsg struct {
	Deck *deck.Deck
	Err  error
}

type (
	// engineEventMsg wraps an engine notification for the update loop.
	engineEventMsg struct{ ev engine.Event }

	// deckLoadedMsg reports that the deck at path parsed successfully.
	deckLoadedMsg struct {
		path string
		deck *deck.Deck
	}

	initLocalFileSearchMsg struct {
		cwd string
		ch  chan gitcha.SearchResult
	}
	foundLocalFileMsg       gitcha.SearchResult
	localFileSearchFinished struct{}

	// hideControlsMsg retires the transient controls overlay. The seq guards
	// against a stale timer hiding controls a later keypress re-showed.
	hideControlsMsg struct{ seq int }

	// noteTimeoutMsg clears a transient status note.
	noteTimeoutMsg struct{ seq int }

	// editorFinishedMsg reports the external editor closing over a slide
	// script scratch file.
	editorFinishedMsg struct {
		index int
		path  string
		err   error
	}

	// scriptGeneratedMsg carries a regenerated narration script.
	scriptGeneratedMsg struct {
		index  int
		script string
		err    error
	}
)
