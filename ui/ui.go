// Package ui provides the terminal UI for deckvoice: a deck picker and the
// narrated presentation view.
package ui

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"

	"github.com/presentpro/deckvoice/deck"
	"github.com/presentpro/deckvoice/engine"
	"github.com/presentpro/deckvoice/internal/answer"
	"github.com/presentpro/deckvoice/internal/script"
)

const ellipsis = "…"

var deckExtensions = []string{
	"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown", "*.json",
}

// NewProgram returns a new Tea program. The device is injected so main can
// pick the synthesis backend.
func NewProgram(cfg Config, dev engine.Device) *tea.Program {
	log.Debug("starting deckvoice", "path", cfg.Path, "autoplay", cfg.AutoPlay)

	common := &commonModel{cfg: cfg}
	m := model{
		common: common,
		state:  stateShowPicker,
		picker: newPicker(common),
		device: dev,
		events: make(chan engine.Event, 64),
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(m, opts...)
}

// state is the top-level application state.
type state int

const (
	stateShowPicker state = iota
	stateShowPresenter
)

func (s state) String() string {
	return map[state]string{
		stateShowPicker:    "showing deck listing",
		stateShowPresenter: "presenting",
	}[s]
}

// commonModel is shared by all sub-models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	picker    pickerModel
	presenter presenterModel

	device engine.Device
	engine *engine.Engine

	// Channel that receives engine notifications; drained one message per
	// waitForEngineEvent command.
	events chan engine.Event

	// Channel that receives deck reloads from the file watcher.
	reloads chan DeckReloadedMsg

	// Channel that receives paths to local deck files
	// (via the github.com/muesli/gitcha package)
	localFileFinder chan gitcha.SearchResult
}

func (m model) Init() tea.Cmd {
	path := m.common.cfg.Path
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return loadDeck(path)
		}
	}
	return tea.Batch(findDecks(m.common.cfg), m.picker.spin.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height

	case tea.KeyMsg:
		if m.fatalErr != nil {
			return m, tea.Quit
		}
		if m.state == stateShowPicker {
			switch msg.String() {
			case "q", "ctrl+c", "esc":
				return m, tea.Quit
			}
		}

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case initLocalFileSearchMsg:
		m.localFileFinder = msg.ch
		m.picker.cwd = msg.cwd
		return m, findNextLocalFile(m.localFileFinder)

	case foundLocalFileMsg:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		return m, tea.Batch(cmd, findNextLocalFile(m.localFileFinder))

	case deckLoadedMsg:
		return m.startPresenting(msg)

	case DeckReloadedMsg:
		if msg.Err != nil {
			log.Error("deck reload failed", "error", msg.Err)
			return m, waitForReload(m.reloads)
		}
		if m.state == stateShowPresenter {
			m.presenter.narration.Replace(msg.Deck)
			if idx := m.engine.CurrentIndex(); idx >= msg.Deck.Len() {
				m.engine.Navigate(msg.Deck.Len() - 1)
			}
			m.presenter.renderSlide()
			next, cmd := m.presenter.withNote("deck reloaded")
			m.presenter = next
			return m, tea.Batch(cmd, waitForReload(m.reloads))
		}
		return m, waitForReload(m.reloads)

	case watcherReadyMsg:
		m.reloads = msg.ch
		return m, waitForReload(m.reloads)

	case engineEventMsg:
		var cmd tea.Cmd
		m.presenter, cmd = m.presenter.update(msg)
		return m, tea.Batch(cmd, waitForEngineEvent(m.events))
	}

	switch m.state {
	case stateShowPicker:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		cmds = append(cmds, cmd)

	case stateShowPresenter:
		var cmd tea.Cmd
		m.presenter, cmd = m.presenter.update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr)
	}
	switch m.state {
	case stateShowPresenter:
		return m.presenter.view()
	default:
		return m.picker.view()
	}
}

// startPresenting builds the engine around the loaded deck and switches to
// the presenter.
func (m model) startPresenting(msg deckLoadedMsg) (tea.Model, tea.Cmd) {
	cfg := m.common.cfg
	narration := deck.NewNarration(msg.deck)

	ec := engine.DefaultConfig()
	ec.VoiceName = cfg.VoiceName
	ec.QAEnabled = cfg.QAEnabled && cfg.AnswerURL != ""
	ec.Params = engine.Params{
		Pitch: cfg.Pitch,
		Rate:  cfg.Rate,
		Tone:  toneLabels[0],
	}.Clamp()

	eng := engine.New(ec, narration, m.device)
	eng.SetHost(&altHost{})
	if cfg.AnswerURL != "" {
		eng.SetAnswerService(answer.NewClient(cfg.AnswerURL))
	}

	var scripts *script.Client
	if cfg.ScriptURL != "" {
		var cache *script.Cache
		if cfg.CacheDir != "" {
			var err error
			cache, err = script.OpenCache(cfg.CacheDir)
			if err != nil {
				log.Error("script cache unavailable", "error", err)
			}
		}
		scripts = script.NewClient(cfg.ScriptURL, cache)
	}

	events := m.events
	eng.Subscribe(func(ev engine.Event) { events <- ev })

	if err := eng.Start(); err != nil {
		m.fatalErr = err
		return m, nil
	}

	m.engine = eng
	m.presenter = newPresenter(m.common, eng, narration, scripts)
	m.presenter.setSize(m.common.width, m.common.height)
	m.state = stateShowPresenter

	cmds := []tea.Cmd{waitForEngineEvent(m.events)}
	if cfg.Watch {
		cmds = append(cmds, startWatcher(msg.path))
	}
	if cfg.AutoPlay {
		eng.Play(true)
	}
	return m, tea.Batch(cmds...)
}

// COMMANDS

func loadDeck(path string) tea.Cmd {
	return func() tea.Msg {
		d, err := deck.LoadFile(path)
		if err != nil {
			return errMsg{err}
		}
		return deckLoadedMsg{path: path, deck: d}
	}
}

func findDecks(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var (
			cwd = cfg.Path
			err error
		)

		if cwd == "" {
			cwd, err = os.Getwd()
		} else {
			cwd, err = filepath.Abs(cwd)
		}
		if err != nil {
			log.Error("error finding local decks", "error", err)
			return errMsg{err}
		}

		var ch chan gitcha.SearchResult
		if cfg.ShowAllFiles {
			ch, err = gitcha.FindAllFilesExcept(cwd, deckExtensions, nil)
		} else {
			ch, err = gitcha.FindFilesExcept(cwd, deckExtensions, ignorePatterns(cfg))
		}
		if err != nil {
			log.Error("error finding local decks", "error", err)
			return errMsg{err}
		}

		return initLocalFileSearchMsg{ch: ch, cwd: cwd}
	}
}

func findNextLocalFile(ch chan gitcha.SearchResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if ok {
			return foundLocalFileMsg(res)
		}
		log.Debug("local deck search finished")
		return localFileSearchFinished{}
	}
}

func ignorePatterns(cfg Config) []string {
	return []string{
		filepath.Join(cfg.HomeDir, "Library"),
		".git",
		"node_modules",
	}
}

type watcherReadyMsg struct{ ch chan DeckReloadedMsg }

func startWatcher(path string) tea.Cmd {
	return func() tea.Msg {
		ch := make(chan DeckReloadedMsg, 1)
		_, err := deck.Watch(path, func(d *deck.Deck, err error) {
			ch <- DeckReloadedMsg{Deck: d, Err: err}
		})
		if err != nil {
			log.Error("cannot watch deck file", "path", path, "error", err)
			return nil
		}
		return watcherReadyMsg{ch: ch}
	}
}

func waitForReload(ch chan DeckReloadedMsg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg { return <-ch }
}

func waitForEngineEvent(ch chan engine.Event) tea.Cmd {
	return func() tea.Msg { return engineEventMsg{ev: <-ch} }
}

// altHost reports fullscreen intent back to the engine. The terminal's alt
// screen is the presentation surface, so enter/exit requests always succeed.
type altHost struct {
	mu     sync.Mutex
	active bool
	fn     func(bool)
}

func (h *altHost) Enter() error { h.set(true); return nil }
func (h *altHost) Exit() error  { h.set(false); return nil }

func (h *altHost) OnChange(fn func(active bool)) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

func (h *altHost) set(active bool) {
	h.mu.Lock()
	changed := h.active != active
	h.active = active
	fn := h.fn
	h.mu.Unlock()
	if changed && fn != nil {
		fn(active)
	}
}

func errorView(err error) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorTextStyle.Render("ERROR"))
	b.WriteString("  " + err.Error() + "\n\n")
	b.WriteString(helpStyle.Render("press any key to exit"))
	b.WriteString("\n")
	return b.String()
}
