package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"

	"github.com/presentpro/deckvoice/deck"
	"github.com/presentpro/deckvoice/engine"
	"github.com/presentpro/deckvoice/internal/script"
)

const (
	// controlsTimeout is how long the footer controls stay up after input.
	controlsTimeout = 3 * time.Second

	// noteTimeout is how long transient status notes are shown.
	noteTimeout = 2 * time.Second

	regenerateTimeout = 60 * time.Second
)

var toneLabels = []string{"Formal", "Friendly", "Energetic", "Neutral"}

func nextTone(cur string) string {
	for i, t := range toneLabels {
		if t == cur {
			return toneLabels[(i+1)%len(toneLabels)]
		}
	}
	return toneLabels[0]
}

type presenterModel struct {
	common    *commonModel
	engine    *engine.Engine
	narration *deck.Narration
	scripts   *script.Client

	renderer   *glamour.TermRenderer
	rendered   string
	slideIndex int

	chip *statusChip

	question      textinput.Model
	spin          spinner.Model
	asking        bool
	answerPending bool
	lastAnswer    string

	showControls bool
	controlsSeq  int
	note         string
	noteSeq      int

	regenPending bool
}

func newPresenter(common *commonModel, eng *engine.Engine, n *deck.Narration, scripts *script.Client) presenterModel {
	q := textinput.New()
	q.Placeholder = "Ask a question about this slide…"
	q.Prompt = questionPromptStyle.Render("? ")
	q.CharLimit = 280

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	chip := newStatusChip(n.Len(), eng.Params())
	chip.voice = eng.Voice()

	return presenterModel{
		common:       common,
		engine:       eng,
		narration:    n,
		scripts:      scripts,
		chip:         chip,
		question:     q,
		spin:         sp,
		showControls: true,
	}
}

func (m presenterModel) update(msg tea.Msg) (presenterModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEventMsg:
		return m.handleEngineEvent(msg.ev)

	case spinner.TickMsg:
		if m.answerPending {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}

	case hideControlsMsg:
		if msg.seq == m.controlsSeq {
			m.showControls = false
		}

	case noteTimeoutMsg:
		if msg.seq == m.noteSeq {
			m.note = ""
		}

	case editorFinishedMsg:
		return m.handleEditorFinished(msg)

	case scriptGeneratedMsg:
		m.regenPending = false
		if msg.err != nil {
			log.Error("script regeneration failed", "slide", msg.index, "error", msg.err)
			return m.withNote("regeneration failed")
		}
		m.narration.SetOverride(msg.index, msg.script)
		m.engine.Navigate(msg.index)
		return m.withNote("script regenerated")
	}

	return m, tea.Batch(cmds...)
}

func (m presenterModel) handleKey(msg tea.KeyMsg) (presenterModel, tea.Cmd) {
	if m.asking {
		return m.handleQuestionKey(msg)
	}

	var cmds []tea.Cmd
	cmds = append(cmds, m.pokeControls())

	switch msg.String() {
	case "right", "l", "n", "pgdown":
		m.engine.Next()

	case "left", "h", "p", "pgup":
		m.engine.Prev()

	case "home", "g":
		m.engine.Navigate(0)

	case "end", "G":
		m.engine.Navigate(m.narration.Len() - 1)

	case "enter":
		m.engine.Play(true)

	case " ":
		m.engine.TogglePause()

	case "R":
		m.engine.Restart()

	case "a", "/":
		m.asking = true
		m.question.Reset()
		cmds = append(cmds, m.question.Focus())

	case "e":
		idx := m.engine.CurrentIndex()
		cmds = append(cmds, editScript(idx, m.narration.NarrationText(idx)))

	case "r":
		next, cmd := m.regenerate()
		return next, tea.Batch(append(cmds, cmd)...)

	case "v":
		next, cmd := m.cycleVoice()
		return next, tea.Batch(append(cmds, cmd)...)

	case "t":
		p := m.engine.Params()
		p.Tone = nextTone(p.Tone)
		m.engine.SetParams(p)
		if m.scripts != nil {
			m.scripts.SetTone(p.Tone)
		}

	case "[":
		m.adjustParams(-0.1, 0)
	case "]":
		m.adjustParams(0.1, 0)
	case "{":
		m.adjustParams(0, -0.1)
	case "}":
		m.adjustParams(0, 0.1)

	case "y":
		if m.lastAnswer == "" {
			return m.withNote("no answer to copy")
		}
		if err := clipboard.WriteAll(m.lastAnswer); err != nil {
			log.Error("clipboard write failed", "error", err)
			return m.withNote("copy failed")
		}
		return m.withNote("answer copied")

	case "esc":
		if m.engine.Fullscreen() {
			m.engine.ExitFullscreen()
		}

	case "f":
		if m.engine.Fullscreen() {
			m.engine.ExitFullscreen()
		} else {
			m.engine.EnterFullscreen()
		}

	case "q", "ctrl+c":
		m.engine.Exit()
		cmds = append(cmds, tea.Quit)
	}

	return m, tea.Batch(cmds...)
}

func (m presenterModel) handleQuestionKey(msg tea.KeyMsg) (presenterModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.asking = false
		m.question.Blur()
		return m, nil

	case "enter":
		q := strings.TrimSpace(m.question.Value())
		m.asking = false
		m.question.Blur()
		if err := m.engine.AskQuestion(q); err != nil {
			return m.withNote(askErrorNote(err))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.question, cmd = m.question.Update(msg)
	return m, cmd
}

func askErrorNote(err error) string {
	switch {
	case err == engine.ErrEmptyQuestion:
		return "question is empty"
	case err == engine.ErrQADisabled:
		return "Q&A is not configured"
	default:
		return "cannot ask right now"
	}
}

func (m presenterModel) handleEngineEvent(ev engine.Event) (presenterModel, tea.Cmd) {
	m.chip.apply(ev)
	var cmds []tea.Cmd

	switch ev := ev.(type) {
	case engine.SlideChangedEvent:
		m.slideIndex = ev.Index
		m.renderSlide()

	case engine.VoicesReadyEvent:
		if ev.Degraded {
			next, cmd := m.withNote("no voices found, using device default")
			return next, cmd
		}
		return m.withNote(fmt.Sprintf("%d voices ready", ev.Count))

	case engine.AnswerPendingEvent:
		m.answerPending = true
		cmds = append(cmds, m.spin.Tick)

	case engine.AnswerSpokenEvent:
		m.answerPending = false
		m.lastAnswer = ev.Answer

	case engine.AnswerFailedEvent:
		m.answerPending = false
		return m.withNote("answer unavailable, resuming")

	case engine.FullscreenChangedEvent:
		if ev.Active {
			cmds = append(cmds, tea.EnterAltScreen)
		} else {
			cmds = append(cmds, tea.ExitAltScreen)
		}

	case engine.SessionEndedEvent:
		cmds = append(cmds, tea.Quit)
	}

	return m, tea.Batch(cmds...)
}

func (m presenterModel) handleEditorFinished(msg editorFinishedMsg) (presenterModel, tea.Cmd) {
	defer os.Remove(msg.path)
	if msg.err != nil {
		log.Error("editor failed", "error", msg.err)
		return m.withNote("editor failed")
	}
	b, err := os.ReadFile(msg.path)
	if err != nil {
		return m.withNote("editor failed")
	}
	m.narration.SetOverride(msg.index, string(b))
	m.engine.Navigate(msg.index)
	return m.withNote("script updated")
}

func (m presenterModel) regenerate() (presenterModel, tea.Cmd) {
	if m.scripts == nil {
		return m.withNote("script service not configured")
	}
	if m.regenPending {
		return m.withNote("regeneration in progress")
	}
	m.regenPending = true

	idx := m.engine.CurrentIndex()
	previous := make([]string, 0, idx)
	for i := 0; i < idx; i++ {
		previous = append(previous, m.narration.NarrationText(i))
	}
	current := deck.PlainText(m.narration.Slide(idx).Body)
	scripts := m.scripts

	next, cmd := m.withNote("regenerating script…")
	return next, tea.Batch(cmd, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), regenerateTimeout)
		defer cancel()
		out, err := scripts.Generate(ctx, previous, current, idx)
		return scriptGeneratedMsg{index: idx, script: out, err: err}
	})
}

func (m presenterModel) cycleVoice() (presenterModel, tea.Cmd) {
	voices := m.engine.Catalog().Voices()
	if len(voices) == 0 {
		return m.withNote("no voices available")
	}
	cur := m.engine.Voice()
	next := 0
	for i, v := range voices {
		if v.Name == cur.Name {
			next = (i + 1) % len(voices)
			break
		}
	}
	m.engine.SetVoice(voices[next].Name)
	return m.withNote("voice: " + voices[next].Name)
}

func (m *presenterModel) adjustParams(dRate, dPitch float64) {
	p := m.engine.Params()
	p.Rate += dRate
	p.Pitch += dPitch
	m.engine.SetParams(p.Clamp())
}

// pokeControls re-shows the transient controls and restarts the hide timer.
func (m *presenterModel) pokeControls() tea.Cmd {
	m.showControls = true
	m.controlsSeq++
	seq := m.controlsSeq
	return tea.Tick(controlsTimeout, func(time.Time) tea.Msg {
		return hideControlsMsg{seq: seq}
	})
}

func (m presenterModel) withNote(note string) (presenterModel, tea.Cmd) {
	m.note = note
	m.noteSeq++
	seq := m.noteSeq
	return m, tea.Tick(noteTimeout, func(time.Time) tea.Msg {
		return noteTimeoutMsg{seq: seq}
	})
}

func (m *presenterModel) setSize(width, height int) {
	m.common.width = width
	m.common.height = height

	wrap := width - 4
	if max := int(m.common.cfg.GlamourMaxWidth); max > 0 && wrap > max {
		wrap = max
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyleName(m.common.cfg)),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		log.Error("unable to create renderer", "error", err)
		return
	}
	m.renderer = r
	m.renderSlide()
}

func (m *presenterModel) renderSlide() {
	if m.renderer == nil || m.narration.Len() == 0 {
		return
	}
	idx := m.slideIndex
	if idx >= m.narration.Len() {
		idx = m.narration.Len() - 1
	}
	out, err := m.renderer.Render(m.narration.Slide(idx).Body)
	if err != nil {
		log.Error("unable to render slide", "slide", idx, "error", err)
		m.rendered = m.narration.Slide(idx).Body
		return
	}
	m.rendered = out
}

func (m presenterModel) view() string {
	var b strings.Builder
	b.WriteString(m.titleView())
	b.WriteString("\n")
	b.WriteString(m.rendered)

	footer := m.footerView()
	pad := m.common.height - strings.Count(b.String(), "\n") - strings.Count(footer, "\n") - 2
	for i := 0; i < pad; i++ {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func (m presenterModel) titleView() string {
	idx := m.slideIndex
	if idx >= m.narration.Len() {
		idx = m.narration.Len() - 1
	}
	title := m.narration.Deck().Title
	if t := m.narration.Slide(idx).Title; t != "" && t != title {
		title += " · " + t
	}
	return titleBarStyle.Render(title)
}

func (m presenterModel) footerView() string {
	if m.asking {
		line := m.question.View()
		if m.answerPending {
			line += "  " + m.spin.View()
		}
		return line
	}
	if m.answerPending {
		return m.spin.View() + " thinking…"
	}

	if !m.showControls && m.note == "" {
		return ""
	}

	left := m.chip.Compact(m.common.width)
	if m.note != "" {
		left = noteStyle.Render(m.note)
	}
	if !m.showControls {
		return left
	}

	help := helpStyle.Render("a ask · e edit · r regen · v voice · space pause · q quit")
	gap := m.common.width - ansi.PrintableRuneWidth(left) - ansi.PrintableRuneWidth(help) - 2
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + help
}
