package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/presentpro/deckvoice/engine"
)

// statusChip is the compact playback readout in the presenter footer.
type statusChip struct {
	phase     engine.Phase
	index     int
	total     int
	voice     engine.Voice
	params    engine.Params
	degraded  bool
	startedAt time.Time
	errText   string
}

func newStatusChip(total int, params engine.Params) *statusChip {
	return &statusChip{
		phase:     engine.PhaseIdle,
		total:     total,
		params:    params,
		startedAt: time.Now(),
	}
}

func (s *statusChip) apply(ev engine.Event) {
	switch m := ev.(type) {
	case engine.PhaseChangedEvent:
		s.phase = m.Phase
		if m.Phase != engine.PhaseIdle {
			s.errText = ""
		}
	case engine.SlideChangedEvent:
		s.index = m.Index
		s.total = m.Total
	case engine.VoicesReadyEvent:
		s.degraded = m.Degraded
	case engine.VoiceChangedEvent:
		s.voice = m.Voice
	case engine.ParamsChangedEvent:
		s.params = m.Params
	case engine.UtteranceFailedEvent:
		if m.Err != nil {
			s.errText = m.Err.Error()
		}
	case engine.AnswerFailedEvent:
		if m.Err != nil {
			s.errText = m.Err.Error()
		}
	}
}

func (s *statusChip) phaseLabel() (icon, label string, color lipgloss.TerminalColor) {
	switch s.phase {
	case engine.PhaseSpeaking:
		return "▶", "speaking", green
	case engine.PhasePaused:
		return "⏸", "paused", yellow
	case engine.PhaseInterrupted:
		return "?", "answering", fuchsia
	case engine.PhaseAwaitingVoices:
		return "⟳", "loading voices", gray
	case engine.PhaseFinished:
		return "■", "finished", gray
	default:
		return "○", "idle", gray
	}
}

// Compact renders the single-line chip, truncated to width.
func (s *statusChip) Compact(width int) string {
	icon, label, color := s.phaseLabel()

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(color).Render(icon + " " + label))
	b.WriteString(slideCountStyle.Render(fmt.Sprintf(" · Slide %d/%d", s.index+1, s.total)))

	if !s.voice.IsZero() {
		b.WriteString(slideCountStyle.Render(" · " + s.voice.Name))
	} else if s.degraded {
		b.WriteString(slideCountStyle.Render(" · default voice"))
	}
	if s.params.Rate != 1.0 || s.params.Pitch != 1.0 {
		b.WriteString(slideCountStyle.Render(
			fmt.Sprintf(" · rate %.1f pitch %.1f", s.params.Rate, s.params.Pitch)))
	}
	if s.params.Tone != "" {
		b.WriteString(slideCountStyle.Render(" · " + s.params.Tone))
	}
	b.WriteString(slideCountStyle.Render(" · started " + humanize.Time(s.startedAt)))

	if s.errText != "" {
		b.WriteString(errorTextStyle.Render(" · " + s.errText))
	}

	if width > 0 {
		return truncate.StringWithTail(b.String(), uint(width), ellipsis)
	}
	return b.String()
}
