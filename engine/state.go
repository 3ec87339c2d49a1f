package engine

// Phase is the playback state of a presentation session.
type Phase int

const (
	// PhaseIdle indicates the current slide is shown silently.
	PhaseIdle Phase = iota
	// PhaseAwaitingVoices indicates a play request is queued until the voice
	// catalog becomes ready.
	PhaseAwaitingVoices
	// PhaseSpeaking indicates the current slide's narration is audible.
	PhaseSpeaking
	// PhasePaused indicates narration is suspended at a resumable position.
	PhasePaused
	// PhaseInterrupted indicates a question-answer interrupt is in progress.
	PhaseInterrupted
	// PhaseFinished indicates autoplay ran past the last slide.
	PhaseFinished
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingVoices:
		return "awaiting-voices"
	case PhaseSpeaking:
		return "speaking"
	case PhasePaused:
		return "paused"
	case PhaseInterrupted:
		return "interrupted"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Active reports whether narration is in flight or suspended.
func (p Phase) Active() bool {
	return p == PhaseSpeaking || p == PhasePaused || p == PhaseInterrupted
}

// Machine validates phase transitions for the playback engine. Slide advances
// during autoplay re-enter PhaseSpeaking, so Speaking permits a self-loop.
type Machine struct {
	current     Phase
	transitions map[Phase][]Phase
}

// NewMachine creates a playback state machine starting in PhaseIdle.
func NewMachine() *Machine {
	return &Machine{
		current: PhaseIdle,
		transitions: map[Phase][]Phase{
			PhaseIdle:           {PhaseAwaitingVoices, PhaseSpeaking, PhaseInterrupted, PhaseFinished},
			PhaseAwaitingVoices: {PhaseSpeaking, PhaseIdle, PhaseInterrupted, PhaseFinished},
			PhaseSpeaking:       {PhaseSpeaking, PhasePaused, PhaseInterrupted, PhaseIdle, PhaseFinished},
			PhasePaused:         {PhaseSpeaking, PhaseInterrupted, PhaseIdle},
			PhaseInterrupted:    {PhaseSpeaking, PhasePaused, PhaseIdle, PhaseFinished},
			PhaseFinished:       {PhaseSpeaking, PhaseAwaitingVoices, PhaseInterrupted, PhaseIdle},
		},
	}
}

// Current returns the current phase.
func (m *Machine) Current() Phase {
	return m.current
}

// Transition attempts to move to the given phase, reporting whether the
// transition was valid. An invalid transition leaves the machine unchanged.
func (m *Machine) Transition(to Phase) bool {
	if to == m.current && to != PhaseSpeaking {
		// Only Speaking re-enters itself (slide advance).
		return false
	}
	for _, allowed := range m.transitions[m.current] {
		if allowed == to {
			m.current = to
			return true
		}
	}
	return false
}

// Force moves to the given phase unconditionally. Exit paths use it: leaving
// the session must succeed from any state.
func (m *Machine) Force(to Phase) {
	m.current = to
}
