package engine

import "testing"

// TestPhaseString tests the String() method for Phase.
func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseIdle, "idle"},
		{PhaseAwaitingVoices, "awaiting-voices"},
		{PhaseSpeaking, "speaking"},
		{PhasePaused, "paused"},
		{PhaseInterrupted, "interrupted"},
		{PhaseFinished, "finished"},
		{Phase(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.expected {
				t.Errorf("Phase.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestPhaseActive tests the Active() method.
func TestPhaseActive(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected bool
	}{
		{PhaseIdle, false},
		{PhaseAwaitingVoices, false},
		{PhaseSpeaking, true},
		{PhasePaused, true},
		{PhaseInterrupted, true},
		{PhaseFinished, false},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			if got := tt.phase.Active(); got != tt.expected {
				t.Errorf("Phase.Active() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestMachineTransitions tests valid and invalid transitions.
func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  Phase
		to    Phase
		valid bool
	}{
		{"play with voices", PhaseIdle, PhaseSpeaking, true},
		{"play without voices", PhaseIdle, PhaseAwaitingVoices, true},
		{"voices arrive", PhaseAwaitingVoices, PhaseSpeaking, true},
		{"pause while speaking", PhaseSpeaking, PhasePaused, true},
		{"resume", PhasePaused, PhaseSpeaking, true},
		{"autoplay advance re-enters speaking", PhaseSpeaking, PhaseSpeaking, true},
		{"autoplay complete", PhaseSpeaking, PhaseFinished, true},
		{"question while speaking", PhaseSpeaking, PhaseInterrupted, true},
		{"question while paused", PhasePaused, PhaseInterrupted, true},
		{"answer resolved to speaking", PhaseInterrupted, PhaseSpeaking, true},
		{"answer resolved to paused", PhaseInterrupted, PhasePaused, true},
		{"restart after finish", PhaseFinished, PhaseSpeaking, true},
		{"pause while idle", PhaseIdle, PhasePaused, false},
		{"pause self-loop", PhasePaused, PhasePaused, false},
		{"finished to paused", PhaseFinished, PhasePaused, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			m.Force(tt.from)
			if got := m.Transition(tt.to); got != tt.valid {
				t.Errorf("Transition(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
			want := tt.from
			if tt.valid {
				want = tt.to
			}
			if m.Current() != want {
				t.Errorf("Current() = %v, want %v", m.Current(), want)
			}
		})
	}
}

// TestMachineForce tests that Force ignores the transition table.
func TestMachineForce(t *testing.T) {
	m := NewMachine()
	m.Force(PhaseSpeaking)
	m.Force(PhaseIdle)
	if m.Current() != PhaseIdle {
		t.Errorf("Current() = %v, want %v", m.Current(), PhaseIdle)
	}
}
