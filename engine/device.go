// Package engine implements the presentation playback and narration engine:
// it owns the lifecycle of queued speech utterances across slides, coordinates
// autoplay against an unreliable shared narration device, and integrates the
// question-interrupt flow with user-driven navigation.
package engine

// Voice identifies a narration voice offered by the device.
type Voice struct {
	Name   string // Device-level voice identity
	Locale string // BCP-47 language tag (e.g. "en-US")
}

// IsZero reports whether the voice is unset, meaning the device default
// should be used.
func (v Voice) IsZero() bool {
	return v.Name == ""
}

// Params are the playback parameters applied to the next utterance. An
// utterance already speaking is never retroactively modified.
type Params struct {
	Pitch float64 // Range [0.5, 2]
	Rate  float64 // Range [0.5, 2]
	Tone  string  // Style hint for script regeneration only
}

const (
	// ParamMin and ParamMax bound pitch and rate.
	ParamMin = 0.5
	ParamMax = 2.0
)

// DefaultParams returns neutral playback parameters.
func DefaultParams() Params {
	return Params{Pitch: 1.0, Rate: 1.0, Tone: "Formal"}
}

// Clamp returns a copy with pitch and rate forced into the valid range.
func (p Params) Clamp() Params {
	clamp := func(v float64) float64 {
		if v < ParamMin {
			return ParamMin
		}
		if v > ParamMax {
			return ParamMax
		}
		return v
	}
	p.Pitch = clamp(p.Pitch)
	p.Rate = clamp(p.Rate)
	return p
}

// Utterance is one unit of speakable text submitted to the narration device.
// The callbacks fire on the device's schedule and may arrive on any goroutine.
type Utterance struct {
	Text   string
	Voice  Voice // Zero value selects the device default
	Pitch  float64
	Rate   float64
	Volume float64

	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Device is the narration capability consumed by the engine. It models the
// platform speech synthesizer: a globally shared, asynchronous resource whose
// primitives are treated as unreliable rather than as a trusted contract.
//
// Implementations live in engine/piper (real) and engine/devicetest (fake).
type Device interface {
	// Speak enqueues an utterance. The device decides when OnStart fires;
	// exactly one of OnEnd or OnError follows for utterances that started.
	Speak(u *Utterance) error

	// Pause suspends the active utterance at its current position.
	Pause() error

	// Resume continues a paused utterance from where it stopped.
	Resume() error

	// Cancel flushes the queue and silences the device. Idempotent.
	Cancel() error

	// Voices returns the currently known voice list. Devices may report an
	// empty list at first and populate it later.
	Voices() []Voice

	// OnVoicesChanged registers a change-notification hook. It returns false
	// when the device does not support change notification, in which case
	// callers must poll Voices.
	OnVoicesChanged(fn func()) bool

	// Speaking reports whether an utterance is audible right now.
	Speaking() bool

	// Pending reports whether utterances are queued behind the active one.
	Pending() bool
}
