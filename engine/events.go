package engine

// Events emitted to subscribers (the UI). Events are notifications only;
// nothing in the engine depends on a subscriber consuming them.

// Event is implemented by all engine notifications.
type Event interface {
	isEvent()
}

// PhaseChangedEvent reports a playback phase transition.
type PhaseChangedEvent struct {
	Phase Phase
	Prev  Phase
}

// SlideChangedEvent reports that the current slide index moved, whether by
// autoplay advance or user navigation.
type SlideChangedEvent struct {
	Index int
	Total int
}

// UtteranceStartedEvent reports that the device began speaking a slide.
type UtteranceStartedEvent struct {
	Index int
}

// UtteranceEndedEvent reports that a slide's narration completed.
type UtteranceEndedEvent struct {
	Index int
}

// UtteranceFailedEvent reports a device-level speech failure. Playback
// recovers on its own; this exists for passive display only.
type UtteranceFailedEvent struct {
	Index int
	Err   error
}

// VoicesReadyEvent reports that the voice catalog resolved, possibly in the
// degraded (empty) terminal state.
type VoicesReadyEvent struct {
	Count    int
	Degraded bool
}

// VoiceChangedEvent reports a new advisory voice selection.
type VoiceChangedEvent struct {
	Voice Voice
}

// ParamsChangedEvent reports updated playback parameters.
type ParamsChangedEvent struct {
	Params Params
}

// AnswerPendingEvent reports a question submitted to the answer service.
type AnswerPendingEvent struct {
	Question string
}

// AnswerSpokenEvent reports an answered question now being narrated.
type AnswerSpokenEvent struct {
	Question string
	Answer   string
}

// AnswerFailedEvent reports a soft answer-service failure; narration resumes
// as if the question had not been asked.
type AnswerFailedEvent struct {
	Question string
	Err      error
}

// FullscreenChangedEvent reports the host's authoritative fullscreen state.
type FullscreenChangedEvent struct {
	Active bool
}

// SessionEndedEvent reports that the presentation session was destroyed and
// the device cancelled.
type SessionEndedEvent struct{}

func (PhaseChangedEvent) isEvent()      {}
func (SlideChangedEvent) isEvent()      {}
func (UtteranceStartedEvent) isEvent()  {}
func (UtteranceEndedEvent) isEvent()    {}
func (UtteranceFailedEvent) isEvent()   {}
func (VoicesReadyEvent) isEvent()       {}
func (VoiceChangedEvent) isEvent()      {}
func (ParamsChangedEvent) isEvent()     {}
func (AnswerPendingEvent) isEvent()     {}
func (AnswerSpokenEvent) isEvent()      {}
func (AnswerFailedEvent) isEvent()      {}
func (FullscreenChangedEvent) isEvent() {}
func (SessionEndedEvent) isEvent()      {}
