package engine

import "errors"

// Common errors for the narration engine.
var (
	// Session errors
	ErrNoSession    = errors.New("no active presentation session")
	ErrSessionEnded = errors.New("presentation session has ended")
	ErrNoDeck       = errors.New("no deck loaded")
	ErrEmptyDeck    = errors.New("deck has no slides")
	ErrInvalidSlide = errors.New("slide index out of range")

	// Utterance errors
	ErrUtteranceFailed  = errors.New("utterance failed")
	ErrHandleSuperseded = errors.New("utterance handle superseded")
	ErrNothingToResume  = errors.New("no paused utterance to resume")

	// Q&A errors
	ErrEmptyQuestion = errors.New("question is empty")
	ErrQADisabled    = errors.New("question answering is disabled")
	ErrNoAnswer      = errors.New("answer service returned no answer")

	// State errors
	ErrInvalidTransition = errors.New("invalid playback state transition")
)
