package engine

import (
	"time"

	"github.com/google/uuid"
)

// QAPhase tracks a question interrupt through its lifecycle.
type QAPhase int

const (
	// QASubmitted means the question was accepted and narration paused.
	QASubmitted QAPhase = iota
	// QAAnswering means the answer service request is in flight.
	QAAnswering
	// QASpeakingAnswer means the returned answer is being narrated.
	QASpeakingAnswer
	// QAResolved means control has returned to normal playback.
	QAResolved
)

// String returns the string representation of the Q&A phase.
func (p QAPhase) String() string {
	switch p {
	case QASubmitted:
		return "submitted"
	case QAAnswering:
		return "answering"
	case QASpeakingAnswer:
		return "speaking-answer"
	case QAResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// QAState is the live state of one question interrupt. It is created on
// interrupt and resolved or abandoned before control returns to playback;
// it is never persisted.
type QAState struct {
	Question string
	Phase    QAPhase
	Answer   string

	// gen ties in-flight answer-service results to this interrupt so that a
	// response arriving after navigation or exit is discarded as stale.
	gen uint64
}

// QARecord is one answered question kept in the session history for display.
type QARecord struct {
	Question string
	Answer   string
	AskedAt  time.Time
}

// Session is the live state of one presentation run. It is created when
// presentation mode is entered and destroyed on exit; destroying it always
// cancels the narration device, so no utterance outlives its session.
type Session struct {
	ID           uuid.UUID
	StartedAt    time.Time
	CurrentIndex int
	AutoAdvance  bool
	Params       Params
	Voice        Voice
	History      []QARecord
}

func newSession(params Params, voice Voice) *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Params:    params,
		Voice:     voice,
	}
}
