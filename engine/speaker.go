package engine

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// primingDelay is how long the zero-volume priming utterance is given to
	// flush before the real utterance is enqueued. Some devices drop or
	// truncate the first utterance spoken after a period of inactivity.
	primingDelay = 150 * time.Millisecond

	// padMarker is prepended to real text. A leading non-breaking space stops
	// devices that swallow the first word of an utterance.
	padMarker = " "
)

// Callbacks receive per-utterance lifecycle signals. Once a newer Speak call
// supersedes the utterance, its callbacks are suppressed and never reach the
// caller again.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Handle identifies one owned utterance. It is invalidated when superseded.
type Handle struct {
	gen     uint64
	speaker *Speaker
}

// Live reports whether the handle still owns the device slot.
func (h *Handle) Live() bool {
	if h == nil {
		return false
	}
	h.speaker.mu.Lock()
	defer h.speaker.mu.Unlock()
	return h.gen == h.speaker.gen
}

// Speaker wraps the narration device's queue semantics with defensive
// sequencing: at most one owned utterance at a time, a priming workaround
// before real speech, and generation tokens that silence stale callbacks.
type Speaker struct {
	device Device

	mu           sync.Mutex
	gen          uint64 // primary utterance generation
	interjectGen uint64 // interjection generation, independent of primary

	// after schedules the post-priming enqueue; tests replace it to run
	// synchronously.
	after func(time.Duration, func())
}

// NewSpeaker creates an utterance controller for the device.
func NewSpeaker(device Device) *Speaker {
	return &Speaker{
		device: device,
		after:  func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Speak cancels any prior owned utterance and speaks text with the given
// parameters. The device queue is primed first; the real utterance follows
// after a short fixed delay, and a cancel arriving inside that window
// discards it before it reaches the device.
func (s *Speaker) Speak(text string, params Params, voice Voice, cb Callbacks) *Handle {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	// Flush whatever the device holds, then prime the queue.
	if err := s.device.Cancel(); err != nil {
		log.Debug("device cancel before speak failed", "error", err)
	}
	s.prime()

	utt := s.build(text, params, voice, gen, s.currentGen, cb)
	s.after(primingDelay, func() {
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			log.Debug("primed utterance discarded, superseded during delay")
			return
		}
		if err := s.device.Speak(utt); err != nil {
			s.fail(gen, s.currentGen, cb, err)
		}
	})

	return &Handle{gen: gen, speaker: s}
}

// Interject speaks text without cancelling the paused primary utterance. It
// is used for the Q&A answer: the slide narration stays suspended at a
// resumable position while the answer plays over it. Only a prior
// interjection is superseded.
func (s *Speaker) Interject(text string, params Params, voice Voice, cb Callbacks) *Handle {
	s.mu.Lock()
	s.interjectGen++
	gen := s.interjectGen
	s.mu.Unlock()

	utt := s.build(text, params, voice, gen, s.currentInterjectGen, cb)
	if err := s.device.Speak(utt); err != nil {
		s.fail(gen, s.currentInterjectGen, cb, err)
	}
	return &Handle{gen: gen, speaker: s}
}

// Pause suspends the active utterance at its current position.
func (s *Speaker) Pause() error {
	return s.device.Pause()
}

// Resume continues the paused utterance via the device's native resume; the
// same utterance content picks up where it stopped, not from the start.
func (s *Speaker) Resume() error {
	return s.device.Resume()
}

// CancelAll invalidates every owned handle and flushes the device. It is
// unconditional and idempotent.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	s.gen++
	s.interjectGen++
	s.mu.Unlock()
	if err := s.device.Cancel(); err != nil {
		log.Debug("device cancel failed", "error", err)
	}
}

// prime speaks a zero-volume, near-instant utterance so the device queue is
// warm before real text arrives.
func (s *Speaker) prime() {
	dummy := &Utterance{Text: ".", Volume: 0}
	if err := s.device.Speak(dummy); err != nil {
		log.Debug("priming utterance failed", "error", err)
	}
}

func (s *Speaker) currentGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Speaker) currentInterjectGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interjectGen
}

// build wraps the caller's callbacks so that a device callback for a
// superseded generation never reaches machine state.
func (s *Speaker) build(text string, params Params, voice Voice, gen uint64, current func() uint64, cb Callbacks) *Utterance {
	params = params.Clamp()
	guard := func(fn func()) func() {
		return func() {
			if gen != current() {
				return
			}
			if fn != nil {
				fn()
			}
		}
	}
	return &Utterance{
		Text:    padMarker + text,
		Voice:   voice,
		Pitch:   params.Pitch,
		Rate:    params.Rate,
		Volume:  1.0,
		OnStart: guard(cb.OnStart),
		OnEnd:   guard(cb.OnEnd),
		OnError: func(err error) {
			if gen != current() {
				return
			}
			if cb.OnError != nil {
				cb.OnError(err)
			}
		},
	}
}

func (s *Speaker) fail(gen uint64, current func() uint64, cb Callbacks, err error) {
	if gen != current() {
		return
	}
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
