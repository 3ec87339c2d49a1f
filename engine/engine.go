package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Deck is the sequence of narratable slides the engine plays through. The
// engine never owns document content; the deck resolves "the text to speak
// for slide i" (an edited override wins over the default, empty resolves to
// silence).
type Deck interface {
	// Len returns the number of slides.
	Len() int

	// NarrationText returns the resolved narration text for a slide index.
	NarrationText(i int) string
}

// AnswerService answers a user question grounded in the deck transcript.
// Implementations back onto a remote service; failures are soft.
type AnswerService interface {
	Ask(ctx context.Context, slideText, question string) (string, error)
}

// Config parameterizes a playback engine.
type Config struct {
	// QAEnabled gates the question-interrupt flow.
	QAEnabled bool

	// SettleDelay is the quiet window between a user navigation and the
	// re-speak it triggers under autoplay. Rapid navigation within the window
	// supersedes the pending re-speak, so only the final slide's utterance
	// reaches the device.
	SettleDelay time.Duration

	// VoiceName is the advisory voice selection; no match means the device
	// default is used.
	VoiceName string

	// Params are the initial playback parameters.
	Params Params

	// AnswerTimeout bounds the answer-service round trip.
	AnswerTimeout time.Duration
}

// DefaultConfig returns a sensible engine configuration.
func DefaultConfig() Config {
	return Config{
		QAEnabled:     true,
		SettleDelay:   150 * time.Millisecond,
		Params:        DefaultParams(),
		AnswerTimeout: 30 * time.Second,
	}
}

// Engine is the playback state machine. All coordination funnels through a
// single dispatch queue: commands from the UI, device callbacks, voice
// catalog readiness and answer-service results become events processed one
// at a time, so no two slide-index mutations can race.
type Engine struct {
	cfg     Config
	deck    Deck
	speaker *Speaker
	catalog *Catalog
	answers AnswerService
	host    FullscreenHost

	// Event queue. Exactly one goroutine drains it at a time; re-entrant
	// dispatches from device callbacks are appended and handled by the
	// draining goroutine, which is what keeps the engine cooperative.
	qmu     sync.Mutex
	queue   []any
	running bool

	// Machine state, mutated only while draining the queue.
	smu         sync.RWMutex
	machine     *Machine
	session     *Session
	qa          *QAState
	resumePhase Phase
	pendingPlay bool
	navGen      uint64
	qaGen       uint64
	fullscreen  bool
	outbox      []Event

	subMu sync.Mutex
	subs  []func(Event)

	after func(time.Duration, func())
}

// Internal events. Commands and device signals share the one queue.
type (
	cmdPlay      struct{ autoAdvance bool }
	cmdPause     struct{}
	cmdResume    struct{}
	cmdToggle    struct{}
	cmdNavigate  struct{ index int }
	cmdNavRel    struct{ delta int }
	cmdRestart   struct{}
	cmdAsk       struct{ question string }
	cmdExit      struct{}
	cmdSetParams struct{ params Params }
	cmdSetVoice  struct{ name string }
	evUttStart   struct{ index int }
	evUttEnd     struct{ index int }
	evUttError   struct {
		index int
		err   error
	}
	evVoicesReady struct{ voices []Voice }
	evAnswer      struct {
		gen    uint64
		answer string
		err    error
	}
	evAnswerSpoken struct {
		gen    uint64
		failed bool
	}
	evNavSettle  struct{ gen uint64 }
	evFullscreen struct{ active bool }
)

// New creates a playback engine for the given deck and narration device.
func New(cfg Config, deck Deck, device Device) *Engine {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 150 * time.Millisecond
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = 30 * time.Second
	}
	cfg.Params = cfg.Params.Clamp()

	e := &Engine{
		cfg:     cfg,
		deck:    deck,
		speaker: NewSpeaker(device),
		catalog: NewCatalog(device),
		host:    &nopHost{},
		machine: NewMachine(),
		after:   func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	e.host.OnChange(func(active bool) { e.dispatch(evFullscreen{active: active}) })
	e.catalog.OnReady(func(voices []Voice) { e.dispatch(evVoicesReady{voices: voices}) })
	return e
}

// SetAnswerService wires the external answer lookup used by AskQuestion.
func (e *Engine) SetAnswerService(s AnswerService) { e.answers = s }

// SetHost wires the fullscreen host. The host's change notifications keep the
// engine's fullscreen bit consistent with the authoritative surface state.
func (e *Engine) SetHost(h FullscreenHost) {
	e.host = h
	h.OnChange(func(active bool) { e.dispatch(evFullscreen{active: active}) })
}

// Subscribe registers an event listener. Listeners are called sequentially
// after each processed event, outside the engine's state lock.
func (e *Engine) Subscribe(fn func(Event)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs = append(e.subs, fn)
}

// Catalog exposes the voice catalog for display purposes.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Start enters presentation mode: it creates the playback session, asks the
// host for fullscreen and begins voice discovery.
func (e *Engine) Start() error {
	if e.deck == nil || e.deck.Len() == 0 {
		return ErrEmptyDeck
	}
	e.smu.Lock()
	if e.session == nil {
		voice, _ := e.catalog.Resolve(e.cfg.VoiceName)
		e.session = newSession(e.cfg.Params, voice)
	}
	e.machine.Force(PhaseIdle)
	e.smu.Unlock()

	if err := e.host.Enter(); err != nil {
		log.Debug("fullscreen enter failed", "error", err)
	}
	e.catalog.Load()
	return nil
}

// Commands. Each is a fire-and-forget enqueue onto the dispatch loop.

// Play speaks the current slide. With autoAdvance the engine keeps advancing
// and speaking on each utterance end until the deck runs out.
func (e *Engine) Play(autoAdvance bool) { e.dispatch(cmdPlay{autoAdvance: autoAdvance}) }

// Pause suspends the current utterance at a resumable position.
func (e *Engine) Pause() { e.dispatch(cmdPause{}) }

// Resume continues the paused utterance.
func (e *Engine) Resume() { e.dispatch(cmdResume{}) }

// TogglePause maps the space key: pause when speaking, resume when paused,
// play the current slide when idle.
func (e *Engine) TogglePause() { e.dispatch(cmdToggle{}) }

// Navigate jumps to an absolute slide index. Out-of-range indices are
// ignored, not errors.
func (e *Engine) Navigate(index int) { e.dispatch(cmdNavigate{index: index}) }

// Next moves one slide forward; a no-op at the last slide.
func (e *Engine) Next() { e.dispatch(cmdNavRel{delta: 1}) }

// Prev moves one slide back; a no-op at the first slide.
func (e *Engine) Prev() { e.dispatch(cmdNavRel{delta: -1}) }

// Restart returns to the first slide and starts autoplay again.
func (e *Engine) Restart() { e.dispatch(cmdRestart{}) }

// AskQuestion pauses narration, submits the deck transcript and question to
// the answer service, speaks the returned answer, then resumes narration.
func (e *Engine) AskQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}
	if !e.cfg.QAEnabled || e.answers == nil {
		return ErrQADisabled
	}
	e.dispatch(cmdAsk{question: strings.TrimSpace(question)})
	return nil
}

// Exit destroys the session. The device is cancelled unconditionally,
// whatever state playback is in: no utterance outlives its session.
func (e *Engine) Exit() { e.dispatch(cmdExit{}) }

// SetParams updates pitch/rate/tone for subsequent utterances.
func (e *Engine) SetParams(p Params) { e.dispatch(cmdSetParams{params: p}) }

// SetVoice selects a voice by name; selection is advisory.
func (e *Engine) SetVoice(name string) { e.dispatch(cmdSetVoice{name: name}) }

// EnterFullscreen asks the host for fullscreen. The engine's own bit updates
// only once the host reports the change.
func (e *Engine) EnterFullscreen() {
	if err := e.host.Enter(); err != nil {
		log.Debug("fullscreen enter failed", "error", err)
	}
}

// ExitFullscreen asks the host to leave fullscreen.
func (e *Engine) ExitFullscreen() {
	if err := e.host.Exit(); err != nil {
		log.Debug("fullscreen exit failed", "error", err)
	}
}

// Read-side accessors.

// Phase returns the current playback phase.
func (e *Engine) Phase() Phase {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.machine.Current()
}

// CurrentIndex returns the current slide index.
func (e *Engine) CurrentIndex() int {
	e.smu.RLock()
	defer e.smu.RUnlock()
	if e.session == nil {
		return 0
	}
	return e.session.CurrentIndex
}

// AutoAdvance reports whether autoplay intent is set.
func (e *Engine) AutoAdvance() bool {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.session != nil && e.session.AutoAdvance
}

// SessionActive reports whether a presentation session exists.
func (e *Engine) SessionActive() bool {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.session != nil
}

// Params returns the session's playback parameters.
func (e *Engine) Params() Params {
	e.smu.RLock()
	defer e.smu.RUnlock()
	if e.session == nil {
		return e.cfg.Params
	}
	return e.session.Params
}

// Voice returns the session's advisory voice selection.
func (e *Engine) Voice() Voice {
	e.smu.RLock()
	defer e.smu.RUnlock()
	if e.session == nil {
		return Voice{}
	}
	return e.session.Voice
}

// History returns the session's answered questions, newest last.
func (e *Engine) History() []QARecord {
	e.smu.RLock()
	defer e.smu.RUnlock()
	if e.session == nil {
		return nil
	}
	out := make([]QARecord, len(e.session.History))
	copy(out, e.session.History)
	return out
}

// Fullscreen reports the host-reconciled fullscreen state.
func (e *Engine) Fullscreen() bool {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.fullscreen
}

// Interrupted reports whether a Q&A interrupt is in progress.
func (e *Engine) Interrupted() bool {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.qa != nil
}

// dispatch enqueues an event and drains the queue unless another goroutine
// already is. Re-entrant calls (a synchronous device callback fired from
// inside a handler) enqueue and return; the draining goroutine picks the
// event up next, preserving strict ordering.
func (e *Engine) dispatch(ev any) {
	e.qmu.Lock()
	e.queue = append(e.queue, ev)
	if e.running {
		e.qmu.Unlock()
		return
	}
	e.running = true
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		e.handle(next)
		e.flush()

		e.qmu.Lock()
	}
	e.running = false
	e.qmu.Unlock()
}

func (e *Engine) handle(ev any) {
	e.smu.Lock()
	defer e.smu.Unlock()

	switch ev := ev.(type) {
	case cmdPlay:
		e.handlePlay(ev.autoAdvance)
	case cmdPause:
		e.handlePause()
	case cmdResume:
		e.handleResume()
	case cmdToggle:
		switch e.machine.Current() {
		case PhaseSpeaking:
			e.handlePause()
		case PhasePaused:
			e.handleResume()
		case PhaseIdle, PhaseFinished:
			e.handlePlay(false)
		}
	case cmdNavigate:
		e.handleNavigate(ev.index)
	case cmdNavRel:
		if e.session != nil {
			e.handleNavigate(e.session.CurrentIndex + ev.delta)
		}
	case cmdRestart:
		e.handleRestart()
	case cmdAsk:
		e.handleAsk(ev.question)
	case cmdExit:
		e.handleExit()
	case cmdSetParams:
		e.handleSetParams(ev.params)
	case cmdSetVoice:
		e.handleSetVoice(ev.name)
	case evUttStart:
		e.emit(UtteranceStartedEvent{Index: ev.index})
	case evUttEnd:
		e.emit(UtteranceEndedEvent{Index: ev.index})
		if e.machine.Current() == PhaseSpeaking {
			e.advanceOrStop()
		}
	case evUttError:
		// Device transient error: advance-or-stop, same as a clean end, so a
		// flaky device cannot stall autoplay. Never surfaced as a failure.
		log.Debug("utterance failed", "slide", ev.index, "error", ev.err)
		e.emit(UtteranceFailedEvent{Index: ev.index, Err: ev.err})
		if e.machine.Current() == PhaseSpeaking {
			e.advanceOrStop()
		}
	case evVoicesReady:
		e.handleVoicesReady(ev.voices)
	case evAnswer:
		e.handleAnswer(ev)
	case evAnswerSpoken:
		e.handleAnswerSpoken(ev)
	case evNavSettle:
		// A pause inside the settle window wins over the pending re-speak.
		if ev.gen == e.navGen && e.session != nil && e.session.AutoAdvance &&
			e.machine.Current() == PhaseSpeaking {
			e.speakCurrent()
		}
	case evFullscreen:
		e.fullscreen = ev.active
		e.emit(FullscreenChangedEvent{Active: ev.active})
	}
}

func (e *Engine) handlePlay(autoAdvance bool) {
	if e.session == nil {
		return
	}
	phase := e.machine.Current()
	if phase == PhaseSpeaking {
		// Repeated play while speaking must not enqueue duplicates.
		if autoAdvance {
			e.session.AutoAdvance = true
		}
		return
	}
	if phase == PhasePaused {
		e.handleResume()
		return
	}
	if autoAdvance {
		e.session.AutoAdvance = true
	}
	if !e.catalog.Ready() {
		// Queue the request rather than dropping it; voices arriving resolve
		// it against whatever index is current at that moment.
		e.pendingPlay = true
		e.transition(PhaseAwaitingVoices)
		return
	}
	e.speakCurrent()
}

func (e *Engine) handlePause() {
	if e.machine.Current() != PhaseSpeaking {
		return
	}
	if err := e.speaker.Pause(); err != nil {
		log.Debug("pause failed", "error", err)
	}
	e.transition(PhasePaused)
}

func (e *Engine) handleResume() {
	if e.machine.Current() != PhasePaused {
		return
	}
	if err := e.speaker.Resume(); err != nil {
		log.Debug("resume failed", "error", err)
	}
	e.transition(PhaseSpeaking)
}

func (e *Engine) handleNavigate(index int) {
	if e.session == nil || index < 0 || index >= e.deck.Len() {
		return
	}
	e.speaker.CancelAll()
	e.abandonQA()
	e.session.CurrentIndex = index
	e.emit(SlideChangedEvent{Index: index, Total: e.deck.Len()})

	if e.machine.Current() == PhaseAwaitingVoices {
		// The queued request stays queued; when voices load it acts on the
		// index current at that moment, not the one captured earlier.
		return
	}
	if e.session.AutoAdvance {
		e.transition(PhaseSpeaking)
		e.scheduleSettle()
		return
	}
	e.transition(PhaseIdle)
}

func (e *Engine) handleRestart() {
	if e.session == nil {
		return
	}
	e.speaker.CancelAll()
	e.abandonQA()
	e.session.CurrentIndex = 0
	e.session.AutoAdvance = true
	e.emit(SlideChangedEvent{Index: 0, Total: e.deck.Len()})
	if !e.catalog.Ready() {
		e.pendingPlay = true
		e.transition(PhaseAwaitingVoices)
		return
	}
	e.transition(PhaseSpeaking)
	e.scheduleSettle()
}

func (e *Engine) handleExit() {
	e.speaker.CancelAll()
	e.abandonQA()
	e.pendingPlay = false
	e.navGen++
	e.session = nil
	e.machine.Force(PhaseIdle)
	if err := e.host.Exit(); err != nil {
		log.Debug("fullscreen exit failed", "error", err)
	}
	e.emit(SessionEndedEvent{})
}

func (e *Engine) handleSetParams(p Params) {
	p = p.Clamp()
	if e.session != nil {
		e.session.Params = p
	}
	e.cfg.Params = p
	e.emit(ParamsChangedEvent{Params: p})
}

func (e *Engine) handleSetVoice(name string) {
	voice, ok := e.catalog.Resolve(name)
	if !ok {
		voice = Voice{}
	}
	if e.session != nil {
		e.session.Voice = voice
	}
	e.cfg.VoiceName = name
	e.emit(VoiceChangedEvent{Voice: voice})
}

func (e *Engine) handleVoicesReady(voices []Voice) {
	e.emit(VoicesReadyEvent{Count: len(voices), Degraded: len(voices) == 0})
	if e.session != nil && e.session.Voice.IsZero() {
		if v, ok := e.catalog.Resolve(e.cfg.VoiceName); ok {
			e.session.Voice = v
		}
	}
	if e.pendingPlay {
		e.pendingPlay = false
		if e.session != nil {
			e.speakCurrent()
		}
	}
}

// speakCurrent resolves the current slide's text and speaks it. Empty text
// goes straight to the next-slide logic without touching the device.
func (e *Engine) speakCurrent() {
	idx := e.session.CurrentIndex
	text := e.deck.NarrationText(idx)
	if strings.TrimSpace(text) == "" {
		log.Debug("skipping empty slide", "slide", idx)
		e.advanceOrStop()
		return
	}
	e.transition(PhaseSpeaking)
	e.speaker.Speak(text, e.session.Params, e.session.Voice, Callbacks{
		OnStart: func() { e.dispatch(evUttStart{index: idx}) },
		OnEnd:   func() { e.dispatch(evUttEnd{index: idx}) },
		OnError: func(err error) { e.dispatch(evUttError{index: idx, err: err}) },
	})
}

// advanceOrStop applies the autoplay policy after an utterance ends, fails,
// or a slide resolves to silence: with intent and a next slide, advance and
// re-enter speaking; otherwise clear intent and settle in Finished or Idle.
func (e *Engine) advanceOrStop() {
	if e.session.AutoAdvance && e.session.CurrentIndex+1 < e.deck.Len() {
		e.session.CurrentIndex++
		e.emit(SlideChangedEvent{Index: e.session.CurrentIndex, Total: e.deck.Len()})
		e.speakCurrent()
		return
	}
	if e.session.AutoAdvance {
		e.session.AutoAdvance = false
		e.transition(PhaseFinished)
		return
	}
	e.transition(PhaseIdle)
}

func (e *Engine) handleAsk(question string) {
	if e.session == nil || e.qa != nil {
		return
	}
	e.resumePhase = e.machine.Current()
	if e.resumePhase == PhaseSpeaking {
		if err := e.speaker.Pause(); err != nil {
			log.Debug("pause for question failed", "error", err)
		}
	}
	e.qaGen++
	e.qa = &QAState{Question: question, Phase: QASubmitted, gen: e.qaGen}
	e.transition(PhaseInterrupted)
	e.emit(AnswerPendingEvent{Question: question})

	transcript := e.transcript()
	gen := e.qaGen
	e.qa.Phase = QAAnswering
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.AnswerTimeout)
		defer cancel()
		answer, err := e.answers.Ask(ctx, transcript, question)
		e.dispatch(evAnswer{gen: gen, answer: answer, err: err})
	}()
}

func (e *Engine) handleAnswer(ev evAnswer) {
	if e.qa == nil || e.qa.gen != ev.gen || e.session == nil {
		// Session exited or the user navigated away: the result is stale and
		// must not affect machine state.
		return
	}
	answer := strings.TrimSpace(ev.answer)
	if ev.err != nil || answer == "" {
		// Soft failure: resume as if the question had not been asked.
		if ev.err != nil {
			log.Debug("answer service failed", "error", ev.err)
		}
		e.emit(AnswerFailedEvent{Question: e.qa.Question, Err: ev.err})
		e.resolveQA()
		return
	}
	e.qa.Phase = QASpeakingAnswer
	e.qa.Answer = answer
	e.emit(AnswerSpokenEvent{Question: e.qa.Question, Answer: answer})
	gen := e.qa.gen
	e.speaker.Interject(answer, e.session.Params, e.session.Voice, Callbacks{
		OnEnd:   func() { e.dispatch(evAnswerSpoken{gen: gen}) },
		OnError: func(error) { e.dispatch(evAnswerSpoken{gen: gen, failed: true}) },
	})
}

func (e *Engine) handleAnswerSpoken(ev evAnswerSpoken) {
	if e.qa == nil || e.qa.gen != ev.gen || e.session == nil {
		return
	}
	e.resolveQA()
}

// resolveQA records the exchange and restores the pre-interrupt sub-state.
func (e *Engine) resolveQA() {
	qa := e.qa
	qa.Phase = QAResolved
	if qa.Answer != "" {
		e.session.History = append(e.session.History, QARecord{
			Question: qa.Question,
			Answer:   qa.Answer,
			AskedAt:  time.Now(),
		})
	}
	e.qa = nil

	switch e.resumePhase {
	case PhaseSpeaking:
		if err := e.speaker.Resume(); err != nil {
			log.Debug("resume after question failed", "error", err)
		}
		e.transition(PhaseSpeaking)
	case PhasePaused:
		e.transition(PhasePaused)
	default:
		e.transition(e.resumePhase)
	}
}

// abandonQA drops an in-flight interrupt; any pending answer-service result
// becomes stale via the generation check.
func (e *Engine) abandonQA() {
	if e.qa == nil {
		return
	}
	e.qa = nil
	e.qaGen++
}

func (e *Engine) scheduleSettle() {
	e.navGen++
	gen := e.navGen
	e.after(e.cfg.SettleDelay, func() { e.dispatch(evNavSettle{gen: gen}) })
}

// transcript concatenates the resolved narration text of all slides as
// grounding context for the answer service.
func (e *Engine) transcript() string {
	var b strings.Builder
	for i := 0; i < e.deck.Len(); i++ {
		text := strings.TrimSpace(e.deck.NarrationText(i))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

func (e *Engine) transition(to Phase) {
	prev := e.machine.Current()
	if !e.machine.Transition(to) {
		if prev == to {
			return
		}
		log.Debug("forcing playback transition", "from", prev, "to", to)
		e.machine.Force(to)
	}
	e.emit(PhaseChangedEvent{Phase: to, Prev: prev})
}

// emit queues an event for subscribers; flush delivers after the handler
// releases the state lock.
func (e *Engine) emit(ev Event) {
	e.outbox = append(e.outbox, ev)
}

func (e *Engine) flush() {
	e.smu.Lock()
	pending := e.outbox
	e.outbox = nil
	e.smu.Unlock()
	if len(pending) == 0 {
		return
	}
	e.subMu.Lock()
	subs := make([]func(Event), len(e.subs))
	copy(subs, e.subs)
	e.subMu.Unlock()
	for _, ev := range pending {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
