package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presentpro/deckvoice/engine"
	"github.com/presentpro/deckvoice/engine/devicetest"
)

func syncAfter(_ time.Duration, fn func()) { fn() }

// heldTimers collects scheduled callbacks so tests control when a timer
// window elapses.
type heldTimers struct {
	fns []func()
}

func (p *heldTimers) after(_ time.Duration, fn func()) {
	p.fns = append(p.fns, fn)
}

func (p *heldTimers) fire() {
	fns := p.fns
	p.fns = nil
	for _, fn := range fns {
		fn()
	}
}

// scriptDeck is a deck of pre-resolved narration texts.
type scriptDeck []string

func (d scriptDeck) Len() int                   { return len(d) }
func (d scriptDeck) NarrationText(i int) string { return d[i] }

// stubAnswers is an answer service with a canned response.
type stubAnswers struct {
	answer    string
	err       error
	lastText  string
	lastQuery string
	called    chan struct{}
}

func newStubAnswers(answer string, err error) *stubAnswers {
	return &stubAnswers{answer: answer, err: err, called: make(chan struct{}, 1)}
}

func (s *stubAnswers) Ask(_ context.Context, slideText, question string) (string, error) {
	s.lastText = slideText
	s.lastQuery = question
	select {
	case s.called <- struct{}{}:
	default:
	}
	return s.answer, s.err
}

// eventRecorder collects engine events for assertions.
type eventRecorder struct {
	events chan engine.Event
}

func newEventRecorder(e *engine.Engine) *eventRecorder {
	r := &eventRecorder{events: make(chan engine.Event, 256)}
	e.Subscribe(func(ev engine.Event) { r.events <- ev })
	return r
}

func (r *eventRecorder) waitFor(t *testing.T, match func(engine.Event) bool) engine.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

// newTestEngine builds an engine with synchronous timers and a ready voice
// catalog by default.
func newTestEngine(t *testing.T, texts []string, dev *devicetest.FakeDevice) *engine.Engine {
	t.Helper()
	if dev.Voices() == nil {
		dev.SetVoices([]engine.Voice{{Name: "Test Voice", Locale: "en-US"}})
	}
	e := engine.New(engine.DefaultConfig(), scriptDeck(texts), dev)
	engine.SetAfterHooks(e, syncAfter)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return e
}

// TestExitCancelsFromAnyState tests that exitSession leaves the device with
// no active utterance regardless of machine state.
func TestExitCancelsFromAnyState(t *testing.T) {
	setups := []struct {
		name  string
		setup func(e *engine.Engine, dev *devicetest.FakeDevice)
	}{
		{"idle", func(*engine.Engine, *devicetest.FakeDevice) {}},
		{"speaking", func(e *engine.Engine, dev *devicetest.FakeDevice) {
			e.Play(false)
			dev.StartLast()
		}},
		{"paused", func(e *engine.Engine, dev *devicetest.FakeDevice) {
			e.Play(false)
			dev.StartLast()
			e.Pause()
		}},
		{"autoplay", func(e *engine.Engine, dev *devicetest.FakeDevice) {
			e.Play(true)
			dev.StartLast()
		}},
	}

	for _, tt := range setups {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.New()
			e := newTestEngine(t, []string{"one", "two"}, dev)
			tt.setup(e, dev)

			cancels := dev.Cancels()
			e.Exit()

			if dev.Cancels() <= cancels {
				t.Error("Exit must cancel the device unconditionally")
			}
			if dev.Speaking() {
				t.Error("device still has an active utterance after Exit")
			}
			if e.SessionActive() {
				t.Error("session should be destroyed")
			}
			if e.Phase() != engine.PhaseIdle {
				t.Errorf("phase = %v, want idle", e.Phase())
			}

			// Exit is idempotent.
			e.Exit()
		})
	}
}

// TestRapidNavigationSupersedes tests that navigate(i) immediately followed
// by navigate(j) results in only slide j's utterance reaching the device.
func TestRapidNavigationSupersedes(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"alpha", "beta", "gamma"}, dev)

	// Hold settle timers so both navigations land inside one quiet window.
	timers := &heldTimers{}
	engine.SetSettleHook(e, timers.after)

	e.Play(true)
	dev.StartLast()
	dev.EndLast() // advance to slide 1, speaking "beta"

	e.Navigate(2)
	e.Navigate(0)
	timers.fire()

	spoken := dev.Spoken()
	last := spoken[len(spoken)-1]
	if last != "alpha" {
		t.Errorf("last spoken = %q, want %q (final navigation target)", last, "alpha")
	}
	for _, s := range spoken {
		if s == "gamma" {
			t.Error("superseded navigation target reached the device")
		}
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", e.CurrentIndex())
	}
}

// TestPauseDuringNavigationSettleWindow tests that a pause issued between a
// navigation and its settle re-speak wins: the engine stays paused and the
// new slide is not spoken over the user's pause.
func TestPauseDuringNavigationSettleWindow(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"one", "two", "three"}, dev)

	timers := &heldTimers{}
	engine.SetSettleHook(e, timers.after)

	e.Play(true)
	dev.StartLast()

	e.Navigate(1)
	e.TogglePause()
	timers.fire()

	if e.Phase() != engine.PhasePaused {
		t.Fatalf("phase = %v, want paused (settle must not override the pause)", e.Phase())
	}
	if got := len(dev.Spoken()); got != 1 {
		t.Errorf("device received %d utterances, want 1 (no re-speak while paused)", got)
	}
}

// TestPauseResumeSameUtterance tests device-native resume: no re-speak, the
// paused utterance continues.
func TestPauseResumeSameUtterance(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"only slide"}, dev)

	e.Play(false)
	dev.StartLast()
	spokenBefore := len(dev.Spoken())

	e.Pause()
	if e.Phase() != engine.PhasePaused {
		t.Fatalf("phase = %v, want paused", e.Phase())
	}
	if !dev.Paused() {
		t.Error("device should be paused")
	}

	e.Resume()
	if e.Phase() != engine.PhaseSpeaking {
		t.Fatalf("phase = %v, want speaking", e.Phase())
	}
	if dev.Resumes() != 1 {
		t.Errorf("device resumes = %d, want 1", dev.Resumes())
	}
	if len(dev.Spoken()) != spokenBefore {
		t.Error("resume must not re-synthesize the utterance")
	}
}

// TestRepeatedPlayIdempotent tests that play while already speaking does not
// enqueue duplicate utterances.
func TestRepeatedPlayIdempotent(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"once"}, dev)

	e.Play(false)
	dev.StartLast()
	e.Play(false)
	e.Play(false)

	if got := len(dev.Spoken()); got != 1 {
		t.Errorf("device received %d utterances, want 1", got)
	}
}

// TestAutoplayCompleteness tests that autoplay over N non-empty slides
// produces exactly N ordered starts and terminates in Finished with no
// further device activity.
func TestAutoplayCompleteness(t *testing.T) {
	texts := []string{"one", "two", "three", "four"}
	dev := devicetest.New()
	dev.AutoComplete = true
	e := newTestEngine(t, texts, dev)
	rec := newEventRecorder(e)

	e.Play(true)

	spoken := dev.Spoken()
	if len(spoken) != len(texts) {
		t.Fatalf("device received %d utterances, want %d", len(spoken), len(texts))
	}
	for i, s := range spoken {
		if s != texts[i] {
			t.Errorf("utterance %d = %q, want %q", i, s, texts[i])
		}
	}
	if e.Phase() != engine.PhaseFinished {
		t.Errorf("phase = %v, want finished", e.Phase())
	}
	if e.AutoAdvance() {
		t.Error("autoplay intent should be cleared at the end")
	}

	// Ordered start events for increasing indices.
	for want := 0; want < len(texts); want++ {
		ev := rec.waitFor(t, func(ev engine.Event) bool {
			_, ok := ev.(engine.UtteranceStartedEvent)
			return ok
		})
		if got := ev.(engine.UtteranceStartedEvent).Index; got != want {
			t.Errorf("start event for index %d, want %d", got, want)
		}
	}
}

// TestEmptySlideSkipped tests that autoplay never calls speak for an empty
// slide and reaches the next one without any device callback for it.
func TestEmptySlideSkipped(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"", "Hello"}, dev)

	e.Play(true)

	spoken := dev.Spoken()
	if len(spoken) != 1 || spoken[0] != "Hello" {
		t.Fatalf("spoken = %v, want only [Hello]", spoken)
	}
	if e.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", e.CurrentIndex())
	}
	if e.Phase() != engine.PhaseSpeaking {
		t.Errorf("phase = %v, want speaking", e.Phase())
	}
}

// TestTrailingEmptySlidesFinish tests a deck ending in empty slides.
func TestTrailingEmptySlidesFinish(t *testing.T) {
	dev := devicetest.New()
	dev.AutoComplete = true
	e := newTestEngine(t, []string{"text", ""}, dev)

	e.Play(true)

	if got := dev.Spoken(); len(got) != 1 {
		t.Fatalf("spoken = %v, want one utterance", got)
	}
	if e.Phase() != engine.PhaseFinished {
		t.Errorf("phase = %v, want finished", e.Phase())
	}
}

// TestAwaitingVoicesQueuesPlay tests that play before the catalog resolves
// queues the request and resolves automatically when voices arrive.
func TestAwaitingVoicesQueuesPlay(t *testing.T) {
	dev := devicetest.New() // no voices yet, hook supported
	e := engine.New(engine.DefaultConfig(), scriptDeck([]string{"queued"}), dev)
	engine.SetAfterHooks(e, syncAfter)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	e.Play(false)
	if e.Phase() != engine.PhaseAwaitingVoices {
		t.Fatalf("phase = %v, want awaiting-voices", e.Phase())
	}
	if len(dev.Spoken()) != 0 {
		t.Fatal("nothing should be spoken before voices arrive")
	}

	dev.SetVoices([]engine.Voice{{Name: "Late Voice", Locale: "en-US"}})

	if e.Phase() != engine.PhaseSpeaking {
		t.Errorf("phase = %v, want speaking after voices arrive", e.Phase())
	}
	if got := dev.Spoken(); len(got) != 1 || got[0] != "queued" {
		t.Errorf("spoken = %v, want [queued]", got)
	}
}

// TestAwaitingVoicesActsOnCurrentIndex tests the tie-break policy: a
// navigation during AwaitingVoices supersedes the index captured by the
// queued request.
func TestAwaitingVoicesActsOnCurrentIndex(t *testing.T) {
	dev := devicetest.New()
	e := engine.New(engine.DefaultConfig(), scriptDeck([]string{"zero", "one", "two"}), dev)
	engine.SetAfterHooks(e, syncAfter)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	e.Play(true)  // queued for index 0
	e.Navigate(2) // user moves on before voices load
	dev.SetVoices([]engine.Voice{{Name: "Late Voice", Locale: "en-US"}})

	if got := dev.Spoken(); len(got) != 1 || got[0] != "two" {
		t.Errorf("spoken = %v, want [two] (the current index at voice readiness)", got)
	}
}

// TestDeviceErrorAdvancesAutoplay tests the deterministic error policy:
// a speech error advances exactly like a clean end, never stalling autoplay.
func TestDeviceErrorAdvancesAutoplay(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"bad", "good"}, dev)

	e.Play(true)
	dev.StartLast()
	dev.FailLast(errors.New("synthesis glitch"))

	if got := dev.Spoken(); len(got) != 2 || got[1] != "good" {
		t.Fatalf("spoken = %v, want [bad good]", got)
	}
	if e.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", e.CurrentIndex())
	}

	dev.StartLast()
	dev.FailLast(errors.New("glitch at the end"))
	if e.Phase() != engine.PhaseFinished {
		t.Errorf("phase = %v, want finished after error on last slide", e.Phase())
	}
}

// TestNavigateBoundsAreNoOps tests invalid navigation.
func TestNavigateBoundsAreNoOps(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"a", "b"}, dev)

	e.Prev()
	if e.CurrentIndex() != 0 {
		t.Error("Prev at first slide should be a no-op")
	}
	e.Navigate(5)
	if e.CurrentIndex() != 0 {
		t.Error("Navigate past the deck should be a no-op")
	}
	e.Next()
	e.Next()
	if e.CurrentIndex() != 1 {
		t.Error("Next at last slide should be a no-op")
	}
}

// TestNavigateWithoutAutoplayShowsSilently tests that navigation without
// autoplay cancels speech and lands in Idle.
func TestNavigateWithoutAutoplayShowsSilently(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"a", "b"}, dev)

	e.Play(false)
	dev.StartLast()
	e.Next()

	if e.Phase() != engine.PhaseIdle {
		t.Errorf("phase = %v, want idle", e.Phase())
	}
	if got := len(dev.Spoken()); got != 1 {
		t.Errorf("device received %d utterances, want 1 (no re-speak)", got)
	}
}

// TestToggleFromIdlePlaysCurrentSlide tests the space-key mapping.
func TestToggleFromIdlePlaysCurrentSlide(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"solo"}, dev)

	e.TogglePause()
	if got := dev.Spoken(); len(got) != 1 || got[0] != "solo" {
		t.Errorf("spoken = %v, want [solo]", got)
	}
	dev.StartLast()

	e.TogglePause()
	if e.Phase() != engine.PhasePaused {
		t.Errorf("phase = %v, want paused", e.Phase())
	}
	e.TogglePause()
	if e.Phase() != engine.PhaseSpeaking {
		t.Errorf("phase = %v, want speaking", e.Phase())
	}
}

// TestRestart tests the restart supplement: back to slide zero, autoplay on.
func TestRestart(t *testing.T) {
	dev := devicetest.New()
	dev.AutoComplete = true
	e := newTestEngine(t, []string{"one", "two"}, dev)

	e.Play(true)
	if e.Phase() != engine.PhaseFinished {
		t.Fatalf("phase = %v, want finished", e.Phase())
	}

	e.Restart()
	if e.CurrentIndex() != 1 {
		// Autoplay ran through again from slide zero.
		t.Errorf("CurrentIndex() = %d, want 1 after full re-run", e.CurrentIndex())
	}
	if got := len(dev.Spoken()); got != 4 {
		t.Errorf("device received %d utterances, want 4", got)
	}
}

// TestSingleSlideEndGoesIdle tests that without autoplay intent the engine
// returns to Idle, not Finished.
func TestSingleSlideEndGoesIdle(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"a", "b"}, dev)

	e.Play(false)
	dev.StartLast()
	dev.EndLast()

	if e.Phase() != engine.PhaseIdle {
		t.Errorf("phase = %v, want idle", e.Phase())
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0 (no advance without intent)", e.CurrentIndex())
	}
}

// TestSetParamsClampsAndApplies tests live parameter updates.
func TestSetParamsClampsAndApplies(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"a"}, dev)

	e.SetParams(engine.Params{Pitch: 3.0, Rate: 1.5, Tone: "Casual"})
	p := e.Params()
	if p.Pitch != engine.ParamMax {
		t.Errorf("pitch = %v, want clamped to %v", p.Pitch, engine.ParamMax)
	}
	if p.Rate != 1.5 || p.Tone != "Casual" {
		t.Errorf("params = %+v", p)
	}

	e.Play(false)
	last := dev.Last()
	if last.Utterance.Pitch != engine.ParamMax || last.Utterance.Rate != 1.5 {
		t.Errorf("utterance params = %v/%v, want %v/1.5",
			last.Utterance.Pitch, last.Utterance.Rate, engine.ParamMax)
	}
}

// TestVoiceSelectionFallsBackToLocale tests that a BCP-47 selection with no
// matching voice name picks a voice by locale instead.
func TestVoiceSelectionFallsBackToLocale(t *testing.T) {
	dev := devicetest.New()
	dev.SetVoices([]engine.Voice{
		{Name: "Amy", Locale: "en-US"},
		{Name: "Brian", Locale: "en-GB"},
	})
	e := newTestEngine(t, []string{"a"}, dev)

	e.SetVoice("en-GB")
	if got := e.Voice().Name; got != "Brian" {
		t.Errorf("voice = %q, want Brian (matched by locale)", got)
	}
}

// TestFullscreenReconciliation tests that the engine mirrors host-driven
// fullscreen changes it did not request.
func TestFullscreenReconciliation(t *testing.T) {
	dev := devicetest.New()
	host := &recordingHost{}
	e := engine.New(engine.DefaultConfig(), scriptDeck([]string{"a"}), dev)
	engine.SetAfterHooks(e, syncAfter)
	e.SetHost(host)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if !e.Fullscreen() {
		t.Error("engine should reflect fullscreen after Start")
	}

	// Host exits on its own (system key); engine must reconcile.
	host.forceExit()
	if e.Fullscreen() {
		t.Error("engine must accept the host's authoritative exit")
	}

	e.Exit()
	if host.exits != 1 {
		t.Errorf("host exits = %d, want 1", host.exits)
	}
}

// recordingHost is a fullscreen host whose state can diverge from the
// engine's requests.
type recordingHost struct {
	fn      func(bool)
	entries int
	exits   int
}

func (h *recordingHost) Enter() error {
	h.entries++
	if h.fn != nil {
		h.fn(true)
	}
	return nil
}

func (h *recordingHost) Exit() error {
	h.exits++
	if h.fn != nil {
		h.fn(false)
	}
	return nil
}

func (h *recordingHost) OnChange(fn func(active bool)) { h.fn = fn }

func (h *recordingHost) forceExit() {
	if h.fn != nil {
		h.fn(false)
	}
}
