package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/presentpro/deckvoice/engine"
	"github.com/presentpro/deckvoice/engine/devicetest"
)

// blockingAnswers holds every Ask until released, so tests can interleave
// navigation and exit with an in-flight answer lookup.
type blockingAnswers struct {
	gate   chan struct{}
	answer string
}

func (b *blockingAnswers) Ask(ctx context.Context, _, _ string) (string, error) {
	select {
	case <-b.gate:
		return b.answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// TestQuestionInterruptRoundTrip tests the full interrupt flow: pause the
// narration, ground the question in the deck transcript, speak the answer,
// then resume the original utterance at the same slide.
func TestQuestionInterruptRoundTrip(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"Intro text", "Details text"}, dev)
	stub := newStubAnswers("It's a demo", nil)
	e.SetAnswerService(stub)
	rec := newEventRecorder(e)

	e.Play(false)
	dev.StartLast()

	if err := e.AskQuestion("What is this about?"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}
	if e.Phase() != engine.PhaseInterrupted {
		t.Fatalf("phase = %v, want interrupted", e.Phase())
	}
	if !dev.Paused() {
		t.Error("primary utterance should be paused, not cancelled")
	}

	rec.waitFor(t, func(ev engine.Event) bool {
		_, ok := ev.(engine.AnswerSpokenEvent)
		return ok
	})

	if stub.lastText != "Intro text\n\nDetails text" {
		t.Errorf("transcript = %q, want the full deck text", stub.lastText)
	}
	if stub.lastQuery != "What is this about?" {
		t.Errorf("question = %q", stub.lastQuery)
	}
	spoken := dev.Spoken()
	if len(spoken) != 2 || spoken[1] != "It's a demo" {
		t.Fatalf("spoken = %v, want the answer after the narration", spoken)
	}

	// Answer playback finishes; narration resumes where it was paused.
	dev.EndLast()
	if e.Phase() != engine.PhaseSpeaking {
		t.Errorf("phase = %v, want speaking after resolution", e.Phase())
	}
	if dev.Resumes() != 1 {
		t.Errorf("device resumes = %d, want 1 (same utterance continues)", dev.Resumes())
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", e.CurrentIndex())
	}
	if got := len(dev.Spoken()); got != 2 {
		t.Errorf("device received %d utterances, want 2 (no re-speak)", got)
	}

	hist := e.History()
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
	if hist[0].Question != "What is this about?" || hist[0].Answer != "It's a demo" {
		t.Errorf("history = %+v", hist[0])
	}
}

// TestAnswerFailureResolvesSilently tests that a failed lookup resumes
// narration as if the question had not been asked.
func TestAnswerFailureResolvesSilently(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"slide text"}, dev)
	stub := newStubAnswers("", errors.New("service unreachable"))
	e.SetAnswerService(stub)
	rec := newEventRecorder(e)

	e.Play(false)
	dev.StartLast()
	if err := e.AskQuestion("anyone there?"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}

	rec.waitFor(t, func(ev engine.Event) bool {
		_, ok := ev.(engine.AnswerFailedEvent)
		return ok
	})

	if e.Phase() != engine.PhaseSpeaking {
		t.Errorf("phase = %v, want speaking restored", e.Phase())
	}
	if dev.Resumes() != 1 {
		t.Errorf("device resumes = %d, want 1", dev.Resumes())
	}
	if got := len(dev.Spoken()); got != 1 {
		t.Errorf("device received %d utterances, want 1 (no answer spoken)", got)
	}
	if len(e.History()) != 0 {
		t.Error("failed questions must not enter history")
	}
}

// TestEmptyAnswerTreatedAsFailure tests that a blank answer resolves the
// interrupt without speaking anything.
func TestEmptyAnswerTreatedAsFailure(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"slide text"}, dev)
	e.SetAnswerService(newStubAnswers("   ", nil))
	rec := newEventRecorder(e)

	e.Play(false)
	dev.StartLast()
	if err := e.AskQuestion("hm?"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}

	rec.waitFor(t, func(ev engine.Event) bool {
		_, ok := ev.(engine.AnswerFailedEvent)
		return ok
	})
	if got := len(dev.Spoken()); got != 1 {
		t.Errorf("device received %d utterances, want 1", got)
	}
}

// TestAskWhilePausedResumesToPaused tests that the pre-interrupt sub-state
// is restored, not unconditionally resumed.
func TestAskWhilePausedResumesToPaused(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"slide text"}, dev)
	e.SetAnswerService(newStubAnswers("an answer", nil))
	rec := newEventRecorder(e)

	e.Play(false)
	dev.StartLast()
	e.Pause()
	if err := e.AskQuestion("while paused?"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}

	rec.waitFor(t, func(ev engine.Event) bool {
		_, ok := ev.(engine.AnswerSpokenEvent)
		return ok
	})
	dev.EndLast()

	if e.Phase() != engine.PhasePaused {
		t.Errorf("phase = %v, want paused restored", e.Phase())
	}
	if dev.Resumes() != 0 {
		t.Errorf("device resumes = %d, want 0 (user paused before asking)", dev.Resumes())
	}
}

// TestStaleAnswerDiscardedAfterNavigation tests that an answer arriving after
// the user navigated away cannot touch machine state.
func TestStaleAnswerDiscardedAfterNavigation(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"first", "second"}, dev)
	svc := &blockingAnswers{gate: make(chan struct{}), answer: "too late"}
	e.SetAnswerService(svc)

	e.Play(false)
	dev.StartLast()
	if err := e.AskQuestion("pending question"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}
	if !e.Interrupted() {
		t.Fatal("interrupt should be in progress")
	}

	e.Navigate(1)
	if e.Interrupted() {
		t.Fatal("navigation must abandon the interrupt")
	}
	close(svc.gate)

	// The abandoned interrupt held generation 1; its late result is stale.
	engine.InjectAnswer(e, 1, "too late")

	if e.Phase() != engine.PhaseIdle {
		t.Errorf("phase = %v, want idle (stale answer ignored)", e.Phase())
	}
	if len(e.History()) != 0 {
		t.Error("stale answers must not enter history")
	}
	for _, s := range dev.Spoken() {
		if s == "too late" {
			t.Error("stale answer must not be spoken")
		}
	}
}

// TestStaleAnswerDiscardedAfterExit tests the same staleness rule across
// session teardown.
func TestStaleAnswerDiscardedAfterExit(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"only"}, dev)
	svc := &blockingAnswers{gate: make(chan struct{}), answer: "posthumous"}
	e.SetAnswerService(svc)

	e.Play(false)
	dev.StartLast()
	if err := e.AskQuestion("pending"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}

	e.Exit()
	close(svc.gate)
	engine.InjectAnswer(e, 1, "posthumous")

	if e.SessionActive() {
		t.Error("session should remain destroyed")
	}
	if e.Phase() != engine.PhaseIdle {
		t.Errorf("phase = %v, want idle", e.Phase())
	}
}

// TestAskValidation tests the synchronous rejection paths.
func TestAskValidation(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"slide"}, dev)

	if err := e.AskQuestion("   "); !errors.Is(err, engine.ErrEmptyQuestion) {
		t.Errorf("blank question error = %v, want ErrEmptyQuestion", err)
	}
	if err := e.AskQuestion("no service wired"); !errors.Is(err, engine.ErrQADisabled) {
		t.Errorf("no-service error = %v, want ErrQADisabled", err)
	}

	cfg := engine.DefaultConfig()
	cfg.QAEnabled = false
	disabled := engine.New(cfg, scriptDeck([]string{"slide"}), devicetest.New())
	disabled.SetAnswerService(newStubAnswers("x", nil))
	if err := disabled.AskQuestion("anything"); !errors.Is(err, engine.ErrQADisabled) {
		t.Errorf("disabled error = %v, want ErrQADisabled", err)
	}
}

// TestSecondQuestionIgnoredWhileInterrupted tests that only one interrupt can
// be in flight.
func TestSecondQuestionIgnoredWhileInterrupted(t *testing.T) {
	dev := devicetest.New()
	e := newTestEngine(t, []string{"slide"}, dev)
	svc := &blockingAnswers{gate: make(chan struct{}), answer: "first answer"}
	e.SetAnswerService(svc)
	rec := newEventRecorder(e)

	e.Play(false)
	dev.StartLast()
	if err := e.AskQuestion("first"); err != nil {
		t.Fatalf("AskQuestion() failed: %v", err)
	}
	if err := e.AskQuestion("second"); err != nil {
		t.Fatalf("AskQuestion() should accept and drop silently, got %v", err)
	}

	close(svc.gate)
	rec.waitFor(t, func(ev engine.Event) bool {
		ev2, ok := ev.(engine.AnswerSpokenEvent)
		return ok && ev2.Question == "first"
	})

	if got := len(e.History()); got > 1 {
		t.Errorf("history length = %d, want at most 1", got)
	}
}
