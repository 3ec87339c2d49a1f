// Package devicetest provides a scripted fake narration device. Tests drive
// utterance lifecycle callbacks deterministically, without real timers or
// audio, either by firing start/end/error by hand or by letting the device
// auto-complete every utterance synchronously.
package devicetest

import (
	"strings"
	"sync"

	"github.com/presentpro/deckvoice/engine"
)

// Recorded is one Speak call observed by the fake device.
type Recorded struct {
	Utterance *engine.Utterance
	Started   bool
	Ended     bool
	Failed    bool
}

// Priming reports whether this was a zero-volume priming utterance.
func (r *Recorded) Priming() bool {
	return r.Utterance.Volume == 0
}

// Text returns the utterance text without the leading pad marker.
func (r *Recorded) Text() string {
	return strings.TrimPrefix(r.Utterance.Text, " ")
}

// FakeDevice implements engine.Device for tests.
type FakeDevice struct {
	mu sync.Mutex

	// AutoComplete makes every real utterance fire OnStart and OnEnd
	// synchronously from Speak, which drives autoplay to completion in a
	// single call stack.
	AutoComplete bool

	// SupportsChangeHook controls whether OnVoicesChanged is accepted;
	// when false the catalog must fall back to polling.
	SupportsChangeHook bool

	// SpeakErr, when set, makes Speak fail.
	SpeakErr error

	recorded []*Recorded
	active   *Recorded
	paused   bool
	cancels  int
	resumes  int
	voices   []engine.Voice
	hook     func()
}

// New creates a fake device that supports the voice change hook.
func New() *FakeDevice {
	return &FakeDevice{SupportsChangeHook: true}
}

// Speak records the utterance, auto-completing it when configured.
func (d *FakeDevice) Speak(u *engine.Utterance) error {
	d.mu.Lock()
	if d.SpeakErr != nil {
		err := d.SpeakErr
		d.mu.Unlock()
		return err
	}
	rec := &Recorded{Utterance: u}
	d.recorded = append(d.recorded, rec)
	auto := d.AutoComplete && !rec.Priming()
	if !auto {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	d.fireStart(rec)
	d.fireEnd(rec)
	return nil
}

// Pause suspends the active utterance.
func (d *FakeDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
	return nil
}

// Resume continues the paused utterance.
func (d *FakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
	d.resumes++
	return nil
}

// Cancel flushes everything. Idempotent.
func (d *FakeDevice) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels++
	d.active = nil
	d.paused = false
	return nil
}

// Voices returns the configured voice list.
func (d *FakeDevice) Voices() []engine.Voice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]engine.Voice(nil), d.voices...)
}

// OnVoicesChanged registers the change hook when supported.
func (d *FakeDevice) OnVoicesChanged(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.SupportsChangeHook {
		return false
	}
	d.hook = fn
	return true
}

// Speaking reports whether an utterance is active and not paused.
func (d *FakeDevice) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil && !d.paused
}

// Pending reports whether recorded utterances have not started yet.
func (d *FakeDevice) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.recorded {
		if !r.Started && !r.Ended && !r.Failed {
			return true
		}
	}
	return false
}

// Test controls.

// SetVoices updates the voice list and fires the change hook, simulating the
// device populating its catalog late.
func (d *FakeDevice) SetVoices(voices []engine.Voice) {
	d.mu.Lock()
	d.voices = voices
	hook := d.hook
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Spoken returns the texts of all real (non-priming) utterances, in order.
func (d *FakeDevice) Spoken() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, r := range d.recorded {
		if !r.Priming() {
			out = append(out, r.Text())
		}
	}
	return out
}

// Last returns the most recent real utterance, or nil.
func (d *FakeDevice) Last() *Recorded {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.recorded) - 1; i >= 0; i-- {
		if !d.recorded[i].Priming() {
			return d.recorded[i]
		}
	}
	return nil
}

// StartLast fires OnStart for the most recent real utterance.
func (d *FakeDevice) StartLast() {
	if rec := d.Last(); rec != nil {
		d.fireStart(rec)
	}
}

// EndLast fires OnEnd for the most recent real utterance.
func (d *FakeDevice) EndLast() {
	if rec := d.Last(); rec != nil {
		d.fireEnd(rec)
	}
}

// FailLast fires OnError for the most recent real utterance.
func (d *FakeDevice) FailLast(err error) {
	rec := d.Last()
	if rec == nil {
		return
	}
	d.mu.Lock()
	rec.Failed = true
	if d.active == rec {
		d.active = nil
	}
	d.mu.Unlock()
	if rec.Utterance.OnError != nil {
		rec.Utterance.OnError(err)
	}
}

// Paused reports the device-level pause flag.
func (d *FakeDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Cancels returns how many times Cancel was called.
func (d *FakeDevice) Cancels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancels
}

// Resumes returns how many times Resume was called.
func (d *FakeDevice) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}

func (d *FakeDevice) fireStart(rec *Recorded) {
	d.mu.Lock()
	rec.Started = true
	d.active = rec
	d.mu.Unlock()
	if rec.Utterance.OnStart != nil {
		rec.Utterance.OnStart()
	}
}

func (d *FakeDevice) fireEnd(rec *Recorded) {
	d.mu.Lock()
	rec.Ended = true
	if d.active == rec {
		d.active = nil
	}
	d.mu.Unlock()
	if rec.Utterance.OnEnd != nil {
		rec.Utterance.OnEnd()
	}
}
