package piper

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/presentpro/deckvoice/engine"
)

// pollInterval is how often the drain goroutine checks playback progress,
// cancellation and the queue.
const pollInterval = 50 * time.Millisecond

// synthesizer abstracts the piper subprocess so device tests can stub it.
type synthesizer interface {
	Synthesize(ctx context.Context, text, voiceName string, rate float64) ([]byte, error)
	Voices() []engine.Voice
	Rescan() int
}

// player is the subset of oto.Player the device drives.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	BufferedSize() int
	Close() error
}

// Device implements engine.Device. Utterances queue in FIFO order and one
// playback goroutine drains them: synthesize, play, fire lifecycle
// callbacks. Cancel bumps a generation counter; the drain goroutine observes
// it and abandons whatever it was doing without firing callbacks.
type Device struct {
	synth     synthesizer
	octx      *oto.Context
	newPlayer func(r io.Reader) player

	mu      sync.Mutex
	queue   []*engine.Utterance
	running bool
	player  player
	paused  bool
	gen     uint64
}

// NewDevice creates a piper-backed narration device with models from
// modelDir. Audio context setup blocks until the platform backend is ready.
func NewDevice(modelDir string) (*Device, error) {
	synth, err := NewSynthesizer(modelDir)
	if err != nil {
		return nil, err
	}
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	d := &Device{synth: synth, octx: octx}
	d.newPlayer = func(r io.Reader) player { return octx.NewPlayer(r) }
	return d, nil
}

// Speak enqueues an utterance. Lifecycle callbacks fire from the device's
// playback goroutine.
func (d *Device) Speak(u *engine.Utterance) error {
	d.mu.Lock()
	d.queue = append(d.queue, u)
	if !d.running {
		d.running = true
		go d.drain()
	}
	d.mu.Unlock()
	return nil
}

// Pause suspends playback; the buffered position is kept, so Resume
// continues the same utterance.
func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
	if d.player != nil {
		d.player.Pause()
	}
	return nil
}

// Resume continues paused playback.
func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
	if d.player != nil {
		d.player.Play()
	}
	return nil
}

// Cancel flushes the queue and stops the active utterance. No callbacks fire
// for cancelled utterances.
func (d *Device) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.queue = nil
	d.paused = false
	if d.player != nil {
		d.player.Pause()
	}
	return nil
}

// Voices lists the synthesizer's discovered models.
func (d *Device) Voices() []engine.Voice {
	if len(d.synth.Voices()) == 0 {
		// A model downloaded after startup shows up on the next poll.
		d.synth.Rescan()
	}
	return d.synth.Voices()
}

// OnVoicesChanged reports false: the model directory has no change
// notification, callers fall back to polling Voices.
func (d *Device) OnVoicesChanged(func()) bool { return false }

// Speaking reports whether an utterance is audibly playing.
func (d *Device) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.player != nil && !d.paused
}

// Pending reports whether utterances are queued behind the active one.
func (d *Device) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) > 0
}

func (d *Device) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		u := d.queue[0]
		d.queue = d.queue[1:]
		gen := d.gen
		d.mu.Unlock()

		d.play(u, gen)
	}
}

func (d *Device) play(u *engine.Utterance, gen uint64) {
	// Zero-volume utterances warm the queue; complete them without audio.
	if u.Volume == 0 {
		fire(u.OnStart)
		fire(u.OnEnd)
		return
	}

	pcm, err := d.synth.Synthesize(context.Background(), u.Text, u.Voice.Name, u.Rate)
	if err != nil {
		if d.stale(gen) {
			return
		}
		log.Debug("synthesis failed", "error", err)
		if u.OnError != nil {
			u.OnError(err)
		}
		return
	}

	player := d.newPlayer(bytes.NewReader(pcm))
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		player.Close()
		return
	}
	d.player = player
	paused := d.paused
	d.mu.Unlock()

	fire(u.OnStart)
	if !paused {
		player.Play()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		d.mu.Lock()
		if gen != d.gen {
			d.player = nil
			d.mu.Unlock()
			player.Close()
			return
		}
		if d.paused {
			// An utterance queued while the primary is paused is the answer to
			// a question: it plays here, on its own player, so the primary
			// keeps its buffered position for Resume.
			var next *engine.Utterance
			if len(d.queue) > 0 {
				next = d.queue[0]
				d.queue = d.queue[1:]
			}
			d.mu.Unlock()
			if next != nil {
				d.interject(next, gen)
			}
			continue
		}
		done := !player.IsPlaying() && player.BufferedSize() == 0
		if done {
			d.player = nil
		}
		d.mu.Unlock()
		if done {
			player.Close()
			fire(u.OnEnd)
			return
		}
	}
}

// interject synthesizes and plays an utterance over the suspended primary
// one. d.player stays pointed at the primary, so Pause and Resume keep
// addressing it.
func (d *Device) interject(u *engine.Utterance, gen uint64) {
	if u.Volume == 0 {
		fire(u.OnStart)
		fire(u.OnEnd)
		return
	}

	pcm, err := d.synth.Synthesize(context.Background(), u.Text, u.Voice.Name, u.Rate)
	if err != nil {
		if d.stale(gen) {
			return
		}
		log.Debug("synthesis failed", "error", err)
		if u.OnError != nil {
			u.OnError(err)
		}
		return
	}
	if d.stale(gen) {
		return
	}

	p := d.newPlayer(bytes.NewReader(pcm))
	fire(u.OnStart)
	p.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		if d.stale(gen) {
			p.Close()
			return
		}
		if !p.IsPlaying() && p.BufferedSize() == 0 {
			p.Close()
			fire(u.OnEnd)
			return
		}
	}
}

func (d *Device) stale(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen != d.gen
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
