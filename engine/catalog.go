package engine

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
)

const (
	// catalogPollInterval is the poll spacing used when the device does not
	// support voice change notification.
	catalogPollInterval = 300 * time.Millisecond

	// catalogMaxPolls bounds polling. An empty catalog after the bound is a
	// valid degraded terminal state, not an error: playback continues with
	// the device default voice.
	catalogMaxPolls = 20
)

// Catalog discovers the narration device's available voices. Devices may
// report zero voices at first and populate the list later, signaled by a
// change notification when supported and by bounded polling otherwise.
type Catalog struct {
	device Device

	mu       sync.Mutex
	voices   []Voice
	ready    bool
	degraded bool
	waiters  []func([]Voice)
	polls    int

	// after schedules a callback; tests replace it to run synchronously.
	after func(time.Duration, func())
}

// NewCatalog creates a catalog for the given device. Call Load to start
// discovery.
func NewCatalog(device Device) *Catalog {
	return &Catalog{
		device: device,
		after:  func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Load starts voice discovery. It prefers the device's change notification
// and falls back to bounded polling when the hook is unsupported.
func (c *Catalog) Load() {
	if c.refresh() {
		return
	}
	if c.device.OnVoicesChanged(func() { c.refresh() }) {
		log.Debug("voice catalog waiting for device change notification")
		return
	}
	log.Debug("device lacks voice change notification, polling",
		"interval", catalogPollInterval, "max", catalogMaxPolls)
	c.schedulePoll()
}

// Ready reports whether discovery has resolved, including the degraded case.
func (c *Catalog) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Degraded reports whether discovery resolved without any voices.
func (c *Catalog) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Voices returns the discovered voices, possibly empty.
func (c *Catalog) Voices() []Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Voice, len(c.voices))
	copy(out, c.voices)
	return out
}

// OnReady registers fn to run once discovery resolves. If the catalog is
// already resolved, fn runs immediately. The voice slice may be empty in the
// degraded state; dependents must still function using the device default.
func (c *Catalog) OnReady(fn func(voices []Voice)) {
	c.mu.Lock()
	if c.ready {
		voices := c.voices
		c.mu.Unlock()
		fn(voices)
		return
	}
	c.waiters = append(c.waiters, fn)
	c.mu.Unlock()
}

// Match resolves a requested voice name against the catalog. Selection is
// advisory: an exact name match wins, then the closest fuzzy match, and a
// miss returns the zero Voice so the device default is used.
func (c *Catalog) Match(name string) (Voice, bool) {
	if name == "" {
		return Voice{}, false
	}
	voices := c.Voices()
	names := make([]string, len(voices))
	for i, v := range voices {
		if v.Name == name {
			return v, true
		}
		names[i] = v.Name
	}
	if matches := fuzzy.Find(name, names); len(matches) > 0 {
		return voices[matches[0].Index], true
	}
	return Voice{}, false
}

// Resolve maps an advisory voice selection to a catalog entry. A name match
// wins; otherwise the selection is treated as a BCP-47 tag and matched by
// locale, so "en-GB" picks a British voice without knowing its name.
func (c *Catalog) Resolve(name string) (Voice, bool) {
	if v, ok := c.Match(name); ok {
		return v, true
	}
	return c.MatchLocale(name)
}

// MatchLocale returns the best voice for a BCP-47 tag, using confidence-based
// matching so that "en" finds "en-US" voices.
func (c *Catalog) MatchLocale(tag string) (Voice, bool) {
	want, err := language.Parse(tag)
	if err != nil {
		return Voice{}, false
	}
	voices := c.Voices()
	tags := make([]language.Tag, 0, len(voices))
	idx := make([]int, 0, len(voices))
	for i, v := range voices {
		t, err := language.Parse(v.Locale)
		if err != nil {
			continue
		}
		tags = append(tags, t)
		idx = append(idx, i)
	}
	if len(tags) == 0 {
		return Voice{}, false
	}
	matcher := language.NewMatcher(tags)
	_, i, conf := matcher.Match(want)
	if conf == language.No {
		return Voice{}, false
	}
	return voices[idx[i]], true
}

// refresh pulls the device voice list and resolves the catalog when voices
// appeared. It reports whether the catalog is now resolved.
func (c *Catalog) refresh() bool {
	voices := c.device.Voices()
	if len(voices) == 0 {
		return false
	}

	c.mu.Lock()
	if c.ready && !c.degraded {
		c.voices = voices
		c.mu.Unlock()
		return true
	}
	c.voices = voices
	c.ready = true
	c.degraded = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	log.Debug("voice catalog ready", "voices", len(voices))
	for _, fn := range waiters {
		fn(voices)
	}
	return true
}

func (c *Catalog) schedulePoll() {
	c.after(catalogPollInterval, func() {
		if c.refresh() {
			return
		}
		c.mu.Lock()
		c.polls++
		done := c.polls >= catalogMaxPolls
		c.mu.Unlock()
		if !done {
			c.schedulePoll()
			return
		}
		c.resolveDegraded()
	})
}

// resolveDegraded marks the catalog resolved with no voices after the poll
// bound. Waiters still run: playback proceeds with the device default.
func (c *Catalog) resolveDegraded() {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	c.degraded = true
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	log.Warn("no voices discovered after retries, using device default")
	for _, fn := range waiters {
		fn(nil)
	}
}
