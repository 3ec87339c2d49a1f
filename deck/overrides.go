package deck

import (
	"strings"
	"sync"
)

// Narration resolves the text spoken for each slide. An override set for a
// slide (edited or regenerated) wins over the slide's default notes; an
// override that is empty after trimming resolves the slide to silence rather
// than falling back.
type Narration struct {
	mu        sync.RWMutex
	deck      *Deck
	overrides map[int]string
}

// NewNarration creates a narration resolver over a deck.
func NewNarration(d *Deck) *Narration {
	return &Narration{
		deck:      d,
		overrides: make(map[int]string),
	}
}

// Len returns the number of slides.
func (n *Narration) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.deck.Len()
}

// NarrationText returns the text to speak for slide i: the override when one
// is set, the slide's notes otherwise.
func (n *Narration) NarrationText(i int) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if i < 0 || i >= n.deck.Len() {
		return ""
	}
	if text, ok := n.overrides[i]; ok {
		return text
	}
	return n.deck.Slides[i].Notes
}

// Slide returns the slide at index i for display.
func (n *Narration) Slide(i int) Slide {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.deck.Slides[i]
}

// Deck returns the underlying deck.
func (n *Narration) Deck() *Deck {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.deck
}

// SetOverride replaces the narration for slide i.
func (n *Narration) SetOverride(i int, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= n.deck.Len() {
		return
	}
	n.overrides[i] = strings.TrimSpace(text)
}

// ClearOverride restores slide i to its default notes.
func (n *Narration) ClearOverride(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.overrides, i)
}

// Override returns the override for slide i, if set.
func (n *Narration) Override(i int) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	text, ok := n.overrides[i]
	return text, ok
}

// Replace swaps in a reloaded deck. Overrides are kept for indices that still
// exist; a shrunken deck drops the orphans.
func (n *Narration) Replace(d *Deck) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deck = d
	for i := range n.overrides {
		if i >= d.Len() {
			delete(n.overrides, i)
		}
	}
}
