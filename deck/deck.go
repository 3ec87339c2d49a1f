// Package deck models a slide deck and resolves the narration text spoken
// for each slide. Decks load from a JSON deck file or from a markdown file
// split into slides at top-level headings.
package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoSlides indicates the source parsed cleanly but produced no slides.
	ErrNoSlides = errors.New("deck contains no slides")

	// ErrUnsupportedFormat indicates the file extension maps to no loader.
	ErrUnsupportedFormat = errors.New("unsupported deck format")
)

// Slide is one presentable unit of a deck. Body is the markdown shown on
// screen; Notes is the default narration text, spoken unless an override is
// set for the slide.
type Slide struct {
	Index int    `json:"-"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Notes string `json:"notes,omitempty"`
}

// Deck is an ordered set of slides loaded from one source file.
type Deck struct {
	Title  string  `json:"title"`
	Path   string  `json:"-"`
	Slides []Slide `json:"slides"`
}

// Len returns the number of slides.
func (d *Deck) Len() int { return len(d.Slides) }

// Slide returns the slide at index i.
func (d *Deck) Slide(i int) Slide { return d.Slides[i] }

// LoadFile loads a deck from path, choosing the loader by extension:
// .json for deck files, .md/.markdown for markdown split at headings.
func LoadFile(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}

	var d *Deck
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		d, err = parseJSON(data)
	case ".md", ".markdown", ".mdown", ".mkd":
		d, err = SplitMarkdown(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	d.Path = path
	if d.Title == "" {
		base := filepath.Base(path)
		d.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return d, nil
}

func parseJSON(data []byte) (*Deck, error) {
	var d Deck
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing deck file: %w", err)
	}
	if len(d.Slides) == 0 {
		return nil, ErrNoSlides
	}
	for i := range d.Slides {
		d.Slides[i].Index = i
		if d.Slides[i].Notes == "" {
			d.Slides[i].Notes = PlainText(d.Slides[i].Body)
		}
	}
	return &d, nil
}
