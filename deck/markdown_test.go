package deck

import (
	"strings"
	"testing"
)

func TestSplitMarkdown(t *testing.T) {
	src := []byte(`# Release Notes

Welcome to the release.

## Features

- Faster startup
- New themes

## Fixes

Crash on resize is gone.
`)

	d, err := SplitMarkdown(src)
	if err != nil {
		t.Fatalf("SplitMarkdown() failed: %v", err)
	}
	if d.Title != "Release Notes" {
		t.Errorf("Title = %q, want first heading", d.Title)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 slides", d.Len())
	}
	titles := []string{"Release Notes", "Features", "Fixes"}
	for i, want := range titles {
		if got := d.Slide(i).Title; got != want {
			t.Errorf("slide %d title = %q, want %q", i, got, want)
		}
	}
	if !strings.Contains(d.Slide(1).Body, "Faster startup") {
		t.Errorf("slide 1 body = %q, missing list content", d.Slide(1).Body)
	}
	if !strings.HasPrefix(d.Slide(1).Body, "## Features") {
		t.Errorf("slide body should keep its heading markup, got %q", d.Slide(1).Body)
	}
}

func TestSplitMarkdownLeadContent(t *testing.T) {
	src := []byte("Preamble paragraph.\n\n# First\n\nBody.\n")
	d, err := SplitMarkdown(src)
	if err != nil {
		t.Fatalf("SplitMarkdown() failed: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want lead slide plus heading slide", d.Len())
	}
	if d.Slide(0).Title != "" || !strings.Contains(d.Slide(0).Body, "Preamble") {
		t.Errorf("lead slide = %+v", d.Slide(0))
	}
}

func TestSplitMarkdownNoHeadings(t *testing.T) {
	d, err := SplitMarkdown([]byte("Just one block of text.\n"))
	if err != nil {
		t.Fatalf("SplitMarkdown() failed: %v", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestSplitMarkdownEmpty(t *testing.T) {
	if _, err := SplitMarkdown([]byte("   \n\n  ")); err != ErrNoSlides {
		t.Errorf("error = %v, want ErrNoSlides", err)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"formatting stripped",
			"This is **bold** and *italic* text",
			"This is bold and italic text.",
		},
		{
			"heading gets sentence break",
			"# Title\n\nBody text here",
			"Title. Body text here.",
		},
		{
			"code blocks dropped",
			"Before.\n\n```go\nfunc main() {}\n```\n\nAfter.",
			"Before. After.",
		},
		{
			"inline code kept with backticks",
			"Run `go test` now",
			"Run `go test` now.",
		},
		{
			"link text without url",
			"See [the docs](https://example.com) for more",
			"See the docs for more.",
		},
		{
			"image described",
			"![architecture diagram](diagram.png)",
			"[Image: architecture diagram]",
		},
		{
			"list items separated",
			"- first item\n- second item",
			"first item. second item.",
		},
		{
			"existing punctuation untouched",
			"Is it done? Yes!",
			"Is it done? Yes!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNarrationOverrideWins(t *testing.T) {
	d := &Deck{Slides: []Slide{
		{Index: 0, Notes: "default zero"},
		{Index: 1, Notes: "default one"},
	}}
	n := NewNarration(d)

	if got := n.NarrationText(0); got != "default zero" {
		t.Errorf("NarrationText(0) = %q", got)
	}

	n.SetOverride(0, "edited narration")
	if got := n.NarrationText(0); got != "edited narration" {
		t.Errorf("NarrationText(0) = %q, want the override", got)
	}
	if got := n.NarrationText(1); got != "default one" {
		t.Errorf("NarrationText(1) = %q, override must not leak", got)
	}

	// An empty override silences the slide instead of falling back.
	n.SetOverride(1, "   ")
	if got := n.NarrationText(1); got != "" {
		t.Errorf("NarrationText(1) = %q, want silence", got)
	}

	n.ClearOverride(0)
	if got := n.NarrationText(0); got != "default zero" {
		t.Errorf("NarrationText(0) = %q after clear", got)
	}
}

func TestNarrationReplaceKeepsValidOverrides(t *testing.T) {
	n := NewNarration(&Deck{Slides: []Slide{
		{Index: 0, Notes: "a"}, {Index: 1, Notes: "b"}, {Index: 2, Notes: "c"},
	}})
	n.SetOverride(0, "kept")
	n.SetOverride(2, "orphaned")

	n.Replace(&Deck{Slides: []Slide{{Index: 0, Notes: "a2"}, {Index: 1, Notes: "b2"}}})

	if got := n.NarrationText(0); got != "kept" {
		t.Errorf("NarrationText(0) = %q, want surviving override", got)
	}
	if _, ok := n.Override(2); ok {
		t.Error("override past the new deck length should be dropped")
	}
	if n.Len() != 2 {
		t.Errorf("Len() = %d, want 2", n.Len())
	}
	if got := n.NarrationText(1); got != "b2" {
		t.Errorf("NarrationText(1) = %q, want reloaded notes", got)
	}
}

func TestNarrationOutOfRange(t *testing.T) {
	n := NewNarration(&Deck{Slides: []Slide{{Notes: "only"}}})
	if got := n.NarrationText(-1); got != "" {
		t.Errorf("NarrationText(-1) = %q", got)
	}
	if got := n.NarrationText(5); got != "" {
		t.Errorf("NarrationText(5) = %q", got)
	}
}
