package deck

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var spaceRe = regexp.MustCompile(`\s+`)

// SplitMarkdown splits a markdown document into slides at level 1 and 2
// headings. Content before the first heading becomes an untitled lead slide;
// the first top-level heading doubles as the deck title.
func SplitMarkdown(src []byte) (*Deck, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	type mark struct {
		title string
		start int
	}
	var (
		marks     []mark
		deckTitle string
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > 2 || h.Lines().Len() == 0 {
			continue
		}
		title := headingText(h, src)
		if h.Level == 1 && deckTitle == "" {
			deckTitle = title
		}
		marks = append(marks, mark{title: title, start: lineStart(src, h.Lines().At(0).Start)})
	}

	var slides []Slide
	add := func(title string, body []byte) {
		text := strings.TrimSpace(string(body))
		if title == "" && text == "" {
			return
		}
		slides = append(slides, Slide{Title: title, Body: text})
	}
	if len(marks) == 0 {
		add("", src)
	} else {
		add("", src[:marks[0].start])
		for i, m := range marks {
			end := len(src)
			if i+1 < len(marks) {
				end = marks[i+1].start
			}
			add(m.title, src[m.start:end])
		}
	}
	if len(slides) == 0 {
		return nil, ErrNoSlides
	}

	for i := range slides {
		slides[i].Index = i
		slides[i].Notes = PlainText(slides[i].Body)
	}
	return &Deck{Title: deckTitle, Slides: slides}, nil
}

// PlainText extracts speakable text from markdown: code blocks are dropped,
// link text survives without its URL, images become a short description, and
// headings and list items get sentence-ending punctuation so the synthesized
// speech pauses naturally.
func PlainText(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var b strings.Builder
	walkText(doc, reader.Source(), &b)
	return strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " "))
}

func walkText(node ast.Node, source []byte, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
		return

	case *ast.Text:
		b.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteString(" ")
		}
		return

	case *ast.CodeSpan:
		b.WriteString("`")
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(source))
			}
		}
		b.WriteString("`")
		return

	case *ast.Heading:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkText(c, source, b)
		}
		b.WriteString(". ")
		return

	case *ast.Paragraph:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkText(c, source, b)
		}
		ensureSentenceEnd(b)
		return

	case *ast.ListItem:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkText(c, source, b)
		}
		ensureSentenceEnd(b)
		return

	case *ast.Link:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkText(c, source, b)
		}
		return

	case *ast.Image:
		b.WriteString("[Image:")
		if n.Title != nil {
			b.WriteString(" ")
			b.Write(n.Title)
		} else {
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.WriteString(" ")
					b.Write(t.Segment.Value(source))
				}
			}
		}
		b.WriteString("] ")
		return

	case *ast.ThematicBreak:
		b.WriteString(". ")
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkText(c, source, b)
	}
}

// ensureSentenceEnd appends ". " unless the text already ends with
// sentence-closing punctuation.
func ensureSentenceEnd(b *strings.Builder) {
	s := strings.TrimRight(b.String(), " \n\t")
	if s == "" {
		return
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ']':
		b.WriteString(" ")
	default:
		b.WriteString(". ")
	}
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		walkText(c, source, &b)
	}
	return strings.TrimSpace(b.String())
}

// lineStart walks back from an offset to the start of its line so a slide's
// body includes the heading markup itself.
func lineStart(src []byte, offset int) int {
	for offset > 0 && src[offset-1] != '\n' {
		offset--
	}
	return offset
}
