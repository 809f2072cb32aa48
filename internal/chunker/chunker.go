// Package chunker splits document text into heading-scoped passages.
// It is a pure function of its input: no state, no side effects.
package chunker

import "strings"

// DefaultMaxSize is the default maximum passage size in characters.
const DefaultMaxSize = 6000

// DefaultMinSize is the threshold below which a document is kept whole.
// Short notes are never fragmented.
const DefaultMinSize = 1000

// DefaultOverlap is the overlap between fixed-size splits, preserving
// cross-boundary context.
const DefaultOverlap = 200

// Passage is one heading-scoped piece of a document.
type Passage struct {
	// HeadingPath locates the passage, e.g. "Setup > Linux".
	// Empty for preamble and whole-document passages.
	HeadingPath string

	// Content is the passage text, including its heading line.
	Content string
}

// Chunker splits documents at section headings.
//
// Only depth-2 headings start new passages; oversized sections are
// subdivided at depth 3, then by fixed-size splitting with overlap.
// Depth-1 title headings and headings deeper than 3 never split - they
// stay embedded in their parent passage.
type Chunker struct {
	maxSize int
	minSize int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxSize sets the maximum passage size in characters.
func WithMaxSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithMinSize sets the whole-document threshold in characters.
func WithMinSize(size int) Option {
	return func(c *Chunker) {
		if size >= 0 {
			c.minSize = size
		}
	}
}

// WithOverlap sets the overlap between fixed-size splits in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		minSize: DefaultMinSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed the split size
	if c.overlap >= c.maxSize {
		c.overlap = c.maxSize / 4
	}

	return c
}

// Split chunks a document into ordered passages. It always returns at
// least one passage for non-empty input: a document below the minimum
// threshold, or without any depth-2 heading, comes back whole.
func (c *Chunker) Split(text string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if len(text) < c.minSize {
		return []Passage{{Content: text}}
	}

	sections := splitAtDepth(text, 2)
	if len(sections) == 1 && sections[0].heading == "" {
		// No qualifying headings: one passage regardless of length.
		return []Passage{{Content: text}}
	}

	var passages []Passage
	for _, sec := range sections {
		if strings.TrimSpace(sec.body) == "" {
			continue
		}
		passages = append(passages, c.splitSection(sec)...)
	}

	if len(passages) == 0 {
		return []Passage{{Content: text}}
	}
	return passages
}

// splitSection turns one depth-2 section (or the preamble) into one or
// more passages, subdividing at depth 3 when oversized.
func (c *Chunker) splitSection(sec section) []Passage {
	if len(sec.body) <= c.maxSize {
		return []Passage{{HeadingPath: sec.heading, Content: sec.body}}
	}

	var passages []Passage
	for _, sub := range splitAtDepth(sec.body, 3) {
		if strings.TrimSpace(sub.body) == "" {
			continue
		}
		path := sec.heading
		if sub.heading != "" {
			if path != "" {
				path = path + " > " + sub.heading
			} else {
				path = sub.heading
			}
		}
		for _, piece := range c.splitFixed(sub.body) {
			passages = append(passages, Passage{HeadingPath: path, Content: piece})
		}
	}
	return passages
}

// splitFixed applies fixed-size splitting with overlap to text that is
// still oversized after heading subdivision.
func (c *Chunker) splitFixed(text string) []string {
	if len(text) <= c.maxSize {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + c.maxSize
		if end > len(text) {
			end = len(text)
		}
		pieces = append(pieces, text[start:end])
		if end == len(text) {
			break
		}
		start = end - c.overlap
	}
	return pieces
}

// section is a heading-delimited span of text.
type section struct {
	heading string // heading text, empty for the preamble
	body    string // span text including the heading line
}

// splitAtDepth splits text at headings of exactly the given depth.
// Text before the first such heading becomes a preamble section with an
// empty heading. Headings inside fenced code blocks are ignored.
func splitAtDepth(text string, depth int) []section {
	marker := strings.Repeat("#", depth) + " "
	lines := strings.Split(text, "\n")

	var sections []section
	var current section
	var buf []string
	inFence := false

	flush := func() {
		body := strings.Join(buf, "\n")
		if strings.TrimSpace(body) != "" {
			current.body = body
			sections = append(sections, current)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, marker) {
			flush()
			current = section{heading: strings.TrimSpace(strings.TrimPrefix(line, marker))}
		}
		buf = append(buf, line)
	}
	flush()

	if len(sections) == 0 {
		return []section{{body: text}}
	}
	return sections
}
