// Package splitter segments document text into bounded, overlapping chunks.
//
// Splitting is recursive: the coarsest separator that appears in the text is
// tried first (paragraph break, then line break, sentence punctuation, clause
// punctuation, space), and only segments that still exceed the chunk bound
// fall through to a finer separator. Segments are then greedily merged back
// into chunks no larger than the bound, carrying a tail of the previous chunk
// forward as overlap so context survives chunk boundaries.
package splitter

import (
	"strings"
)

// Defaults for chunking, matching the ingestion entry point defaults.
const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 200
)

// defaultSeparators is the priority list, coarsest first. The empty string
// is the terminal fallback: fixed-size windows over otherwise unsplittable text.
var defaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ": ", ", ", " ", ""}

// Splitter splits text deterministically for a fixed (maxChars, overlap) pair.
type Splitter struct {
	maxChars   int
	overlap    int
	separators []string
}

// New creates a splitter. Non-positive maxChars or negative overlap fall back
// to the defaults; overlap is clamped below maxChars.
func New(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxChars {
		overlap = maxChars / 2
	}
	return &Splitter{
		maxChars:   maxChars,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// MaxChars returns the chunk size bound.
func (s *Splitter) MaxChars() int { return s.maxChars }

// Overlap returns the inter-chunk overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns ordered chunks of text. Every chunk is a contiguous substring
// of the input and no chunk exceeds maxChars, except a single token that
// cannot be split by any separator, which is emitted whole.
// Empty or whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if len(text) <= s.maxChars {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return s.window(text)
	}

	// SplitAfter keeps the separator attached to the preceding segment, so
	// joining segments reconstructs the text byte for byte.
	parts := strings.SplitAfter(text, sep)
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}

	var chunks []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
	}
	for _, part := range parts {
		if len(part) <= s.maxChars {
			pending = append(pending, part)
			continue
		}
		// Oversized segment: recurse with the finer separators.
		flush()
		chunks = append(chunks, s.split(part, rest)...)
	}
	flush()
	return chunks
}

// pickSeparator returns the first separator present in text and the finer
// separators after it. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// merge greedily combines segments (each already within the bound) into
// chunks of at most maxChars, carrying up to overlap trailing bytes of the
// emitted chunk into the next one.
func (s *Splitter) merge(parts []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, part := range parts {
		if currentLen > 0 && currentLen+len(part) > s.maxChars {
			chunks = append(chunks, strings.Join(current, ""))
			// Retain a tail of segments no longer than the overlap, and
			// keep popping while the tail plus the incoming segment would
			// still exceed the bound.
			for len(current) > 0 && (currentLen > s.overlap || currentLen+len(part) > s.maxChars) {
				currentLen -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, part)
		currentLen += len(part)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// window emits fixed-size overlapping windows for text with no separators.
// Slicing is rune-aligned so multi-byte characters are never cut.
func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.maxChars - s.overlap
	if step <= 0 {
		step = s.maxChars
	}

	var chunks []string
	for start := 0; ; start += step {
		end := start + s.maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
	}
}
