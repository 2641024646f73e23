package rag

import "strings"

// SplitterOptions configure chunking behavior.
type SplitterOptions struct {
	// ChunkSize is the target chunk length in bytes.
	ChunkSize int
	// ChunkOverlap is the maximum carry-over between adjacent chunks. It
	// must be smaller than ChunkSize.
	ChunkOverlap int
}

// Splitter cuts raw text into overlapping chunks. Cut points prefer
// natural boundaries within the size window: paragraph break, then line
// break, then sentence end, then word boundary, falling back to a hard
// cut when none is found.
type Splitter struct {
	opts SplitterOptions
}

// NewSplitter creates a splitter with the given options.
func NewSplitter(optFns ...func(o *SplitterOptions)) *Splitter {
	opts := SplitterOptions{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	return &Splitter{opts: opts}
}

// Split returns the ordered chunk sequence for text. Whitespace-only
// input yields no chunks. Every byte of the input is covered by at least
// one chunk.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.opts.ChunkSize
		if end >= len(text) {
			if chunk := strings.TrimSpace(text[start:]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := s.breakPoint(text, start, end)
		if chunk := strings.TrimSpace(text[start:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - s.opts.ChunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// breakPoint searches backwards from end for the best separator. A cut is
// only accepted in the second half of the window so chunks never shrink
// below half the target size.
func (s *Splitter) breakPoint(text string, start, end int) int {
	window := text[start:end]
	limit := len(window) / 2
	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if i := strings.LastIndex(window, sep); i > limit {
			return start + i + len(sep)
		}
	}
	return end
}
