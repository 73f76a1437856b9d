package chunking

import (
	"fmt"
	"strings"
)

var sentenceBreaks = []string{". ", "\n\n", "? ", "! "}

// Splitter cuts text into overlapping windows of ChunkSize runes, preferring to
// end a window on a sentence or paragraph break in its second half.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}, nil
}

type span struct {
	start int
	end   int
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for _, sp := range s.spans(runes) {
		chunk := strings.TrimSpace(string(runes[sp.start:sp.end]))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// spans returns rune windows in order. Each window starts Overlap runes before
// the previous end, or at the previous end when that would not move forward.
func (s *Splitter) spans(runes []rune) []span {
	n := len(runes)
	var out []span
	for start := 0; start < n; {
		end := start + s.ChunkSize
		if end >= n {
			out = append(out, span{start: start, end: n})
			break
		}
		if bp := lastBreak(string(runes[start:end])); bp > s.ChunkSize/2 {
			end = start + bp + 1
		}
		out = append(out, span{start: start, end: end})

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastBreak returns the rune offset of the rightmost break marker in window, or -1.
func lastBreak(window string) int {
	best := -1
	for _, marker := range sentenceBreaks {
		idx := strings.LastIndex(window, marker)
		if idx < 0 {
			continue
		}
		if runeIdx := len([]rune(window[:idx])); runeIdx > best {
			best = runeIdx
		}
	}
	return best
}
