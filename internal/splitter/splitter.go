// Package splitter deterministically splits document text into overlapping
// chunks for embedding and retrieval. It implements recursive character
// splitting: paragraph boundaries are preferred, then line breaks, then
// sentence boundaries, then words, then a hard cut.
package splitter

import (
	"strings"
)

// Default chunking parameters.
const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters carried from the end
	// of one chunk into the start of the next when segments are merged.
	DefaultChunkOverlap = 200
)

// DefaultSeparators is the separator hierarchy tried in order. The empty
// separator is the base case: a hard cut at the chunk size.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Config holds the splitter parameters.
type Config struct {
	// ChunkSize is the maximum characters per chunk. Defaults to 1000.
	ChunkSize int
	// ChunkOverlap is the overlap between adjacent merged chunks.
	// Defaults to 200. Values >= ChunkSize are clamped to ChunkSize/10.
	ChunkOverlap int
	// Separators is the ordered separator hierarchy. Defaults to
	// DefaultSeparators.
	Separators []string
}

// Splitter produces overlapping text chunks. It is stateless and safe for
// concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New constructs a Splitter, applying defaults for zero-valued config fields.
func New(cfg Config) *Splitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:  cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: cfg.Separators,
	}
}

// Split breaks text into an ordered sequence of non-empty chunks. Repeated
// calls with the same input yield an identical sequence.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitRecursive(text, s.separators)
}

// splitRecursive splits text at the first applicable separator, recursing
// with the remaining hierarchy for any segment still over the chunk size.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	// Pick the first separator that occurs in the text; the empty string
	// always matches and hard-cuts.
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	var chunks []string
	var pending []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, separator)...)
			pending = nil
		}
		if len(remaining) == 0 {
			// No finer separator left; keep the oversized piece whole.
			if t := strings.TrimSpace(piece); t != "" {
				chunks = append(chunks, t)
			}
			continue
		}
		chunks = append(chunks, s.splitRecursive(piece, remaining)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, separator)...)
	}
	return chunks
}

// splitOn splits text at separator. The empty separator splits into
// individual characters (respecting UTF-8 boundaries) so the merge step can
// hard-cut at the chunk size.
func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		raw = strings.Split(text, "")
	} else {
		raw = strings.Split(text, separator)
	}
	out := raw[:0]
	for _, piece := range raw {
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// merge greedily combines adjacent small segments into chunks up to the
// chunk size, retaining a suffix of overlap characters as the prefix of the
// next chunk.
func (s *Splitter) merge(splits []string, separator string) []string {
	sepLen := len(separator)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		doc := strings.TrimSpace(strings.Join(window, separator))
		if doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range splits {
		pieceLen := len(piece)
		join := 0
		if len(window) > 0 {
			join = sepLen
		}
		if total+pieceLen+join > s.chunkSize && len(window) > 0 {
			flush()
			// Drop from the front until the retained suffix fits inside the
			// overlap budget and the new piece fits inside the chunk size.
			for total > s.overlap || (total+pieceLen+sepLen > s.chunkSize && total > 0) {
				total -= len(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += pieceLen
		if len(window) > 1 {
			total += sepLen
		}
	}
	flush()
	return chunks
}
