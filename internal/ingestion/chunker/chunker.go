package chunker

import "strings"

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 400
)

// DefaultSeparators is the split priority, coarsest first. The empty string
// means "hard split by characters" and guarantees no chunk ever exceeds the
// target size.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is one contiguous slice of the input text. StartOffset/EndOffset
// index into the original string; consecutive chunks overlap.
type Chunk struct {
	Text        string
	StartOffset int
	EndOffset   int
}

type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

type Option func(*Chunker)

func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = seps
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

type span struct {
	start int
	end   int
}

// Split cuts text into overlapping chunks. Separators are tried coarsest
// first and the splitter recurses only while a segment exceeds the target
// size. A segment no separator can break is emitted oversized rather than
// dropped.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	small := c.split(text, span{0, len(text)}, 0)
	parts := c.merge(small)

	out := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		start := p.start
		if i > 0 {
			// The carried overlap counts toward the size bound: shrink it
			// rather than let the chunk grow past the target. An already
			// oversized unbreakable run gets no overlap at all.
			ext := c.overlap
			if room := c.chunkSize - (p.end - p.start); room < ext {
				ext = room
			}
			if ext < 0 {
				ext = 0
			}
			start -= ext
			if start < parts[i-1].start {
				start = parts[i-1].start
			}
		}
		out = append(out, Chunk{
			Text:        text[start:p.end],
			StartOffset: start,
			EndOffset:   p.end,
		})
	}
	return out
}

func (c *Chunker) split(text string, sp span, sepIdx int) []span {
	if sp.end-sp.start <= c.chunkSize {
		return []span{sp}
	}
	if sepIdx >= len(c.separators) {
		// Unbreakable run, emit as-is.
		return []span{sp}
	}

	sep := c.separators[sepIdx]
	if sep == "" {
		return c.hardSplit(sp)
	}

	pieces := cut(text, sp, sep)
	if len(pieces) == 1 {
		return c.split(text, sp, sepIdx+1)
	}

	out := make([]span, 0, len(pieces))
	for _, piece := range pieces {
		if piece.end-piece.start <= c.chunkSize {
			out = append(out, piece)
			continue
		}
		out = append(out, c.split(text, piece, sepIdx+1)...)
	}
	return out
}

func (c *Chunker) hardSplit(sp span) []span {
	var out []span
	for start := sp.start; start < sp.end; start += c.chunkSize {
		end := start + c.chunkSize
		if end > sp.end {
			end = sp.end
		}
		out = append(out, span{start, end})
	}
	return out
}

// cut splits sp at each occurrence of sep, keeping the separator attached to
// the preceding piece so spans tile the input exactly.
func cut(text string, sp span, sep string) []span {
	var out []span
	start := sp.start
	for start < sp.end {
		idx := strings.Index(text[start:sp.end], sep)
		if idx < 0 {
			out = append(out, span{start, sp.end})
			break
		}
		end := start + idx + len(sep)
		out = append(out, span{start, end})
		start = end
	}
	if len(out) == 0 {
		out = append(out, sp)
	}
	return out
}

// merge greedily packs adjacent small spans back together. The first pack
// may fill the whole target; later packs leave room for the leading overlap
// Split extends them by, keeping every emitted chunk within the target size.
// Spans tile the input, so the result tiles it too.
func (c *Chunker) merge(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	out := make([]span, 0, len(spans))
	budget := c.chunkSize
	cur := spans[0]
	for _, next := range spans[1:] {
		if next.end-cur.start <= budget {
			cur.end = next.end
			continue
		}
		out = append(out, cur)
		cur = next
		budget = c.chunkSize - c.overlap
	}
	return append(out, cur)
}
