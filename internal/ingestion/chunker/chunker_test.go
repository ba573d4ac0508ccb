package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New()
	if got := c.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := c.Split("   \n  "); got != nil {
		t.Fatalf("Split(blank) = %v, want nil", got)
	}
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	c := New()
	text := "a short paragraph that fits in one chunk"
	got := c.Split(text)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Text != text || got[0].StartOffset != 0 || got[0].EndOffset != len(text) {
		t.Fatalf("chunk = %+v", got[0])
	}
}

func TestSplitOffsetsMatchText(t *testing.T) {
	c := New(WithChunkSize(50), WithOverlap(10))
	text := strings.Repeat("some words here. more words follow.\n\n", 20)
	got := c.Split(text)
	if len(got) < 2 {
		t.Fatalf("len = %d, want several chunks", len(got))
	}
	for i, ch := range got {
		if text[ch.StartOffset:ch.EndOffset] != ch.Text {
			t.Fatalf("chunk %d text does not match offsets", i)
		}
	}
}

func TestSplitCoversWholeInputInOrder(t *testing.T) {
	c := New(WithChunkSize(40), WithOverlap(8))
	text := strings.Repeat("alpha beta gamma delta epsilon zeta.\n", 15)
	got := c.Split(text)

	if got[0].StartOffset != 0 {
		t.Fatalf("first chunk starts at %d", got[0].StartOffset)
	}
	if got[len(got)-1].EndOffset != len(text) {
		t.Fatalf("last chunk ends at %d, want %d", got[len(got)-1].EndOffset, len(text))
	}
	for i := 1; i < len(got); i++ {
		// No gap: each chunk starts at or before the previous end.
		if got[i].StartOffset > got[i-1].EndOffset {
			t.Fatalf("gap between chunk %d and %d", i-1, i)
		}
		if got[i].StartOffset <= got[i-1].StartOffset {
			t.Fatalf("chunk starts not increasing at %d", i)
		}
		if got[i].EndOffset <= got[i-1].EndOffset {
			t.Fatalf("chunk ends not increasing at %d", i)
		}
	}
}

func TestSplitOverlapIsShared(t *testing.T) {
	c := New(WithChunkSize(40), WithOverlap(8))
	text := strings.Repeat("one two three four five six seven.\n", 12)
	got := c.Split(text)
	if len(got) < 2 {
		t.Fatalf("len = %d, want several chunks", len(got))
	}
	for i := 1; i < len(got); i++ {
		shared := got[i-1].EndOffset - got[i].StartOffset
		if shared <= 0 {
			t.Fatalf("chunks %d and %d share no text", i-1, i)
		}
		if shared > 8 {
			t.Fatalf("chunks %d and %d share %d chars, overlap is 8", i-1, i, shared)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("a", 30)
	para2 := strings.Repeat("b", 30)
	text := para1 + "\n\n" + para2
	c := New(WithChunkSize(40), WithOverlap(0))
	got := c.Split(text)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// First chunk is paragraph one plus its trailing separator.
	if got[0].EndOffset != len(para1)+2 {
		t.Fatalf("first chunk ends at %d, want %d", got[0].EndOffset, len(para1)+2)
	}
}

func TestSplitHardSplitsUnbrokenRuns(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(0))
	text := strings.Repeat("x", 35)
	got := c.Split(text)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i, ch := range got[:3] {
		if len(ch.Text) != 10 {
			t.Fatalf("chunk %d len = %d, want 10", i, len(ch.Text))
		}
	}
	if len(got[3].Text) != 5 {
		t.Fatalf("tail len = %d, want 5", len(got[3].Text))
	}
}

func TestSplitOversizedRunWithoutCharFallback(t *testing.T) {
	// When the separator list has no character fallback, an unbreakable run
	// is emitted oversized rather than dropped.
	c := New(WithChunkSize(10), WithOverlap(0), WithSeparators("\n\n"))
	text := strings.Repeat("y", 25)
	got := c.Split(text)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if len(got[0].Text) != 25 {
		t.Fatalf("chunk len = %d, want 25", len(got[0].Text))
	}
}

func TestSplitRespectsTargetSizeWithDefaults(t *testing.T) {
	// Freely breakable text: the overlap carried into each chunk counts
	// toward the target, so no chunk may exceed it.
	c := New()
	text := strings.Repeat("lorem ipsum dolor sit amet ", 400)
	got := c.Split(text)
	if len(got) < 2 {
		t.Fatalf("len = %d, want several chunks", len(got))
	}
	for i, ch := range got {
		if len(ch.Text) > DefaultChunkSize {
			t.Fatalf("chunk %d has %d chars, exceeds target %d", i, len(ch.Text), DefaultChunkSize)
		}
	}
	for i := 1; i < len(got); i++ {
		shared := got[i-1].EndOffset - got[i].StartOffset
		if shared <= 0 {
			t.Fatalf("chunks %d and %d share no text", i-1, i)
		}
		if shared > DefaultOverlap {
			t.Fatalf("chunks %d and %d share %d chars, overlap is %d", i-1, i, shared, DefaultOverlap)
		}
	}
}

func TestSplitBoundHoldsForLoneOversizedSegment(t *testing.T) {
	// A chunk-size paragraph standing alone gets no overlap extension; the
	// bound wins over the configured overlap.
	para1 := strings.Repeat("a", 30)
	para2 := strings.Repeat("b", 40)
	text := para1 + "\n\n" + para2
	c := New(WithChunkSize(40), WithOverlap(8))
	got := c.Split(text)
	for i, ch := range got {
		if len(ch.Text) > 40 {
			t.Fatalf("chunk %d has %d chars, exceeds target 40", i, len(ch.Text))
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New(WithChunkSize(60), WithOverlap(12))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 30)
	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestNewClampsExcessiveOverlap(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(200))
	if c.overlap >= c.chunkSize {
		t.Fatalf("overlap %d not clamped below size %d", c.overlap, c.chunkSize)
	}
}
