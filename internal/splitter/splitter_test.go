package splitter

import (
	"strings"
	"testing"
)

func Test_Splitter_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()
	s := New(Config{})

	chunks := s.Split("A short paragraph about photosynthesis.")
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "A short paragraph about photosynthesis." {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func Test_Splitter_EmptyInput(t *testing.T) {
	t.Parallel()
	s := New(Config{})

	if got := s.Split(""); got != nil {
		t.Errorf("empty input: want nil, got %v", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Errorf("whitespace input: want nil, got %v", got)
	}
}

func Test_Splitter_Deterministic(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 100, ChunkOverlap: 20})

	text := strings.Repeat("The mitochondria is the powerhouse of the cell. ", 30)
	a := s.Split(text)
	b := s.Split(text)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs:\n%q\n%q", i, a[i], b[i])
		}
	}
}

func Test_Splitter_RespectsChunkSize(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 120, ChunkOverlap: 30})

	text := strings.Repeat("Cells divide through mitosis and meiosis. ", 40)
	for i, c := range s.Split(text) {
		if len(c) > 120 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func Test_Splitter_PrefersParagraphBoundaries(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 60, ChunkOverlap: 0})

	text := "First paragraph about plants.\n\nSecond paragraph about animals."
	chunks := s.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "First paragraph about plants." {
		t.Errorf("chunk 0: %q", chunks[0])
	}
	if chunks[1] != "Second paragraph about animals." {
		t.Errorf("chunk 1: %q", chunks[1])
	}
}

func Test_Splitter_OverlapCarriesSuffix(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 40, ChunkOverlap: 15, Separators: []string{" ", ""}})

	text := "alpha bravo charlie delta echo foxtrot golf hotel india"
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	// Every chunk after the first must start with words present near the end
	// of its predecessor.
	for i := 1; i < len(chunks); i++ {
		firstWord := strings.SplitN(chunks[i], " ", 2)[0]
		if !strings.Contains(chunks[i-1], firstWord) {
			t.Errorf("chunk %d does not overlap predecessor: %q after %q", i, chunks[i], chunks[i-1])
		}
	}
}

func Test_Splitter_HardCutWithoutSeparators(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 50, ChunkOverlap: 10})

	// A single unbroken token longer than the chunk size forces the empty
	// separator base case.
	text := strings.Repeat("x", 180)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("want >=3 chunks for 180 chars at size 50, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk %d exceeds hard cut: %d chars", i, len(c))
		}
	}
}

func Test_Splitter_PreservesRelativeOrder(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 80, ChunkOverlap: 0})

	text := "one. two. three. four. five. six. seven. eight. nine. ten. " +
		"eleven. twelve. thirteen. fourteen. fifteen. sixteen."
	chunks := s.Split(text)

	// "three" must never appear in a chunk after one containing "fifteen".
	posThree, posFifteen := -1, -1
	for i, c := range chunks {
		if strings.Contains(c, "three.") && posThree == -1 {
			posThree = i
		}
		if strings.Contains(c, "fifteen") && posFifteen == -1 {
			posFifteen = i
		}
	}
	if posThree == -1 || posFifteen == -1 {
		t.Fatalf("expected both markers present, got chunks: %v", chunks)
	}
	if posThree > posFifteen {
		t.Errorf("order violated: three at %d, fifteen at %d", posThree, posFifteen)
	}
}

func Test_Splitter_CoversInput(t *testing.T) {
	t.Parallel()
	s := New(Config{ChunkSize: 100, ChunkOverlap: 0, Separators: []string{"\n\n", "\n", ". ", " ", ""}})

	text := "Plants convert light into energy. Roots absorb water. Leaves capture sunlight. " +
		"Chlorophyll gives plants their color. Stems transport nutrients."
	joined := strings.Join(s.Split(text), " ")
	for _, word := range strings.Fields(strings.ReplaceAll(text, ".", "")) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q missing from chunk output", word)
		}
	}
}
