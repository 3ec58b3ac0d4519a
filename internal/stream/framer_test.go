package stream

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestFramerFeedLines(t *testing.T) {
	f := NewFramer()

	lines := f.Feed([]byte("alpha\nbeta\ngam"))
	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed returned %q, want %q", lines, want)
	}

	lines = f.Feed([]byte("ma\n"))
	want = []string{"gamma"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed returned %q, want %q", lines, want)
	}
}

func TestFramerCRLF(t *testing.T) {
	f := NewFramer()

	lines := f.Feed([]byte("one\r\ntwo\r\n"))
	want := []string{"one", "two"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed returned %q, want %q", lines, want)
	}
}

func TestFramerCRSplitAcrossChunks(t *testing.T) {
	f := NewFramer()

	if lines := f.Feed([]byte("one\r")); lines != nil {
		t.Fatalf("expected no lines before newline, got %q", lines)
	}
	lines := f.Feed([]byte("\ntwo\n"))
	want := []string{"one", "two"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed returned %q, want %q", lines, want)
	}
}

func TestFramerFlush(t *testing.T) {
	f := NewFramer()

	f.Feed([]byte("done\npartial"))
	line, ok := f.Flush()
	if !ok || line != "partial" {
		t.Fatalf("Flush returned (%q, %v), want (%q, true)", line, ok, "partial")
	}

	if line, ok := f.Flush(); ok {
		t.Fatalf("second Flush returned (%q, true), want nothing", line)
	}
}

func TestFramerFlushEmpty(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte("complete\n"))
	if line, ok := f.Flush(); ok {
		t.Fatalf("Flush returned (%q, true) after complete line, want nothing", line)
	}
}

// feedAll pushes the input through a fresh framer using the given chunk
// boundaries and returns every emitted line including the flushed tail.
func feedAll(input []byte, cuts []int) []string {
	f := NewFramer()
	var lines []string
	prev := 0
	for _, cut := range cuts {
		lines = append(lines, f.Feed(input[prev:cut])...)
		prev = cut
	}
	lines = append(lines, f.Feed(input[prev:])...)
	if tail, ok := f.Flush(); ok {
		lines = append(lines, tail)
	}
	return lines
}

func TestFramerChunkBoundaryInvariance(t *testing.T) {
	input := []byte("data: hello\nworld\r\n{\"type\":\"toolcall\",\"name\":\"t\"}\n[[END]]\ntail")

	want := feedAll(input, nil)

	// Every single split point.
	for i := 1; i < len(input); i++ {
		got := feedAll(input, []int{i})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d changed lines: got %q, want %q", i, got, want)
		}
	}

	// Random multi-way splits.
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		var cuts []int
		for i := 1; i < len(input); i++ {
			if rng.Intn(3) == 0 {
				cuts = append(cuts, i)
			}
		}
		got := feedAll(input, cuts)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("cuts %v changed lines: got %q, want %q", cuts, got, want)
		}
	}
}
