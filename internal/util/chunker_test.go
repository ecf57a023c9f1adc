package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkTextRoundTrip(t *testing.T) {
	inputs := []string{
		"single line without newline",
		"a\nb\nc\n",
		"\n\n\nleading blank lines\n",
		"Tiêu chuẩn TCVN 4054:2005\nĐường ô tô - Yêu cầu thiết kế\n\nphần hai",
		strings.Repeat("paragraph of text\n", 200),
		strings.Repeat("x", 2500) + "\nshort tail",
	}
	for _, in := range inputs {
		for _, max := range []int{1, 7, 50, 1000} {
			chunks := ChunkText(in, max)
			if got := strings.Join(chunks, ""); got != in {
				t.Fatalf("round trip failed for max=%d: got %q want %q", max, got, in)
			}
			for _, c := range chunks {
				if c == "" {
					t.Fatalf("empty chunk emitted for max=%d", max)
				}
				if utf8.RuneCountInString(c) > max && strings.Count(strings.TrimSuffix(c, "\n"), "\n") > 0 {
					t.Fatalf("chunk over %d runes holds more than one paragraph: %q", max, c)
				}
			}
		}
	}
}

func TestChunkTextOversizedParagraph(t *testing.T) {
	long := strings.Repeat("y", 1500) + "\n"
	chunks := ChunkText("head\n"+long+"tail\n", 1000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1] != long {
		t.Fatalf("oversized paragraph must be emitted whole")
	}
}

func TestChunkTextPacksGreedily(t *testing.T) {
	para := strings.Repeat("z", 399) + "\n"
	text := strings.Repeat(para, 3)
	chunks := ChunkText(text, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != para+para || chunks[1] != para {
		t.Fatalf("unexpected packing: %d/%d runes", len(chunks[0]), len(chunks[1]))
	}
}

func TestChunkTextEmptyAndDefault(t *testing.T) {
	if got := ChunkText("", 10); len(got) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(got))
	}
	if got := ChunkText("abc", 0); len(got) != 1 || got[0] != "abc" {
		t.Fatalf("unexpected default-size chunking: %#v", got)
	}
}
