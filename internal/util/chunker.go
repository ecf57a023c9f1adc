package util

import (
	"strings"
	"unicode/utf8"
)

const DefaultChunkMaxChars = 1000

// ChunkText packs line-terminated paragraphs greedily into chunks of at most
// maxChars runes. Each paragraph keeps its trailing newline, so joining the
// chunks gives back text unchanged. A paragraph longer than maxChars on its
// own becomes a single oversized chunk.
func ChunkText(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}
	out := make([]string, 0, utf8.RuneCountInString(text)/maxChars+1)
	var buf strings.Builder
	bufLen := 0
	for _, para := range strings.SplitAfter(text, "\n") {
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if bufLen > 0 && bufLen+n > maxChars {
			out = append(out, buf.String())
			buf.Reset()
			bufLen = 0
		}
		buf.WriteString(para)
		bufLen += n
	}
	if bufLen > 0 {
		out = append(out, buf.String())
	}
	return out
}
