package util

import (
	"sort"
	"strings"
	"unicode"
)

const DefaultSnippetRunes = 420

// Snippet picks the sentences of a chunk that share the most terms with the
// query and trims them for display. Without usable query terms it returns the
// head of the chunk.
func Snippet(content, query string, maxRunes int) string {
	content = cleanForDisplay(content, 4000)
	if content == "" {
		return ""
	}
	terms := queryTerms(query)
	sentences := splitSentences(content)
	if len(terms) == 0 || len(sentences) == 0 {
		return cleanForDisplay(content, maxRunes)
	}

	type scored struct {
		sentence string
		pos      int
		hits     int
	}
	list := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		low := strings.ToLower(s)
		hits := 0
		for _, term := range terms {
			if strings.Contains(low, term) {
				hits++
			}
		}
		list = append(list, scored{sentence: s, pos: i, hits: hits})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].hits > list[j].hits })

	if list[0].hits == 0 {
		return cleanForDisplay(content, maxRunes)
	}
	best := list[0]
	if len(list) > 1 && list[1].hits > 0 {
		first, second := best, list[1]
		if second.pos < first.pos {
			first, second = second, first
		}
		return cleanForDisplay(first.sentence+" "+second.sentence, maxRunes)
	}
	return cleanForDisplay(best.sentence, maxRunes)
}

func splitSentences(s string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if x := strings.TrimSpace(b.String()); x != "" {
				out = append(out, x)
			}
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

var snippetStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "what": {}, "how": {}, "which": {},
	"that": {}, "this": {}, "with": {}, "from": {},
	"của": {}, "và": {}, "các": {}, "những": {}, "cho": {}, "với": {}, "là": {}, "trong": {},
	"được": {}, "theo": {}, "như": {}, "thế": {}, "nào": {},
}

func queryTerms(q string) []string {
	fields := strings.Fields(strings.ToLower(SanitizeText(q)))
	seen := map[string]struct{}{}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := snippetStopwords[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func cleanForDisplay(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultSnippetRunes
	}
	s = SanitizeText(s)
	runes := make([]rune, 0, len(s))
	for _, r := range strings.Join(strings.Fields(s), " ") {
		if unicode.IsPrint(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return strings.TrimSpace(string(runes))
}
