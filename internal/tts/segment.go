package tts

import "strings"

// Segment is a sentence carved out of a paragraph, trimmed of outer
// whitespace, with offsets into the parent paragraph string.
type Segment struct {
	ParagraphIndex   int
	SentenceIndex    int
	Text             string
	IsLastInParagraph bool
	CharStart        int
	CharEnd          int
}

// sentenceEnders are the terminators that can open a sentence boundary.
var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

func isUpperByte(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isLowerByte(b byte) bool {
	return b >= 'a' && b <= 'z'
}

// boundaryBlocked reports whether a sentence terminator at text[i] is
// suppressed by one of the two abbreviation look-behinds: a dotted
// initialism (word-char, dot, word-char, dot) or a titlecase abbreviation
// ([A-Z][a-z].).
func boundaryBlocked(text string, i int) bool {
	if text[i] != '.' {
		return false
	}
	if i >= 3 && isWordByte(text[i-3]) && text[i-2] == '.' && isWordByte(text[i-1]) {
		return true
	}
	if i >= 2 && isUpperByte(text[i-2]) && isLowerByte(text[i-1]) {
		return true
	}
	return false
}

// boundarySpan is a [start, end) run of whitespace following a sentence
// terminator, eligible to split on.
type boundarySpan struct {
	start, end int
}

// scanBoundaries finds every sentence boundary in text: a terminator
// (.?!) immediately followed by whitespace, not blocked by an abbreviation.
func scanBoundaries(text string) []boundarySpan {
	var spans []boundarySpan
	i := 0
	for i < len(text)-1 {
		if sentenceEnders[text[i]] && isSpaceByte(text[i+1]) && !boundaryBlocked(text, i) {
			start := i + 1
			end := start
			for end < len(text) && isSpaceByte(text[end]) {
				end++
			}
			spans = append(spans, boundarySpan{start, end})
			i = end
			continue
		}
		i++
	}
	return spans
}

// trimSpan trims leading/trailing whitespace from text[start:end], returning
// the trimmed bounds. Returns start==end when the span is entirely whitespace.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	for end > start && isSpaceByte(text[end-1]) {
		end--
	}
	return start, end
}

// splitWithOffsets splits text into trimmed, non-overlapping sentence spans.
// See spec §4.B for the algorithm.
func splitWithOffsets(text string) []Segment {
	var out []Segment
	boundaries := scanBoundaries(text)

	start := 0
	for _, b := range boundaries {
		segStart, segEnd := trimSpan(text, start, b.start)
		if segEnd > segStart {
			out = append(out, Segment{Text: text[segStart:segEnd], CharStart: segStart, CharEnd: segEnd})
		}
		start = b.end
	}

	if start < len(text) {
		segStart, segEnd := trimSpan(text, start, len(text))
		if segEnd > segStart {
			out = append(out, Segment{Text: text[segStart:segEnd], CharStart: segStart, CharEnd: segEnd})
		}
	}

	if len(out) == 0 {
		segStart, segEnd := trimSpan(text, 0, len(text))
		if segEnd > segStart {
			out = append(out, Segment{Text: text[segStart:segEnd], CharStart: segStart, CharEnd: segEnd})
		}
	}

	return out
}

// Split returns just the sentence texts of text, discarding offsets.
func Split(text string) []string {
	segs := splitWithOffsets(text)
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// SplitWithOffsets splits text into sentences, retaining char_start/char_end
// offsets relative to text.
func SplitWithOffsets(text string) []Segment {
	return splitWithOffsets(text)
}

// Flatten splits every paragraph into tagged sentence segments: for each
// non-empty (after trimming) paragraph, splits it and tags each segment with
// its paragraph index, sentence index, and whether it is the last sentence
// of that paragraph.
func Flatten(paragraphs []string) []Segment {
	var out []Segment
	for pIdx, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		segs := splitWithOffsets(p)
		if len(segs) == 0 {
			continue
		}
		for sIdx, s := range segs {
			s.ParagraphIndex = pIdx
			s.SentenceIndex = sIdx
			s.IsLastInParagraph = sIdx == len(segs)-1
			out = append(out, s)
		}
	}
	return out
}
