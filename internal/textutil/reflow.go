package textutil

import "strings"

// DefaultReflowWidth is the soft cap on paragraph length. Sentences are
// never split, so a single long sentence may exceed it.
const DefaultReflowWidth = 700

// DefaultSummaryLimit bounds the summary excerpt.
const DefaultSummaryLimit = 520

// summaryNote is appended below every generated summary.
const summaryNote = "--\nAutomatically generated summary. Review against the full transcript before publishing."

// Reflow normalizes whitespace and packs whole sentences greedily into
// paragraphs of at most width characters, joined by blank lines.
func Reflow(text string, width int) string {
	if width <= 0 {
		width = DefaultReflowWidth
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	var paragraphs []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() == 0 {
			current.WriteString(sentence)
			continue
		}
		if current.Len()+1+len(sentence) <= width {
			current.WriteByte(' ')
			current.WriteString(sentence)
			continue
		}
		paragraphs = append(paragraphs, current.String())
		current.Reset()
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.Join(paragraphs, "\n\n")
}

// SplitSentences whitespace-normalizes text and splits it after runs of
// sentence-ending punctuation. Text without terminal punctuation yields a
// single trailing sentence.
func SplitSentences(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	var sentences []string
	start := 0
	runes := []rune(normalized)
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		for i+1 < len(runes) && (isSentenceEnd(runes[i+1]) || isClosing(runes[i+1])) {
			i++
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// Summarize excerpts up to limit characters of whitespace-normalized text,
// backing up to a word boundary and appending an ellipsis when truncated,
// then attaches the fixed summary note.
func Summarize(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return summaryNote
	}

	excerpt := normalized
	if runes := []rune(normalized); len(runes) > limit {
		cut := string(runes[:limit])
		if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
			cut = cut[:idx]
		}
		excerpt = strings.TrimRight(cut, " ") + "…"
	}
	return excerpt + "\n\n" + summaryNote
}
