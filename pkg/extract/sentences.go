package extract

// Sentence is a slice of the input text. Text == input[Start:End].
type Sentence struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SplitSentences segments text into sentences with byte offsets.
//
// A sentence ends after '.', '!' or '?' (plus repeated terminators and
// closing quotes or brackets) when followed by whitespace or the end of the
// text, and at a blank line. Digits followed by ". " at the start of a line
// are a numbered list marker and do not end the sentence. Leading and trailing
// whitespace is excluded from every sentence.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		for end > start && isSpace(text[end-1]) {
			end--
		}
		if end > start {
			out = append(out, Sentence{Text: text[start:end], Start: start, End: end})
		}
		start = -1
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if isSpace(c) {
				continue
			}
			start = i
		}

		switch c {
		case '\n':
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\r') {
				j++
			}
			if j < len(text) && text[j] == '\n' {
				emit(i)
			}
		case '.', '!', '?':
			if c == '.' && i+1 < len(text) && text[i+1] == ' ' && isListMarker(text, i) {
				continue
			}
			j := i + 1
			for j < len(text) && isTerminator(text[j]) {
				j++
			}
			for j < len(text) && isCloser(text[j]) {
				j++
			}
			if j < len(text) && !isSpace(text[j]) {
				i = j - 1
				continue
			}
			emit(j)
			i = j - 1
		}
	}
	emit(len(text))
	return out
}

// isListMarker reports whether the '.' at dot closes a run of digits that
// has only spaces or tabs before it on its line.
func isListMarker(text string, dot int) bool {
	k := dot - 1
	for k >= 0 && text[k] >= '0' && text[k] <= '9' {
		k--
	}
	if k == dot-1 {
		return false
	}
	for k >= 0 && (text[k] == ' ' || text[k] == '\t') {
		k--
	}
	return k < 0 || text[k] == '\n'
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isCloser(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']' || c == '}'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
