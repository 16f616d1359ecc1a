package extract

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/c4designer/pkg/inference"
)

// fakeTagger labels every occurrence of the configured words.
type fakeTagger struct {
	mu    sync.Mutex
	words map[string]string
	err   error
	calls int
}

func (f *fakeTagger) Classify(_ context.Context, text string) ([]inference.Span, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var spans []inference.Span
	for word, label := range f.words {
		from := 0
		for {
			idx := strings.Index(text[from:], word)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, inference.Span{Label: label, Text: word, Start: start, End: start + len(word), Score: 0.9})
			from = start + len(word)
		}
	}
	sortSpans(spans)
	return spans, nil
}

func sortSpans(spans []inference.Span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

// spanTagger returns fixed spans for every sentence.
type spanTagger struct {
	spans []inference.Span
}

func (s spanTagger) Classify(context.Context, string) ([]inference.Span, error) {
	return s.spans, nil
}

// fakeScorer answers with the prediction configured for the context prefix.
type fakeScorer struct {
	mu       sync.Mutex
	byPrefix map[string]inference.Prediction
	fallback inference.Prediction
	err      error
	inputs   []string
}

func (f *fakeScorer) Score(_ context.Context, text string) (inference.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return inference.Prediction{}, f.err
	}
	for prefix, p := range f.byPrefix {
		if strings.HasPrefix(text, prefix) {
			return p, nil
		}
	}
	return f.fallback, nil
}

var errModelDown = errors.New("model down")
