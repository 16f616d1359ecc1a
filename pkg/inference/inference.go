// Package inference declares the two model capabilities the extraction
// pipeline depends on. Implementations live in subpackages.
package inference

import "context"

// Span is one labelled stretch of a classified text. Start and End are byte
// offsets into the text that was passed to Classify.
type Span struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Prediction is the highest scoring class of a sequence classification.
type Prediction struct {
	LabelIndex int     `json:"label_index"`
	Confidence float64 `json:"confidence"`
}

// TokenClassifier tags entity spans in a piece of text.
type TokenClassifier interface {
	Classify(ctx context.Context, text string) ([]Span, error)
}

// SequenceClassifier assigns one class to a whole input sequence.
type SequenceClassifier interface {
	Score(ctx context.Context, text string) (Prediction, error)
}
