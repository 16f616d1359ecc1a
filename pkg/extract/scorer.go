package extract

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/inference"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultThreshold        = 0.7
	DefaultMaxContextTokens = 128
	DefaultEncoding         = "o200k_base"
)

// Scorer classifies the relation between entity pairs that share a sentence.
type Scorer struct {
	classifier inference.SequenceClassifier
	threshold  float64
	truncate   func(string) string
}

// NewScorerParams configures a Scorer. Threshold can only tighten the gate:
// values below DefaultThreshold, zero included, are raised to it.
// MaxContextTokens < 0 disables truncation, zero means
// DefaultMaxContextTokens.
type NewScorerParams struct {
	Classifier       inference.SequenceClassifier
	Threshold        float64
	MaxContextTokens int
	Encoding         string
}

func NewScorer(params NewScorerParams) (*Scorer, error) {
	if params.Threshold < DefaultThreshold {
		params.Threshold = DefaultThreshold
	}
	if params.MaxContextTokens == 0 {
		params.MaxContextTokens = DefaultMaxContextTokens
	}
	if params.Encoding == "" {
		params.Encoding = DefaultEncoding
	}

	s := &Scorer{
		classifier: params.Classifier,
		threshold:  params.Threshold,
		truncate:   func(s string) string { return s },
	}
	if params.MaxContextTokens < 0 {
		return s, nil
	}

	enc, err := tiktoken.GetEncoding(params.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %s: %w", params.Encoding, err)
	}
	limit := params.MaxContextTokens
	s.truncate = func(text string) string {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= limit {
			return text
		}
		return enc.Decode(tokens[:limit])
	}
	return s, nil
}

// Score returns the relations accepted between entities of the same
// sentence. Pairs more than one level apart are never classified. A
// relation is kept only when the classifier is more confident than the
// threshold and the predicted class is a known relation type.
func (s *Scorer) Score(ctx context.Context, entities []c4.Entity, text string) ([]c4.Relation, error) {
	relations := []c4.Relation{}

	for _, sent := range SplitSentences(text) {
		var inSentence []c4.Entity
		for _, e := range entities {
			if e.Start >= sent.Start && e.End <= sent.End {
				inSentence = append(inSentence, e)
			}
		}

		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				head, tail := inSentence[i], inSentence[j]
				if abs(head.Level-tail.Level) > 1 {
					continue
				}

				input := s.truncate(fmt.Sprintf("%s %s in: %s", head.Text, tail.Text, sent.Text))
				pred, err := s.classifier.Score(ctx, input)
				if err != nil {
					return nil, fmt.Errorf("%w: scoring %s -> %s: %w", ErrInference, head.ID, tail.ID, err)
				}
				if pred.Confidence <= s.threshold {
					continue
				}
				typ, ok := c4.RelationTypeAt(pred.LabelIndex)
				if !ok {
					continue
				}

				relations = append(relations, c4.Relation{
					Source:     head.ID,
					Target:     tail.ID,
					Type:       typ,
					Confidence: pred.Confidence,
					Level:      c4.RelationLevel(head.Level, tail.Level),
				})
			}
		}
	}

	return relations, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
